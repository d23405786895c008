package models

import "time"

// Snapshot is the transient, UI-facing state rebuilt by each poll. It is never persisted.
type Snapshot struct {
	Data          []Asset    `json:"data"`
	Loading       bool       `json:"loading"`
	Error         string     `json:"error,omitempty"`
	Sources       []Source   `json:"sources"`
	LastUpdated   string     `json:"lastUpdated,omitempty"`
	LastUpdatedAt *time.Time `json:"lastUpdatedAt,omitempty"`
}

// Clone returns a copy that shares no slices with s.
func (s Snapshot) Clone() Snapshot {
	out := s
	if s.Data != nil {
		out.Data = make([]Asset, len(s.Data))
		copy(out.Data, s.Data)
	}
	if s.Sources != nil {
		out.Sources = make([]Source, len(s.Sources))
		copy(out.Sources, s.Sources)
	}
	if s.LastUpdatedAt != nil {
		t := *s.LastUpdatedAt
		out.LastUpdatedAt = &t
	}
	return out
}

// ByCategory keeps only the assets of the given category.
func (s Snapshot) ByCategory(category string) Snapshot {
	out := s.Clone()
	if category == "" {
		return out
	}
	filtered := make([]Asset, 0, len(out.Data))
	for _, a := range out.Data {
		if a.Category == category {
			filtered = append(filtered, a)
		}
	}
	out.Data = filtered
	return out
}

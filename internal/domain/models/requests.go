package models

import "strings"

// Requests for the radar HTTP endpoints. Defined in domain for consistency and reuse.

type StatsRequest struct {
	Window string `query:"window" json:"window" default:"1D" validate:"oneof=4H 1D 3D 1W"`
	At     string `query:"at" json:"at"`
}

// Normalize upper-cases the window so "1d" and "1D" are the same request.
func (r *StatsRequest) Normalize() {
	r.Window = strings.ToUpper(strings.TrimSpace(r.Window))
}

type HistoryRequest struct {
	Limit  int `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
	Offset int `query:"offset" json:"offset" validate:"gte=0"`
}

type StateRequest struct {
	Category string `query:"category" json:"category" validate:"omitempty,oneof=hotspot mature"`
}

func (r *StateRequest) Normalize() {
	r.Category = strings.ToLower(strings.TrimSpace(r.Category))
}

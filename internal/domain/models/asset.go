package models

// Asset is one record returned by the signal source. Only Symbol is read by
// the radar itself; every other field is passed through to consumers as-is.
type Asset struct {
	Symbol             string  `json:"symbol"`
	Name               string  `json:"name,omitempty"`
	Price              string  `json:"price,omitempty"`
	MarketCap          string  `json:"marketCap,omitempty"`
	Volume24h          string  `json:"volume24h,omitempty"`
	VolMcapRatio       float64 `json:"volMcapRatio,omitempty"`
	VolChange1d        float64 `json:"volChange1d,omitempty"`
	NewsSummary        string  `json:"newsSummary,omitempty"`
	IsLeader           bool    `json:"isLeader,omitempty"`
	LeaderReason       string  `json:"leaderReason,omitempty"`
	CorrelationWithBTC string  `json:"correlationWithBTC,omitempty"`
	TrendAnalysis      string  `json:"trendAnalysis,omitempty"`
	VitalityScore      float64 `json:"vitalityScore,omitempty"`
	Category           string  `json:"category,omitempty"` // "hotspot" | "mature"
}

const (
	CategoryHotspot = "hotspot"
	CategoryMature  = "mature"
)

// Source is a provenance reference attached to a fetch result.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// FetchResult is what a signal source returns for one poll.
type FetchResult struct {
	Data    []Asset  `json:"data"`
	Sources []Source `json:"sources"`
}

// Symbols returns the asset symbols in source order.
func (r FetchResult) Symbols() []string {
	out := make([]string, 0, len(r.Data))
	for _, a := range r.Data {
		out = append(out, a.Symbol)
	}
	return out
}

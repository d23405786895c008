package models

// ScanRecord is one timestamped capture of the symbols flagged by a poll.
// Field names match the persisted history blob.
type ScanRecord struct {
	Timestamp int64    `json:"timestamp"` // epoch millis
	Symbols   []string `json:"symbols"`
}

// SymbolStat summarises how often a symbol appeared inside a lookback window.
type SymbolStat struct {
	Symbol    string `json:"symbol"`
	Count     int    `json:"count"`
	FirstSeen int64  `json:"firstSeen"`
	LastSeen  int64  `json:"lastSeen"`
}

// StatsReport is the view-ready result of one aggregation call.
type StatsReport struct {
	Window   string       `json:"window"`
	Now      int64        `json:"now"`
	Cutoff   int64        `json:"cutoff"`
	Records  int          `json:"records"`   // scans inside the window
	MaxCount int          `json:"max_count"` // never below 1, used for relative bars
	Stats    []SymbolStat `json:"stats"`
}

// PersistStatus exposes the outcome of the best-effort history persistence.
type PersistStatus struct {
	LastSaveAt   int64  `json:"last_save_at,omitempty"`
	LastError    string `json:"last_error,omitempty"`
	SaveFailures int64  `json:"save_failures"`
	LoadFailures int64  `json:"load_failures"`
}

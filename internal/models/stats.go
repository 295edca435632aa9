package models

// StatsSnapshot is the persisted shape of the call statistics document.
type StatsSnapshot struct {
	TotalCalls uint64            `json:"totalCalls"`
	PerStaff   map[string]uint64 `json:"perStaff"`
	PerDay     map[string]uint64 `json:"perDay"`
	LastDayKey string            `json:"lastDayKey"`
}

package dto

// SyncResult summarises one feed import. Errors never abort the remaining events.
type SyncResult struct {
	PropertyID  string   `json:"property_id"`
	URL         string   `json:"url"`
	Source      string   `json:"source"`
	EventsFound int      `json:"events_found"`
	Imported    int      `json:"imported"`
	Updated     int      `json:"updated"`
	Unchanged   int      `json:"unchanged"`
	Reinstated  int      `json:"reinstated"`
	Cancelled   int      `json:"cancelled"`
	Errors      []string `json:"errors"`
}

type SyncReport struct {
	Results []SyncResult `json:"results"`
	Failed  int          `json:"failed"`
}

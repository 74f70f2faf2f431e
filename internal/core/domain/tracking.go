package domain

// TrackHistory is one carrier-reported event. Histories are ordered newest
// first; index 0 is the current state.
type TrackHistory struct {
	Date        string `json:"date"`
	Status      string `json:"status"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// TrackingResult is the answer of the tracking endpoint.
type TrackingResult struct {
	TrackingNumber string         `json:"trackingNumber"`
	Carrier        string         `json:"carrier"`
	Status         string         `json:"status"`
	History        []TrackHistory `json:"history"`
}

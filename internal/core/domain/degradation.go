package domain

// Degradation records a soft failure: a feature ran with reduced data but the
// caller's operation still succeeded.
type Degradation struct {
	Feature string `json:"feature"`
	Reason  string `json:"reason"`
}

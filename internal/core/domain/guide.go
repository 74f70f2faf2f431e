package domain

// GuideRequest is the body of POST /shipments/generate.
type GuideRequest struct {
	BusinessID          uint             `json:"business_id,omitempty"`
	IDRate              int              `json:"idRate"`
	MyShipmentReference string           `json:"myShipmentReference"`
	ExternalOrderID     string           `json:"external_order_id,omitempty"`
	RequestPickup       bool             `json:"requestPickup"`
	PickupDate          string           `json:"pickupDate,omitempty"`
	Insurance           bool             `json:"insurance"`
	Description         string           `json:"description"`
	ContentValue        float64          `json:"contentValue"`
	CODValue            *float64         `json:"codValue,omitempty"`
	IncludeGuideCost    bool             `json:"includeGuideCost"`
	CODPaymentMethod    CODPaymentMethod `json:"codPaymentMethod,omitempty"`
	Packages            []Parcel         `json:"packages"`
	Origin              Location         `json:"origin"`
	Destination         Location         `json:"destination"`
	TotalCost           float64          `json:"totalCost"`
}

// Guide is a generated label and tracking number.
type Guide struct {
	ShipmentID          uint   `json:"shipment_id,omitempty"`
	Tracker             string `json:"tracker"`
	URL                 string `json:"url"`
	MyShipmentReference string `json:"myShipmentReference"`
}

// GuideAck is the acknowledgement of a generate request. Guide is set only
// when the backend answered with the legacy synchronous shape.
type GuideAck struct {
	Success       bool
	Message       string
	CorrelationID string
	ShipmentID    uint
	Guide         *Guide
}

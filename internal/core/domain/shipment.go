package domain

import "time"

// ShipmentStatus represents the lifecycle state of a shipment as reported by
// the backend. The BFF only reads it; transitions happen upstream.
type ShipmentStatus string

const (
	StatusPending        ShipmentStatus = "pending"
	StatusPickedUp       ShipmentStatus = "picked_up"
	StatusInTransit      ShipmentStatus = "in_transit"
	StatusOutForDelivery ShipmentStatus = "out_for_delivery"
	StatusDelivered      ShipmentStatus = "delivered"
	StatusFailed         ShipmentStatus = "failed"
)

// Label returns the human label shown on status badges.
func (s ShipmentStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pendiente"
	case StatusPickedUp:
		return "Recogido"
	case StatusInTransit:
		return "En tránsito"
	case StatusOutForDelivery:
		return "En reparto"
	case StatusDelivered:
		return "Entregado"
	case StatusFailed:
		return "Fallido"
	default:
		return string(s)
	}
}

// Known reports whether s is one of the statuses listed above.
func (s ShipmentStatus) Known() bool {
	switch s {
	case StatusPending, StatusPickedUp, StatusInTransit, StatusOutForDelivery, StatusDelivered, StatusFailed:
		return true
	default:
		return false
	}
}

// Shipment is the persisted shipment record owned by the backend.
type Shipment struct {
	ID                 uint           `json:"id"`
	BusinessID         uint           `json:"business_id,omitempty"`
	OrderID            *string        `json:"order_id,omitempty"`
	ClientName         string         `json:"client_name"`
	DestinationAddress string         `json:"destination_address"`
	TrackingNumber     string         `json:"tracking_number,omitempty"`
	TrackingURL        string         `json:"tracking_url,omitempty"`
	Carrier            string         `json:"carrier,omitempty"`
	CarrierCode        string         `json:"carrier_code,omitempty"`
	GuideID            string         `json:"guide_id,omitempty"`
	GuideURL           string         `json:"guide_url,omitempty"`
	Status             ShipmentStatus `json:"status"`
	ShippedAt          *time.Time     `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time     `json:"delivered_at,omitempty"`
	ShippingCost       *float64       `json:"shipping_cost,omitempty"`
	InsuranceCost      *float64       `json:"insurance_cost,omitempty"`
	TotalCost          *float64       `json:"total_cost,omitempty"`
	Weight             *float64       `json:"weight,omitempty"`
	Height             *float64       `json:"height,omitempty"`
	Width              *float64       `json:"width,omitempty"`
	Length             *float64       `json:"length,omitempty"`
	WarehouseName      string         `json:"warehouse_name,omitempty"`
	DriverName         string         `json:"driver_name,omitempty"`
	IsLastMile         bool           `json:"is_last_mile"`
	IsTest             bool           `json:"is_test"`
	EstimatedDelivery  *time.Time     `json:"estimated_delivery,omitempty"`
	DeliveryNotes      string         `json:"delivery_notes,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// ShipmentPage is a single page of the shipment list.
type ShipmentPage struct {
	Items      []Shipment `json:"data"`
	Total      int64      `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// CancelResult is the backend acknowledgement of a cancellation.
type CancelResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Carrier describes a carrier known to the badge table.
type Carrier struct {
	Code string
	Name string
	Logo string
}

var carriers = map[string]Carrier{
	"servientrega":    {Code: "servientrega", Name: "Servientrega", Logo: "/carriers/servientrega.svg"},
	"interrapidisimo": {Code: "interrapidisimo", Name: "Interrapidísimo", Logo: "/carriers/interrapidisimo.svg"},
	"coordinadora":    {Code: "coordinadora", Name: "Coordinadora", Logo: "/carriers/coordinadora.svg"},
	"envia":           {Code: "envia", Name: "Envía", Logo: "/carriers/envia.svg"},
	"tcc":             {Code: "tcc", Name: "TCC", Logo: "/carriers/tcc.svg"},
	"deprisa":         {Code: "deprisa", Name: "Deprisa", Logo: "/carriers/deprisa.svg"},
	"99minutos":       {Code: "99minutos", Name: "99 Minutos", Logo: "/carriers/99minutos.svg"},
}

const genericCarrierLogo = "/carriers/generic.svg"

// LookupCarrier resolves a carrier code or display name. Unknown carriers get
// the generic logo and keep the given name.
func LookupCarrier(codeOrName string) (Carrier, bool) {
	key := normalizeCarrierKey(codeOrName)
	if c, ok := carriers[key]; ok {
		return c, true
	}
	return Carrier{Code: key, Name: codeOrName, Logo: genericCarrierLogo}, false
}

func normalizeCarrierKey(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r == 'í' || r == 'Í':
			out = append(out, 'i')
		case r == ' ' || r == '-' || r == '_':
		default:
			out = append(out, r)
		}
	}
	return string(out)
}

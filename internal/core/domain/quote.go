package domain

// CODPaymentMethod is how cash-on-delivery money is collected.
type CODPaymentMethod string

const (
	CODCash      CODPaymentMethod = "cash"
	CODDataPhone CODPaymentMethod = "data_phone"
)

// Parcel is one package of a shipment, in kilograms and centimetres.
type Parcel struct {
	Weight float64 `json:"weight"`
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
}

// Location is an origin or destination. Contact fields are only required
// when generating a guide; a quote needs the DANE code and street.
type Location struct {
	DaneCode    string `json:"daneCode"`
	Address     string `json:"address"`
	Company     string `json:"company,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Suburb      string `json:"suburb,omitempty"`
	CrossStreet string `json:"crossStreet,omitempty"`
	Reference   string `json:"reference,omitempty"`
}

// QuoteRequest is the body of POST /shipments/quote.
type QuoteRequest struct {
	BusinessID       uint             `json:"business_id,omitempty"`
	Packages         []Parcel         `json:"packages"`
	Description      string           `json:"description"`
	ContentValue     float64          `json:"contentValue"`
	CODValue         *float64         `json:"codValue,omitempty"`
	IncludeGuideCost bool             `json:"includeGuideCost"`
	CODPaymentMethod CODPaymentMethod `json:"codPaymentMethod,omitempty"`
	Origin           Location         `json:"origin"`
	Destination      Location         `json:"destination"`
}

// Rate is a priced carrier option produced by a quote. It is only valid for
// the quote that produced it.
type Rate struct {
	IDRate           int     `json:"idRate"`
	IDProduct        int     `json:"idProduct"`
	Product          string  `json:"product"`
	Carrier          string  `json:"carrier"`
	Flete            float64 `json:"flete"`
	MinimumInsurance float64 `json:"minimumInsurance"`
	ExtraInsurance   float64 `json:"extraInsurance"`
	DeliveryDays     int     `json:"deliveryDays"`
	COD              bool    `json:"cod"`
}

// QuotedTotal is the price shown in the rate list.
func (r Rate) QuotedTotal() float64 {
	return r.Flete + r.MinimumInsurance + r.ExtraInsurance
}

// ChargeTotal is the amount charged to the wallet when the guide is generated.
func (r Rate) ChargeTotal() float64 {
	return r.Flete + r.MinimumInsurance
}

// QuoteAck is the 202-style acknowledgement of a quote request. Rates is nil
// when the backend will deliver them over SSE.
type QuoteAck struct {
	Success       bool
	Message       string
	CorrelationID string
	Rates         []Rate
	RatesInline   bool
}

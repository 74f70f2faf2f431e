package domain

// OriginAddress is a pickup address saved by a business.
type OriginAddress struct {
	ID          uint   `json:"id,omitempty"`
	BusinessID  uint   `json:"business_id,omitempty"`
	Alias       string `json:"alias"`
	Company     string `json:"company"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Street      string `json:"street"`
	Suburb      string `json:"suburb,omitempty"`
	CrossStreet string `json:"cross_street,omitempty"`
	Reference   string `json:"reference,omitempty"`
	DaneCode    string `json:"city_dane_code"`
	City        string `json:"city,omitempty"`
	State       string `json:"state,omitempty"`
	IsDefault   bool   `json:"is_default"`
}

// Location converts the saved address into a wizard location.
func (a OriginAddress) Location() Location {
	return Location{
		DaneCode:    a.DaneCode,
		Address:     a.Street,
		Company:     a.Company,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		Email:       a.Email,
		Phone:       a.Phone,
		Suburb:      a.Suburb,
		CrossStreet: a.CrossStreet,
		Reference:   a.Reference,
	}
}

// Order is the subset of an order record used to prefill the wizard.
type Order struct {
	ID             string   `json:"id"`
	OrderNumber    string   `json:"order_number"`
	CustomerName   string   `json:"customer_name"`
	CustomerEmail  string   `json:"customer_email"`
	CustomerPhone  string   `json:"customer_phone"`
	ShippingStreet string   `json:"shipping_street"`
	ShippingCity   string   `json:"shipping_city"`
	ShippingState  string   `json:"shipping_state"`
	ShippingSuburb string   `json:"shipping_suburb,omitempty"`
	TotalAmount    float64  `json:"total_amount"`
	Weight         *float64 `json:"weight,omitempty"`
	Height         *float64 `json:"height,omitempty"`
	Width          *float64 `json:"width,omitempty"`
	Length         *float64 `json:"length,omitempty"`
}

package service

import (
	"github.com/99minutos/shipping-central/internal/core/domain"
)

// ShipmentForm is step 1: where from, where to, and what is shipped.
type ShipmentForm struct {
	OriginDaneCode      string                  `json:"origin_dane_code"      validate:"required,len=8,numeric,dane"`
	OriginAddress       string                  `json:"origin_address"        validate:"required,min=2,max=50"`
	DestinationDaneCode string                  `json:"destination_dane_code" validate:"required,len=8,numeric,dane"`
	DestinationAddress  string                  `json:"destination_address"   validate:"required,min=2,max=50"`
	Weight              float64                 `json:"weight"                validate:"required,min=1,max=1000"`
	Height              float64                 `json:"height"                validate:"required,min=1,max=300"`
	Width               float64                 `json:"width"                 validate:"required,min=1,max=300"`
	Length              float64                 `json:"length"                validate:"required,min=1,max=300"`
	Description         string                  `json:"description"           validate:"required,min=3,max=25"`
	ContentValue        float64                 `json:"content_value"         validate:"min=0,max=3000000"`
	CODValue            *float64                `json:"cod_value,omitempty"   validate:"omitempty,min=0,max=3000000"`
	IncludeGuideCost    bool                    `json:"include_guide_cost"`
	CODPaymentMethod    domain.CODPaymentMethod `json:"cod_payment_method,omitempty" validate:"omitempty,oneof=cash data_phone"`
}

// hasCOD reports whether cash on delivery was requested.
func (f ShipmentForm) hasCOD() bool {
	return f.CODValue != nil && *f.CODValue > 0
}

func (f ShipmentForm) parcels() []domain.Parcel {
	return []domain.Parcel{{Weight: f.Weight, Height: f.Height, Width: f.Width, Length: f.Length}}
}

func (f ShipmentForm) quoteRequest(businessID uint) domain.QuoteRequest {
	req := domain.QuoteRequest{
		BusinessID:       businessID,
		Packages:         f.parcels(),
		Description:      f.Description,
		ContentValue:     f.ContentValue,
		IncludeGuideCost: f.IncludeGuideCost,
		Origin:           domain.Location{DaneCode: f.OriginDaneCode, Address: f.OriginAddress},
		Destination:      domain.Location{DaneCode: f.DestinationDaneCode, Address: f.DestinationAddress},
	}
	if f.hasCOD() {
		v := *f.CODValue
		req.CODValue = &v
		req.CODPaymentMethod = f.CODPaymentMethod
	}
	return req
}

// sameAs compares two forms by value, dereferencing the COD amount.
func (f ShipmentForm) sameAs(o ShipmentForm) bool {
	a, b := f, o
	a.CODValue, b.CODValue = nil, nil
	if a != b {
		return false
	}
	switch {
	case f.CODValue == nil && o.CODValue == nil:
		return true
	case f.CODValue == nil || o.CODValue == nil:
		return false
	default:
		return *f.CODValue == *o.CODValue
	}
}

func (f ShipmentForm) clone() *ShipmentForm {
	c := f
	if f.CODValue != nil {
		v := *f.CODValue
		c.CODValue = &v
	}
	return &c
}

// ContactDetails is the per-party block of step 3.
type ContactDetails struct {
	Company     string `json:"company"      validate:"required,min=2,max=28"`
	FirstName   string `json:"first_name"   validate:"required,min=2,max=14"`
	LastName    string `json:"last_name"    validate:"required,min=2,max=14"`
	Email       string `json:"email"        validate:"required,email,max=60"`
	Phone       string `json:"phone"        validate:"required,len=10,numeric"`
	Suburb      string `json:"suburb"       validate:"required,min=2,max=30"`
	CrossStreet string `json:"cross_street" validate:"required,min=2,max=35"`
	Reference   string `json:"reference"    validate:"required,min=2,max=25"`
}

func (c ContactDetails) location(daneCode, address string) domain.Location {
	return domain.Location{
		DaneCode:    daneCode,
		Address:     address,
		Company:     c.Company,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		Phone:       c.Phone,
		Suburb:      c.Suburb,
		CrossStreet: c.CrossStreet,
		Reference:   c.Reference,
	}
}

// ContactForm is step 3.
type ContactForm struct {
	Origin              ContactDetails `json:"origin"                      validate:"required"`
	Destination         ContactDetails `json:"destination"                 validate:"required"`
	MyShipmentReference string         `json:"my_shipment_reference"       validate:"required,min=2,max=28"`
	ExternalOrderID     string         `json:"external_order_id,omitempty" validate:"omitempty,max=64"`
	RequestPickup       bool           `json:"request_pickup"`
	PickupDate          string         `json:"pickup_date,omitempty"       validate:"omitempty,datetime=2006-01-02"`
	Insurance           bool           `json:"insurance"`
}

func (f ContactForm) clone() *ContactForm {
	c := f
	return &c
}

func (fv *FormValidator) shipmentForm(f ShipmentForm) error {
	if err := fv.Struct(f); err != nil {
		return err
	}
	if f.hasCOD() && f.CODPaymentMethod == "" {
		return fieldErr("cod_payment_method", "cod_payment_method is required when cod_value is set")
	}
	return nil
}

func (fv *FormValidator) contactForm(f ContactForm) error {
	if err := fv.Struct(f); err != nil {
		return err
	}
	if f.RequestPickup && f.PickupDate == "" {
		return fieldErr("pickup_date", "pickup_date is required when request_pickup is set")
	}
	return nil
}

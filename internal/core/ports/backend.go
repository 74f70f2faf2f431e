package ports

import (
	"context"

	"github.com/99minutos/shipping-central/internal/core/domain"
)

// QuoteClient requests shipping rates. Rates may come back inline or later
// over SSE, correlated by QuoteAck.CorrelationID.
type QuoteClient interface {
	Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteAck, error)
}

// GuideClient submits a guide generation.
type GuideClient interface {
	GenerateGuide(ctx context.Context, req domain.GuideRequest) (*domain.GuideAck, error)
}

// TrackingClient queries the carrier tracking history of a tracking number.
type TrackingClient interface {
	Track(ctx context.Context, trackingNumber string) (*domain.TrackingResult, error)
}

// ShipmentClient reads and cancels persisted shipments.
type ShipmentClient interface {
	ListShipments(ctx context.Context, filter ShipmentFilter) (*domain.ShipmentPage, error)
	GetShipment(ctx context.Context, shipmentID uint) (*domain.Shipment, error)
	CancelShipment(ctx context.Context, shipmentID uint) (*domain.CancelResult, error)
}

// WalletClient reads the prepaid balance of a business.
type WalletClient interface {
	Balance(ctx context.Context, businessID uint) (float64, error)
}

// OriginAddressClient manages saved pickup addresses.
type OriginAddressClient interface {
	ListOriginAddresses(ctx context.Context, businessID uint) ([]domain.OriginAddress, error)
	CreateOriginAddress(ctx context.Context, businessID uint, addr domain.OriginAddress) (*domain.OriginAddress, error)
	UpdateOriginAddress(ctx context.Context, businessID uint, id uint, addr domain.OriginAddress) (*domain.OriginAddress, error)
	DeleteOriginAddress(ctx context.Context, businessID uint, id uint) error
}

// OrderClient looks up an order for wizard prefill.
type OrderClient interface {
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

// WizardBackend is everything the guide wizard calls.
type WizardBackend interface {
	QuoteClient
	GuideClient
	WalletClient
	OriginAddressClient
	OrderClient
}

// Backend is the full platform API surface consumed by the BFF.
type Backend interface {
	WizardBackend
	TrackingClient
	ShipmentClient
	Ping(ctx context.Context) error
}

// ShipmentFilter carries the list query. Zero values mean "not set" and are
// never sent.
type ShipmentFilter struct {
	BusinessID     uint
	TrackingNumber string
	OrderID        string
	Carrier        string
	Status         string
	StartDate      string
	EndDate        string
	SortBy         string
	SortOrder      string
	IsTest         *bool
	Page           int
	PageSize       int
}

package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ShipmentFilters is the list state mirrored in the URL query string.
type ShipmentFilters struct {
	TrackingNumber string `json:"tracking_number,omitempty"`
	OrderID        string `json:"order_id,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	Status         string `json:"status,omitempty"`
	Page           int    `json:"page,omitempty"`
	PageSize       int    `json:"page_size,omitempty"`
	BusinessID     uint   `json:"business_id,omitempty"`
	StartDate      string `json:"start_date,omitempty"`
	EndDate        string `json:"end_date,omitempty"`
	SortBy         string `json:"sort_by,omitempty"`
	SortOrder      string `json:"order,omitempty"`
	IsTest         *bool  `json:"is_test,omitempty"`
}

// Values encodes the filters. Empty and zero values are left out.
func (f ShipmentFilters) Values() url.Values {
	v := url.Values{}
	set := func(key, val string) {
		if val = strings.TrimSpace(val); val != "" {
			v.Set(key, val)
		}
	}
	set("tracking_number", f.TrackingNumber)
	set("order_id", f.OrderID)
	set("carrier", f.Carrier)
	set("status", f.Status)
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(f.PageSize))
	}
	if f.BusinessID > 0 {
		v.Set("business_id", strconv.FormatUint(uint64(f.BusinessID), 10))
	}
	set("start_date", f.StartDate)
	set("end_date", f.EndDate)
	set("sort_by", f.SortBy)
	set("order", f.SortOrder)
	if f.IsTest != nil {
		v.Set("is_test", strconv.FormatBool(*f.IsTest))
	}
	return v
}

// Encode is Values().Encode().
func (f ShipmentFilters) Encode() string {
	return f.Values().Encode()
}

// ParseShipmentFilters reads filters back from a query string.
func ParseShipmentFilters(q url.Values) (ShipmentFilters, error) {
	f := ShipmentFilters{
		TrackingNumber: strings.TrimSpace(q.Get("tracking_number")),
		OrderID:        strings.TrimSpace(q.Get("order_id")),
		Carrier:        strings.TrimSpace(q.Get("carrier")),
		Status:         strings.TrimSpace(q.Get("status")),
		StartDate:      strings.TrimSpace(q.Get("start_date")),
		EndDate:        strings.TrimSpace(q.Get("end_date")),
		SortBy:         strings.TrimSpace(q.Get("sort_by")),
		SortOrder:      strings.TrimSpace(q.Get("order")),
	}

	bad := map[string]string{}
	if s := q.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			bad["page"] = "page must be a positive integer"
		}
		f.Page = n
	}
	if s := q.Get("page_size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			bad["page_size"] = "page_size must be a positive integer"
		}
		f.PageSize = n
	}
	if s := q.Get("business_id"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			bad["business_id"] = "business_id must be a positive integer"
		}
		f.BusinessID = uint(n)
	}
	if s := q.Get("is_test"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			bad["is_test"] = "is_test must be true or false"
		}
		f.IsTest = &b
	}
	if len(bad) > 0 {
		return ShipmentFilters{}, &domain.ValidationError{Fields: bad}
	}
	return f, nil
}

func (f ShipmentFilters) normalized() ShipmentFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	return f
}

func (f ShipmentFilters) query() ports.ShipmentFilter {
	return ports.ShipmentFilter{
		BusinessID:     f.BusinessID,
		TrackingNumber: f.TrackingNumber,
		OrderID:        f.OrderID,
		Carrier:        f.Carrier,
		Status:         f.Status,
		StartDate:      f.StartDate,
		EndDate:        f.EndDate,
		SortBy:         f.SortBy,
		SortOrder:      f.SortOrder,
		IsTest:         f.IsTest,
		Page:           f.Page,
		PageSize:       f.PageSize,
	}
}

// CancelOutcome is a completed cancellation and the list refreshed after it.
// A failed refresh does not undo the cancellation.
type CancelOutcome struct {
	Result       *domain.CancelResult `json:"result"`
	Page         *domain.ShipmentPage `json:"page,omitempty"`
	RefreshError string               `json:"refresh_error,omitempty"`
}

// ShipmentList serves the paginated shipment list.
type ShipmentList struct {
	shipments ports.ShipmentClient
	tracker   ports.TrackingClient
	log       zerolog.Logger
}

func NewShipmentList(shipments ports.ShipmentClient, tracker ports.TrackingClient, log zerolog.Logger) *ShipmentList {
	return &ShipmentList{shipments: shipments, tracker: tracker, log: log}
}

// Load fetches one page for the given filters.
func (l *ShipmentList) Load(ctx context.Context, f ShipmentFilters) (*domain.ShipmentPage, error) {
	f = f.normalized()
	page, err := l.shipments.ListShipments(ctx, f.query())
	if err != nil {
		return nil, fmt.Errorf("list shipments: %w", err)
	}
	if page.Page == 0 {
		page.Page = f.Page
	}
	if page.PageSize == 0 {
		page.PageSize = f.PageSize
	}
	if page.TotalPages == 0 && page.Total > 0 {
		page.TotalPages = int((page.Total + int64(page.PageSize) - 1) / int64(page.PageSize))
	}
	return page, nil
}

// Get fetches one shipment and checks it belongs to the business. A zero
// businessID skips the check; a business-scoped caller never sees a record
// that carries no business.
func (l *ShipmentList) Get(ctx context.Context, businessID, shipmentID uint) (*domain.Shipment, error) {
	s, err := l.shipments.GetShipment(ctx, shipmentID)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrShipmentNotFound
		}
		return nil, fmt.Errorf("get shipment: %w", err)
	}
	if businessID != 0 && s.BusinessID != businessID {
		return nil, domain.ErrShipmentNotFound
	}
	return s, nil
}

// Cancel cancels a shipment and then reloads the list. There is no
// optimistic update: the refresh runs whether or not the status changed.
func (l *ShipmentList) Cancel(ctx context.Context, shipmentID uint, f ShipmentFilters) (*CancelOutcome, error) {
	res, err := l.shipments.CancelShipment(ctx, shipmentID)
	if err != nil {
		l.log.Warn().Err(err).Uint("shipment_id", shipmentID).Msg("cancel failed")
		if domain.IsNotFound(err) {
			return nil, domain.ErrShipmentNotFound
		}
		return nil, fmt.Errorf("cancel shipment: %w", err)
	}
	l.log.Info().Uint("shipment_id", shipmentID).Str("status", res.Status).Msg("shipment cancelled")

	out := &CancelOutcome{Result: res}
	page, err := l.Load(ctx, f)
	if err != nil {
		l.log.Warn().Err(err).Msg("list refresh after cancel failed")
		out.RefreshError = err.Error()
		return out, nil
	}
	out.Page = page
	return out, nil
}

// ConsultNow queries tracking on demand, independent of the list.
func (l *ShipmentList) ConsultNow(ctx context.Context, trackingNumber string) (*domain.TrackingResult, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, fieldErr("tracking_number", "tracking_number is required")
	}
	res, err := l.tracker.Track(ctx, trackingNumber)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, domain.ErrShipmentNotFound
		}
		return nil, fmt.Errorf("track %s: %w", trackingNumber, err)
	}
	return res, nil
}

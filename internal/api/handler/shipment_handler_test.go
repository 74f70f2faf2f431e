package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
	"github.com/99minutos/shipping-central/internal/core/service"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubShipments struct {
	page       *domain.ShipmentPage
	shipments  map[uint]domain.Shipment
	lastFilter ports.ShipmentFilter
	cancelled  []uint
}

func (s *stubShipments) ListShipments(_ context.Context, f ports.ShipmentFilter) (*domain.ShipmentPage, error) {
	s.lastFilter = f
	if s.page == nil {
		return &domain.ShipmentPage{}, nil
	}
	p := *s.page
	return &p, nil
}

func (s *stubShipments) GetShipment(_ context.Context, id uint) (*domain.Shipment, error) {
	sh, ok := s.shipments[id]
	if !ok {
		return nil, &domain.BackendError{Status: http.StatusNotFound, Message: "not found"}
	}
	return &sh, nil
}

func (s *stubShipments) CancelShipment(_ context.Context, id uint) (*domain.CancelResult, error) {
	s.cancelled = append(s.cancelled, id)
	return &domain.CancelResult{Status: "cancelled"}, nil
}

type stubTracker struct {
	res *domain.TrackingResult
	err error
}

func (s *stubTracker) Track(_ context.Context, _ string) (*domain.TrackingResult, error) {
	return s.res, s.err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func newShipmentFixture(ships *stubShipments, tracker *stubTracker) *ShipmentHandler {
	list := service.NewShipmentList(ships, tracker, zerolog.Nop())
	panel := service.NewTrackingPanel(tracker, false, zerolog.Nop())
	return NewShipmentHandler(list, panel)
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestShipmentHandler_ListPinsBusiness(t *testing.T) {
	ships := &stubShipments{page: &domain.ShipmentPage{
		Items: []domain.Shipment{{ID: 1, Status: domain.StatusInTransit, Carrier: "servientrega"}},
		Total: 1,
	}}
	h := newShipmentFixture(ships, &stubTracker{})
	c, rec := newCtx(newEcho(), http.MethodGet, "/v1/shipments?status=in_transit&page=2", nil, businessUser)

	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ships.lastFilter.BusinessID != 42 || ships.lastFilter.Status != "in_transit" {
		t.Fatalf("unexpected filter: %+v", ships.lastFilter)
	}

	var resp shipmentListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].CarrierName != "Servientrega" || resp.Data[0].Progress.Percent != 60 {
		t.Fatalf("unexpected items: %+v", resp.Data)
	}
	if resp.Filters.Page != 2 {
		t.Fatalf("filters should round-trip, got %+v", resp.Filters)
	}
}

func TestShipmentHandler_CancelChecksOwnership(t *testing.T) {
	ships := &stubShipments{shipments: map[uint]domain.Shipment{
		9: {ID: 9, BusinessID: 7},
	}}
	h := newShipmentFixture(ships, &stubTracker{})
	c, _ := newCtx(newEcho(), http.MethodPost, "/", nil, businessUser)
	c.SetParamNames("id")
	c.SetParamValues("9")

	if err := h.Cancel(c); !errors.Is(err, domain.ErrShipmentNotFound) {
		t.Fatalf("expected ErrShipmentNotFound, got %v", err)
	}
	if len(ships.cancelled) != 0 {
		t.Fatalf("foreign shipment must not be cancelled")
	}
}

func TestShipmentHandler_CancelRejectsUnownedRecord(t *testing.T) {
	ships := &stubShipments{shipments: map[uint]domain.Shipment{11: {ID: 11}}}
	h := newShipmentFixture(ships, &stubTracker{})
	c, _ := newCtx(newEcho(), http.MethodPost, "/", nil, businessUser)
	c.SetParamNames("id")
	c.SetParamValues("11")

	if err := h.Cancel(c); !errors.Is(err, domain.ErrShipmentNotFound) {
		t.Fatalf("expected ErrShipmentNotFound, got %v", err)
	}
	if len(ships.cancelled) != 0 {
		t.Fatalf("record without a business must not be cancelled")
	}
}

func TestShipmentHandler_CancelRefreshesList(t *testing.T) {
	ships := &stubShipments{
		shipments: map[uint]domain.Shipment{9: {ID: 9, BusinessID: 42}},
		page:      &domain.ShipmentPage{Total: 0},
	}
	h := newShipmentFixture(ships, &stubTracker{})
	c, rec := newCtx(newEcho(), http.MethodPost, "/?status=pending", nil, businessUser)
	c.SetParamNames("id")
	c.SetParamValues("9")

	if err := h.Cancel(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || len(ships.cancelled) != 1 {
		t.Fatalf("expected cancel + 200, got %d %v", rec.Code, ships.cancelled)
	}
	if ships.lastFilter.Status != "pending" {
		t.Fatalf("refresh should reuse the filters, got %+v", ships.lastFilter)
	}
}

func TestShipmentHandler_TimelineReportsTrackingFailureInBody(t *testing.T) {
	ships := &stubShipments{shipments: map[uint]domain.Shipment{
		3: {ID: 3, BusinessID: 42, TrackingNumber: "G-3", Status: domain.StatusPickedUp},
	}}
	h := newShipmentFixture(ships, &stubTracker{err: errors.New("carrier down")})
	c, rec := newCtx(newEcho(), http.MethodGet, "/", nil, businessUser)
	c.SetParamNames("id")
	c.SetParamValues("3")

	if err := h.Timeline(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var tl service.Timeline
	if err := json.Unmarshal(rec.Body.Bytes(), &tl); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec.Code != http.StatusOK || tl.State != service.TimelineError {
		t.Fatalf("expected 200 with error state, got %d %q", rec.Code, tl.State)
	}
}

func TestShipmentHandler_Consult(t *testing.T) {
	tracker := &stubTracker{res: &domain.TrackingResult{
		TrackingNumber: "G-1",
		Carrier:        "tcc",
		Status:         "delivered",
		History:        []domain.TrackHistory{{Status: "Entregado"}, {Status: "En reparto"}},
	}}
	h := newShipmentFixture(&stubShipments{}, tracker)
	c, rec := newCtx(newEcho(), http.MethodPost, "/", nil, businessUser)
	c.SetParamNames("tracking_number")
	c.SetParamValues("G-1")

	if err := h.Consult(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var resp consultResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.CarrierName != "TCC" || len(resp.Entries) != 2 || !resp.Entries[0].Current || resp.Entries[1].Current {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestDecodeEvent_TypeField(t *testing.T) {
	evt, err := DecodeEvent([]byte(`{"type":"shipment.quote_received","data":{"correlation_id":"c-1","rates":[]}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.Kind != EventQuoteReceived {
		t.Errorf("expected %q, got %q", EventQuoteReceived, evt.Kind)
	}
	if evt.CorrelationID != "c-1" {
		t.Errorf("expected correlation id lifted from data, got %q", evt.CorrelationID)
	}
}

func TestDecodeEvent_MetadataFallback(t *testing.T) {
	evt, err := DecodeEvent([]byte(`{"data":{"shipment_id":42},"metadata":{"event_type":"cancelled","business_id":7,"correlation_id":"c-9"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.Kind != EventCancelled {
		t.Errorf("expected %q, got %q", EventCancelled, evt.Kind)
	}
	if evt.ShipmentID != 42 || evt.BusinessID != 7 || evt.CorrelationID != "c-9" {
		t.Errorf("unexpected refs: %+v", evt)
	}
}

func TestDecodeEvent_StringShipmentID(t *testing.T) {
	evt, err := DecodeEvent([]byte(`{"type":"guide_generated","data":{"shipment_id":"15","tracker":"TRK1"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.ShipmentID != 15 || evt.TrackingNumber != "TRK1" {
		t.Errorf("unexpected refs: %+v", evt)
	}
}

func TestDecodeEvent_Malformed(t *testing.T) {
	for _, raw := range []string{"", "ping", "{not json", `["shipment.cancelled"]`} {
		if _, err := DecodeEvent([]byte(raw)); !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("%q: expected ErrMalformedEvent, got %v", raw, err)
		}
	}
}

func TestDecodeEvent_UnknownKind(t *testing.T) {
	_, err := DecodeEvent([]byte(`{"type":"order.created","data":{}}`))
	if !errors.Is(err, ErrUnknownEventKind) {
		t.Fatalf("expected ErrUnknownEventKind, got %v", err)
	}
}

func TestEvent_EnvelopeRoundTrip(t *testing.T) {
	in, _ := DecodeEvent([]byte(`{"type":"shipment.tracking_updated","data":{"tracking_number":"T-1"}}`))
	raw, err := in.Envelope()
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	out, err := DecodeEvent(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Kind != in.Kind || out.TrackingNumber != "T-1" {
		t.Errorf("round trip mismatch: %+v", out)
	}
}

func TestGuideGeneratedPayload_AcceptsBothShapes(t *testing.T) {
	legacy := GuideGeneratedPayload{Tracker: "A", URL: "u1", MyShipmentReference: "r1"}
	modern := GuideGeneratedPayload{TrackingNumber: "B", LabelURL: "u2", ShipmentReference: "r2"}

	if g := legacy.Guide(1); g.Tracker != "A" || g.URL != "u1" || g.MyShipmentReference != "r1" {
		t.Errorf("legacy shape: %+v", g)
	}
	if g := modern.Guide(2); g.Tracker != "B" || g.URL != "u2" || g.MyShipmentReference != "r2" || g.ShipmentID != 2 {
		t.Errorf("event shape: %+v", g)
	}
}

func TestInsufficientBalanceError_NamesBothAmounts(t *testing.T) {
	err := &InsufficientBalanceError{Required: 25000, Available: 12500}
	msg := err.Error()
	if !strings.Contains(msg, "$25.000") || !strings.Contains(msg, "$12.500") {
		t.Errorf("message must contain required and available amounts: %s", msg)
	}
	if err.Shortfall() != 12500 {
		t.Errorf("unexpected shortfall %v", err.Shortfall())
	}
}

func TestFormatCOP(t *testing.T) {
	cases := map[float64]string{0: "$0", 999: "$999", 1000: "$1.000", 3000000: "$3.000.000", -1500: "-$1.500"}
	for in, want := range cases {
		if got := FormatCOP(in); got != want {
			t.Errorf("FormatCOP(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestRateTotals(t *testing.T) {
	r := Rate{Flete: 10000, MinimumInsurance: 500, ExtraInsurance: 250}
	if r.QuotedTotal() != 10750 {
		t.Errorf("quoted total: %v", r.QuotedTotal())
	}
	if r.ChargeTotal() != 10500 {
		t.Errorf("charge total: %v", r.ChargeTotal())
	}
}

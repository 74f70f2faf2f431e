package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
)

type ratesData struct {
	Rates []domain.Rate `json:"rates"`
}

// Quote posts a quote request. Rates are inline when the answer carries
// data.rates; otherwise they arrive later, correlated by CorrelationID.
func (c *Client) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteAck, error) {
	env, err := c.do(ctx, "quote", http.MethodPost, "/shipments/quote", nil, req)
	if err != nil {
		return nil, err
	}
	ack := &domain.QuoteAck{
		Success:       env.Success == nil || *env.Success,
		Message:       env.Message,
		CorrelationID: env.CorrelationID,
	}
	if env.hasData() {
		var d ratesData
		if err := env.decodeData(&d); err != nil {
			return nil, fmt.Errorf("quote: %w", err)
		}
		if d.Rates != nil {
			ack.Rates = d.Rates
			ack.RatesInline = true
		}
	}
	return ack, nil
}

// GenerateGuide posts a guide request. The legacy answer carries the guide in
// data; the asynchronous one only a correlation id and shipment id.
func (c *Client) GenerateGuide(ctx context.Context, req domain.GuideRequest) (*domain.GuideAck, error) {
	env, err := c.do(ctx, "generate_guide", http.MethodPost, "/shipments/generate", nil, req)
	if err != nil {
		return nil, err
	}
	ack := &domain.GuideAck{
		Success:       env.Success == nil || *env.Success,
		Message:       env.Message,
		CorrelationID: env.CorrelationID,
		ShipmentID:    rawUint(env.ShipmentID),
	}
	if env.hasData() {
		var g domain.GuideGeneratedPayload
		if err := env.decodeData(&g); err != nil {
			return nil, fmt.Errorf("generate guide: %w", err)
		}
		guide := g.Guide(ack.ShipmentID)
		if guide.Tracker != "" {
			ack.Guide = &guide
		}
	}
	return ack, nil
}

// Track queries the carrier history of a tracking number.
func (c *Client) Track(ctx context.Context, trackingNumber string) (*domain.TrackingResult, error) {
	path := "/shipments/tracking/" + url.PathEscape(trackingNumber) + "/track"
	env, err := c.do(ctx, "track", http.MethodPost, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var res domain.TrackingResult
	if err := env.decodeData(&res); err != nil {
		return nil, fmt.Errorf("track: %w", err)
	}
	if res.TrackingNumber == "" {
		res.TrackingNumber = trackingNumber
	}
	return &res, nil
}

// CancelShipment asks the backend to cancel a shipment.
func (c *Client) CancelShipment(ctx context.Context, shipmentID uint) (*domain.CancelResult, error) {
	path := "/shipments/" + strconv.FormatUint(uint64(shipmentID), 10) + "/cancel"
	env, err := c.do(ctx, "cancel", http.MethodPost, path, nil, nil)
	if err != nil {
		return nil, err
	}
	res := &domain.CancelResult{Message: env.Message}
	if env.hasData() {
		if err := env.decodeData(res); err != nil {
			return nil, fmt.Errorf("cancel: %w", err)
		}
	}
	return res, nil
}

// GetShipment fetches one shipment.
func (c *Client) GetShipment(ctx context.Context, shipmentID uint) (*domain.Shipment, error) {
	path := "/shipments/" + strconv.FormatUint(uint64(shipmentID), 10)
	env, err := c.do(ctx, "get_shipment", http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	var s domain.Shipment
	if err := env.decodeData(&s); err != nil {
		return nil, fmt.Errorf("get shipment: %w", err)
	}
	return &s, nil
}

// ListShipments fetches one page. The items may come as data itself, with
// pagination at the top level, or as data.data.
func (c *Client) ListShipments(ctx context.Context, f ports.ShipmentFilter) (*domain.ShipmentPage, error) {
	env, err := c.do(ctx, "list_shipments", http.MethodGet, "/shipments", filterQuery(f), nil)
	if err != nil {
		return nil, err
	}
	page := &domain.ShipmentPage{}
	if bytes.HasPrefix(bytes.TrimSpace(env.Data), []byte("[")) {
		if err := env.decodeData(&page.Items); err != nil {
			return nil, fmt.Errorf("list shipments: %w", err)
		}
		page.Total, page.Page, page.PageSize, page.TotalPages = env.Total, env.Page, env.PageSize, env.TotalPages
	} else if env.hasData() {
		if err := env.decodeData(page); err != nil {
			return nil, fmt.Errorf("list shipments: %w", err)
		}
	}
	if page.Items == nil {
		page.Items = []domain.Shipment{}
	}
	return page, nil
}

func filterQuery(f ports.ShipmentFilter) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(f.PageSize))
	}
	if f.BusinessID > 0 {
		q.Set("business_id", strconv.FormatUint(uint64(f.BusinessID), 10))
	}
	set("order_id", f.OrderID)
	set("tracking_number", f.TrackingNumber)
	set("carrier", f.Carrier)
	set("status", f.Status)
	set("start_date", f.StartDate)
	set("end_date", f.EndDate)
	set("sort_by", f.SortBy)
	set("order", f.SortOrder)
	if f.IsTest != nil {
		q.Set("is_test", strconv.FormatBool(*f.IsTest))
	}
	return q
}

// rawUint reads a JSON number or numeric string.
func rawUint(v json.RawMessage) uint {
	if len(v) == 0 {
		return 0
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
			return uint(u)
		}
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		if u, err := strconv.ParseUint(s, 10, 64); err == nil {
			return uint(u)
		}
	}
	return 0
}

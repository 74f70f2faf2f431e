package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   []byte
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *recordingObserver) BackendCall(op string, _ int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, op)
}

func newTestClient(t *testing.T, status int, body string) (*Client, *recordedRequest, *recordingObserver) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*rec = recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   b,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	obs := &recordingObserver{}
	c := New(Config{BaseURL: srv.URL + "/", ServiceToken: "svc", Observer: obs}, zerolog.Nop())
	return c, rec, obs
}

func TestClient_BearerOverride(t *testing.T) {
	c, rec, obs := newTestClient(t, http.StatusOK, `{"success":true,"data":[]}`)

	_, err := c.ListOriginAddresses(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "Bearer svc", rec.Auth)
	assert.Equal(t, "business_id=3", rec.Query)

	_, err = c.ListOriginAddresses(WithBearer(context.Background(), "user-token"), 3)
	require.NoError(t, err)
	assert.Equal(t, "Bearer user-token", rec.Auth)
	assert.Equal(t, []string{"list_origins", "list_origins"}, obs.calls)
}

func TestClient_ErrorMessagePrecedence(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"message wins", http.StatusBadRequest, `{"message":"bad input","error":"E1"}`, "bad input"},
		{"error field", http.StatusConflict, `{"error":"already cancelled"}`, "already cancelled"},
		{"status text", http.StatusBadGateway, ``, "Bad Gateway"},
		{"non json body", http.StatusInternalServerError, `<html>oops</html>`, "Internal Server Error"},
		{"success false on 200", http.StatusOK, `{"success":false,"message":"sin cobertura"}`, "sin cobertura"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestClient(t, tt.status, tt.body)
			_, err := c.GetShipment(context.Background(), 1)

			var be *domain.BackendError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, tt.status, be.Status)
			assert.Equal(t, tt.want, be.Message)
		})
	}
}

func TestClient_QuoteInline(t *testing.T) {
	c, rec, _ := newTestClient(t, http.StatusOK,
		`{"success":true,"data":{"rates":[{"idRate":7,"carrier":"tcc","flete":10000,"minimumInsurance":500,"extraInsurance":1500}]}}`)

	ack, err := c.Quote(context.Background(), domain.QuoteRequest{BusinessID: 4, Description: "libros"})
	require.NoError(t, err)
	assert.True(t, ack.RatesInline)
	require.Len(t, ack.Rates, 1)
	assert.Equal(t, 7, ack.Rates[0].IDRate)
	assert.Equal(t, 12000.0, ack.Rates[0].QuotedTotal())

	assert.Equal(t, http.MethodPost, rec.Method)
	assert.Equal(t, "/shipments/quote", rec.Path)
	var sent map[string]any
	require.NoError(t, json.Unmarshal(rec.Body, &sent))
	assert.Equal(t, "libros", sent["description"])
}

func TestClient_QuoteCorrelated(t *testing.T) {
	c, _, _ := newTestClient(t, http.StatusAccepted, `{"success":true,"message":"processing","correlation_id":"corr-1"}`)

	ack, err := c.Quote(context.Background(), domain.QuoteRequest{})
	require.NoError(t, err)
	assert.False(t, ack.RatesInline)
	assert.Empty(t, ack.Rates)
	assert.Equal(t, "corr-1", ack.CorrelationID)
}

func TestClient_GenerateGuideShapes(t *testing.T) {
	t.Run("legacy guide in data", func(t *testing.T) {
		c, _, _ := newTestClient(t, http.StatusOK,
			`{"success":true,"shipment_id":"55","data":{"tracking_number":"TN1","label_url":"https://l/1.pdf","my_shipment_reference":"REF"}}`)

		ack, err := c.GenerateGuide(context.Background(), domain.GuideRequest{IDRate: 7})
		require.NoError(t, err)
		require.NotNil(t, ack.Guide)
		assert.Equal(t, domain.Guide{ShipmentID: 55, Tracker: "TN1", URL: "https://l/1.pdf", MyShipmentReference: "REF"}, *ack.Guide)
	})

	t.Run("asynchronous ack", func(t *testing.T) {
		c, _, _ := newTestClient(t, http.StatusAccepted, `{"success":true,"correlation_id":"g-1","shipment_id":56}`)

		ack, err := c.GenerateGuide(context.Background(), domain.GuideRequest{IDRate: 7})
		require.NoError(t, err)
		assert.Nil(t, ack.Guide)
		assert.Equal(t, "g-1", ack.CorrelationID)
		assert.Equal(t, uint(56), ack.ShipmentID)
	})
}

func TestClient_ListShipmentsShapes(t *testing.T) {
	t.Run("top level pagination", func(t *testing.T) {
		c, rec, _ := newTestClient(t, http.StatusOK,
			`{"success":true,"data":[{"id":1,"status":"pending"}],"total":21,"page":2,"page_size":20,"total_pages":2}`)

		page, err := c.ListShipments(context.Background(), ports.ShipmentFilter{BusinessID: 4, Status: "pending", Page: 2})
		require.NoError(t, err)
		assert.Len(t, page.Items, 1)
		assert.Equal(t, int64(21), page.Total)
		assert.Equal(t, 2, page.TotalPages)
		assert.Equal(t, "business_id=4&page=2&status=pending", rec.Query)
	})

	t.Run("page object", func(t *testing.T) {
		c, _, _ := newTestClient(t, http.StatusOK,
			`{"success":true,"data":{"data":[{"id":1},{"id":2}],"total":2,"page":1,"page_size":20,"total_pages":1}}`)

		page, err := c.ListShipments(context.Background(), ports.ShipmentFilter{})
		require.NoError(t, err)
		assert.Len(t, page.Items, 2)
		assert.Equal(t, int64(2), page.Total)
	})

	t.Run("empty", func(t *testing.T) {
		c, _, _ := newTestClient(t, http.StatusOK, `{"success":true,"data":null}`)

		page, err := c.ListShipments(context.Background(), ports.ShipmentFilter{})
		require.NoError(t, err)
		assert.NotNil(t, page.Items)
		assert.Empty(t, page.Items)
	})
}

func TestClient_BalanceShapes(t *testing.T) {
	tests := []struct {
		body string
		want float64
	}{
		{`{"data":150000}`, 150000},
		{`{"data":{"balance":2000}}`, 2000},
		{`{"data":{"balance":2000,"available_balance":1500}}`, 1500},
	}
	for _, tt := range tests {
		c, rec, _ := newTestClient(t, http.StatusOK, tt.body)
		got, err := c.Balance(context.Background(), 9)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, "/wallet/balance", rec.Path)
	}

	c, _, _ := newTestClient(t, http.StatusOK, `{"data":{}}`)
	_, err := c.Balance(context.Background(), 9)
	assert.Error(t, err)
}

func TestClient_TrackEscapesNumber(t *testing.T) {
	c, rec, _ := newTestClient(t, http.StatusOK,
		`{"data":{"carrier":"tcc","status":"in_transit","history":[{"date":"2026-01-02","status":"in_transit"}]}}`)

	res, err := c.Track(context.Background(), "AB 12")
	require.NoError(t, err)
	assert.Equal(t, "AB 12", res.TrackingNumber)
	assert.Len(t, res.History, 1)
	assert.Equal(t, "/shipments/tracking/AB 12/track", rec.Path)
}

func TestClient_TransportError(t *testing.T) {
	obs := &recordingObserver{}
	c := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second, Observer: obs}, zerolog.Nop())

	_, err := c.GetOrder(context.Background(), "o-1")
	require.Error(t, err)
	var be *domain.BackendError
	assert.False(t, errors.As(err, &be))
	assert.Equal(t, []string{"get_order"}, obs.calls)
}

func TestClient_Ping(t *testing.T) {
	c, _, _ := newTestClient(t, http.StatusNotFound, ``)
	assert.NoError(t, c.Ping(context.Background()))

	c, _, _ = newTestClient(t, http.StatusServiceUnavailable, ``)
	assert.Error(t, c.Ping(context.Background()))
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
)

// ---------------------------------------------------------------------------
// Stubs
// ---------------------------------------------------------------------------

type stubWizardBackend struct {
	mu sync.Mutex

	balance      float64
	balanceErr   error
	balanceCalls int

	origins     []domain.OriginAddress
	originsErr  error
	originsHook func(ctx context.Context) error

	order    *domain.Order
	orderErr error

	quoteAck   *domain.QuoteAck
	quoteErr   error
	quoteHook  func(ctx context.Context) error
	quoteCalls int
	lastQuote  domain.QuoteRequest

	guideAck   *domain.GuideAck
	guideErr   error
	guideHook  func(ctx context.Context) error
	guideCalls int
	lastGuide  domain.GuideRequest
}

func (b *stubWizardBackend) Quote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteAck, error) {
	b.mu.Lock()
	b.quoteCalls++
	b.lastQuote = req
	hook := b.quoteHook
	b.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if b.quoteErr != nil {
		return nil, b.quoteErr
	}
	return b.quoteAck, nil
}

func (b *stubWizardBackend) GenerateGuide(ctx context.Context, req domain.GuideRequest) (*domain.GuideAck, error) {
	b.mu.Lock()
	b.guideCalls++
	b.lastGuide = req
	hook := b.guideHook
	b.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if b.guideErr != nil {
		return nil, b.guideErr
	}
	return b.guideAck, nil
}

func (b *stubWizardBackend) Balance(_ context.Context, _ uint) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balanceCalls++
	return b.balance, b.balanceErr
}

func (b *stubWizardBackend) ListOriginAddresses(ctx context.Context, _ uint) ([]domain.OriginAddress, error) {
	if b.originsHook != nil {
		if err := b.originsHook(ctx); err != nil {
			return nil, err
		}
	}
	return b.origins, b.originsErr
}

func (b *stubWizardBackend) CreateOriginAddress(_ context.Context, _ uint, addr domain.OriginAddress) (*domain.OriginAddress, error) {
	return &addr, nil
}

func (b *stubWizardBackend) UpdateOriginAddress(_ context.Context, _ uint, _ uint, addr domain.OriginAddress) (*domain.OriginAddress, error) {
	return &addr, nil
}

func (b *stubWizardBackend) DeleteOriginAddress(_ context.Context, _ uint, _ uint) error {
	return nil
}

func (b *stubWizardBackend) GetOrder(_ context.Context, _ string) (*domain.Order, error) {
	return b.order, b.orderErr
}

func (b *stubWizardBackend) calls() (quotes, guides int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.quoteCalls, b.guideCalls
}

type stubDane struct {
	byCity map[string]string
}

func newStubDane() *stubDane {
	return &stubDane{byCity: map[string]string{
		"bogota":   "11001000",
		"medellin": "05001000",
		"cali":     "76001000",
	}}
}

func (d *stubDane) Lookup(city, _ string) (string, bool) {
	code, ok := d.byCity[strings.ToLower(strings.TrimSpace(city))]
	return code, ok
}

func (d *stubDane) ResolveOrDefault(city, department string) (string, bool) {
	if code, ok := d.Lookup(city, department); ok {
		return code, false
	}
	return "11001000", true
}

func (d *stubDane) Known(code string) bool {
	for _, c := range d.byCity {
		if c == code {
			return true
		}
	}
	return false
}

type stubWizardObserver struct {
	transitions []string
	blocked     int
}

func (o *stubWizardObserver) WizardTransition(from, to string) {
	o.transitions = append(o.transitions, from+">"+to)
}

func (o *stubWizardObserver) BalanceGuardBlocked() { o.blocked++ }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var testRates = []domain.Rate{
	{IDRate: 7, IDProduct: 1, Product: "Estándar", Carrier: "servientrega", Flete: 10000, MinimumInsurance: 500, ExtraInsurance: 1500, DeliveryDays: 3},
	{IDRate: 9, IDProduct: 2, Product: "Express", Carrier: "coordinadora", Flete: 15000, MinimumInsurance: 700, DeliveryDays: 1, COD: true},
}

func newTestWizard(b *stubWizardBackend) (*GuideWizard, *stubWizardObserver) {
	obs := &stubWizardObserver{}
	w := NewGuideWizard(42, WizardDeps{
		Backend:  b,
		Dane:     newStubDane(),
		Observer: obs,
		Log:      zerolog.Nop(),
	})
	return w, obs
}

func validShipment() ShipmentForm {
	return ShipmentForm{
		OriginDaneCode:      "11001000",
		OriginAddress:       "Calle 100 # 15-20",
		DestinationDaneCode: "05001000",
		DestinationAddress:  "Carrera 43A # 1-50",
		Weight:              2,
		Height:              10,
		Width:               20,
		Length:              30,
		Description:         "Zapatos",
		ContentValue:        150000,
	}
}

func validContact() ContactForm {
	return ContactForm{
		Origin: ContactDetails{
			Company: "Tienda Uno", FirstName: "Ana", LastName: "Gómez",
			Email: "ana@tienda.co", Phone: "3001234567",
			Suburb: "Chicó", CrossStreet: "Calle 94", Reference: "Local 2",
		},
		Destination: ContactDetails{
			Company: "Cliente", FirstName: "Luis", LastName: "Pérez",
			Email: "luis@mail.co", Phone: "3109876543",
			Suburb: "El Poblado", CrossStreet: "Calle 10", Reference: "Torre 3",
		},
		MyShipmentReference: "PED-1001",
	}
}

func inlineRates(rates ...domain.Rate) *domain.QuoteAck {
	return &domain.QuoteAck{Success: true, Rates: rates, RatesInline: true}
}

func makeEvent(t *testing.T, kind domain.EventKind, correlationID string, shipmentID uint, payload any) domain.Event {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return domain.Event{
		Kind:          kind,
		BusinessID:    42,
		CorrelationID: correlationID,
		ShipmentID:    shipmentID,
		Data:          data,
	}
}

// toConfirmation drives a wizard from step 1 to step 4 with inline rates.
func toConfirmation(t *testing.T, w *GuideWizard, idRate int) {
	t.Helper()
	ctx := context.Background()
	if err := w.SubmitShipment(ctx, validShipment()); err != nil {
		t.Fatalf("submit shipment: %v", err)
	}
	if err := w.SelectRate(idRate); err != nil {
		t.Fatalf("select rate: %v", err)
	}
	if err := w.SubmitContact(validContact()); err != nil {
		t.Fatalf("submit contact: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Open / prefill
// ---------------------------------------------------------------------------

func TestWizard_Open_PrefetchesAndSelectsDefaultOrigin(t *testing.T) {
	weight := 3.5
	b := &stubWizardBackend{
		balance: 50000,
		origins: []domain.OriginAddress{
			{ID: 1, Alias: "Bodega", Street: "Calle 1", DaneCode: "76001000"},
			{ID: 2, Alias: "Oficina", Street: "Calle 100 # 15-20", DaneCode: "11001000", Company: "Tienda Uno", IsDefault: true},
		},
		order: &domain.Order{
			ID: "ord-1", OrderNumber: "PED-1001", CustomerName: "Luis Pérez Gómez",
			ShippingStreet: "Carrera 43A # 1-50", ShippingCity: "Medellin", ShippingState: "Antioquia",
			TotalAmount: 120000, Weight: &weight,
		},
	}
	w, _ := newTestWizard(b)

	degraded := w.Open(context.Background(), OpenOptions{OrderID: "ord-1"})
	if len(degraded) != 0 {
		t.Fatalf("expected no degradations, got %v", degraded)
	}

	v := w.Snapshot()
	if v.Balance == nil || *v.Balance != 50000 {
		t.Errorf("expected balance 50000, got %v", v.Balance)
	}
	if v.DefaultOriginID != 2 {
		t.Errorf("expected default origin 2, got %d", v.DefaultOriginID)
	}
	if v.Shipment == nil {
		t.Fatal("expected prefilled shipment form")
	}
	if v.Shipment.OriginDaneCode != "11001000" || v.Shipment.OriginAddress != "Calle 100 # 15-20" {
		t.Errorf("origin not prefilled: %+v", v.Shipment)
	}
	if v.Shipment.DestinationDaneCode != "05001000" {
		t.Errorf("expected destination 05001000, got %s", v.Shipment.DestinationDaneCode)
	}
	if v.Shipment.Weight != 3.5 || v.Shipment.ContentValue != 120000 {
		t.Errorf("package not prefilled from order: %+v", v.Shipment)
	}
	if v.Contact == nil || v.Contact.Destination.FirstName != "Luis" || v.Contact.Destination.LastName != "Pérez Gómez" {
		t.Errorf("destination contact not prefilled: %+v", v.Contact)
	}
	if v.Contact.ExternalOrderID != "ord-1" || v.Contact.MyShipmentReference != "PED-1001" {
		t.Errorf("order references not prefilled: %+v", v.Contact)
	}
	if v.Step != StepAddressAndPackage {
		t.Errorf("expected step 1, got %d", v.Step)
	}
}

func TestWizard_Open_UnknownCityFallsBackToDefaultCode(t *testing.T) {
	b := &stubWizardBackend{
		order: &domain.Order{ID: "ord-2", ShippingCity: "Macondo", ShippingState: "Magdalena"},
	}
	w, _ := newTestWizard(b)

	degraded := w.Open(context.Background(), OpenOptions{OrderID: "ord-2"})

	v := w.Snapshot()
	if v.Shipment.DestinationDaneCode != "11001000" {
		t.Errorf("expected fallback code 11001000, got %q", v.Shipment.DestinationDaneCode)
	}
	found := false
	for _, d := range degraded {
		if d.Feature == "dane_lookup" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected dane_lookup degradation, got %v", degraded)
	}
}

func TestWizard_Open_PrefetchFailuresAreSoft(t *testing.T) {
	b := &stubWizardBackend{
		balanceErr: errors.New("wallet down"),
		originsErr: errors.New("timeout"),
		orderErr:   &domain.BackendError{Status: 404, Message: "order not found"},
	}
	w, _ := newTestWizard(b)

	degraded := w.Open(context.Background(), OpenOptions{OrderID: "missing"})
	if len(degraded) != 3 {
		t.Fatalf("expected 3 degradations, got %v", degraded)
	}

	v := w.Snapshot()
	if v.Balance != nil {
		t.Error("expected unknown balance")
	}
	if v.Step != StepAddressAndPackage {
		t.Errorf("wizard must stay usable on step 1, got %d", v.Step)
	}
}

func TestWizard_Open_CancelledCallerAbortsPrefetch(t *testing.T) {
	b := &stubWizardBackend{
		balance: 500,
		originsHook: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	w, _ := newTestWizard(b)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	done := make(chan []domain.Degradation, 1)
	go func() { done <- w.Open(ctx, OpenOptions{}) }()

	var degraded []domain.Degradation
	select {
	case degraded = <-done:
	case <-time.After(time.Second):
		t.Fatal("Open did not return after the caller went away")
	}
	if len(degraded) != 1 || degraded[0].Feature != "prefetch" {
		t.Fatalf("expected a single prefetch degradation, got %v", degraded)
	}
	if v := w.Snapshot(); v.Balance == nil || *v.Balance != 500 {
		t.Errorf("completed fetches must still apply, got %v", v.Balance)
	}
}

// ---------------------------------------------------------------------------
// Step 1: quote
// ---------------------------------------------------------------------------

func TestWizard_SubmitShipment_InlineRates(t *testing.T) {
	b := &stubWizardBackend{quoteAck: inlineRates(testRates...)}
	w, obs := newTestWizard(b)

	if err := w.SubmitShipment(context.Background(), validShipment()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v := w.Snapshot()
	if v.Step != StepRateSelection {
		t.Fatalf("expected step 2, got %d", v.Step)
	}
	if len(v.Rates) != 2 {
		t.Fatalf("expected 2 rates, got %d", len(v.Rates))
	}
	if b.lastQuote.BusinessID != 42 || b.lastQuote.Packages[0].Weight != 2 {
		t.Errorf("unexpected quote request: %+v", b.lastQuote)
	}
	if b.lastQuote.CODValue != nil {
		t.Error("expected no COD value when COD is not set")
	}
	if len(obs.transitions) != 1 || obs.transitions[0] != "address_and_package>rate_selection" {
		t.Errorf("unexpected transitions: %v", obs.transitions)
	}
}

func TestWizard_SubmitShipment_EmptyRatesStaysOnStep1(t *testing.T) {
	cases := map[string]*domain.QuoteAck{
		"empty inline list": inlineRates(),
		"missing data":      {Success: true, Message: "ok"},
	}
	for name, ack := range cases {
		t.Run(name, func(t *testing.T) {
			w, _ := newTestWizard(&stubWizardBackend{quoteAck: ack})

			err := w.SubmitShipment(context.Background(), validShipment())
			if !errors.Is(err, domain.ErrNoRates) {
				t.Fatalf("expected ErrNoRates, got %v", err)
			}
			v := w.Snapshot()
			if v.Step != StepAddressAndPackage {
				t.Errorf("expected step 1, got %d", v.Step)
			}
			if v.Error == "" {
				t.Error("expected step-level error message")
			}
		})
	}
}

func TestWizard_SubmitShipment_ValidationBlocksCall(t *testing.T) {
	b := &stubWizardBackend{quoteAck: inlineRates(testRates...)}
	w, _ := newTestWizard(b)

	form := validShipment()
	form.Weight = 0
	form.Height = 301
	form.Description = "ab"
	form.DestinationDaneCode = "99999999"

	err := w.SubmitShipment(context.Background(), form)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"weight", "height", "description", "destination_dane_code"} {
		if _, ok := ve.Fields[field]; !ok {
			t.Errorf("expected error on %s, got %v", field, ve.Fields)
		}
	}
	if q, _ := b.calls(); q != 0 {
		t.Errorf("expected no quote call, got %d", q)
	}
}

func TestWizard_SubmitShipment_CODRequiresPaymentMethod(t *testing.T) {
	w, _ := newTestWizard(&stubWizardBackend{quoteAck: inlineRates(testRates...)})

	form := validShipment()
	cod := 80000.0
	form.CODValue = &cod

	err := w.SubmitShipment(context.Background(), form)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := ve.Fields["cod_payment_method"]; !ok {
		t.Errorf("expected cod_payment_method error, got %v", ve.Fields)
	}
}

func TestWizard_SubmitShipment_CorrelatedQuoteResolvedBySSE(t *testing.T) {
	b := &stubWizardBackend{quoteAck: &domain.QuoteAck{Success: true, CorrelationID: "corr-q1"}}
	w, _ := newTestWizard(b)

	if err := w.SubmitShipment(context.Background(), validShipment()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v := w.Snapshot()
	if v.Phase != PhaseQuoting || v.Step != StepAddressAndPackage {
		t.Fatalf("expected quoting on step 1, got %s/%d", v.Phase, v.Step)
	}
	if err := w.SubmitShipment(context.Background(), validShipment()); !errors.Is(err, domain.ErrQuotePending) {
		t.Errorf("expected ErrQuotePending on resubmit, got %v", err)
	}

	other := makeEvent(t, domain.EventQuoteReceived, "corr-other", 0, domain.QuoteReceivedPayload{Rates: testRates})
	if w.HandleEvent(other) {
		t.Error("event for another correlation id must not be consumed")
	}

	evt := makeEvent(t, domain.EventQuoteReceived, "corr-q1", 0, domain.QuoteReceivedPayload{CorrelationID: "corr-q1", Rates: testRates})
	if !w.HandleEvent(evt) {
		t.Fatal("expected event to be consumed")
	}
	if w.HandleEvent(evt) {
		t.Error("second delivery must be a no-op")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	rates, err := w.AwaitQuote(ctx)
	if err != nil || len(rates) != 2 {
		t.Fatalf("expected 2 rates, got %v (%v)", rates, err)
	}
	if got := w.Snapshot().Step; got != StepRateSelection {
		t.Errorf("expected step 2, got %d", got)
	}
}

func TestWizard_SubmitShipment_QuoteFailedEvent(t *testing.T) {
	b := &stubWizardBackend{quoteAck: &domain.QuoteAck{Success: true, CorrelationID: "corr-q2"}}
	w, _ := newTestWizard(b)
	_ = w.SubmitShipment(context.Background(), validShipment())

	evt := makeEvent(t, domain.EventQuoteFailed, "corr-q2", 0, domain.FailurePayload{Error: "carrier timeout"})
	w.HandleEvent(evt)

	_, err := w.AwaitQuote(context.Background())
	if !errors.Is(err, domain.ErrQuoteFailed) {
		t.Fatalf("expected ErrQuoteFailed, got %v", err)
	}
	v := w.Snapshot()
	if v.Step != StepAddressAndPackage || !strings.Contains(v.Error, "carrier timeout") {
		t.Errorf("expected step 1 with error, got %d %q", v.Step, v.Error)
	}
}

func TestWizard_SubmitShipment_EventBeforeAckIsReplayed(t *testing.T) {
	b := &stubWizardBackend{quoteAck: &domain.QuoteAck{Success: true, CorrelationID: "corr-early"}}
	w, _ := newTestWizard(b)

	evt := makeEvent(t, domain.EventQuoteReceived, "corr-early", 0, domain.QuoteReceivedPayload{Rates: testRates})
	b.quoteHook = func(context.Context) error {
		w.HandleEvent(evt)
		return nil
	}

	if err := w.SubmitShipment(context.Background(), validShipment()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := w.Snapshot().Step; got != StepRateSelection {
		t.Errorf("expected early event to complete the quote, got step %d", got)
	}
}

// ---------------------------------------------------------------------------
// Navigation
// ---------------------------------------------------------------------------

func TestWizard_BackNavigationKeepsDataWithoutNewCalls(t *testing.T) {
	b := &stubWizardBackend{quoteAck: inlineRates(testRates...)}
	w, _ := newTestWizard(b)
	toConfirmation(t, w, 7)

	for i := 0; i < 3; i++ {
		if err := w.Back(); err != nil {
			t.Fatalf("back %d: %v", i, err)
		}
	}
	if err := w.Back(); !errors.Is(err, domain.ErrInvalidStep) {
		t.Errorf("expected ErrInvalidStep on step 1, got %v", err)
	}

	v := w.Snapshot()
	if v.Shipment == nil || *v.Shipment != validShipment() {
		t.Errorf("step 1 data lost: %+v", v.Shipment)
	}
	if v.Contact == nil || v.Contact.MyShipmentReference != "PED-1001" {
		t.Errorf("step 3 data lost: %+v", v.Contact)
	}
	if v.Selected == nil || v.Selected.IDRate != 7 {
		t.Errorf("selected rate lost: %+v", v.Selected)
	}

	// Forward again with the same form: no new quote.
	toConfirmation(t, w, 7)
	if q, _ := b.calls(); q != 1 {
		t.Errorf("expected exactly 1 quote call, got %d", q)
	}
	if got := w.Snapshot().Step; got != StepPaymentConfirmation {
		t.Errorf("expected step 4, got %d", got)
	}
}

func TestWizard_ChangedFormRequotesAndDropsStaleSelection(t *testing.T) {
	b := &stubWizardBackend{quoteAck: inlineRates(testRates...)}
	w, _ := newTestWizard(b)
	toConfirmation(t, w, 9)

	_ = w.Back()
	_ = w.Back()
	_ = w.Back()

	b.quoteAck = inlineRates(domain.Rate{IDRate: 21, Carrier: "tcc", Flete: 9000})
	form := validShipment()
	form.Weight = 5
	if err := w.SubmitShipment(context.Background(), form); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q, _ := b.calls(); q != 2 {
		t.Errorf("expected a second quote, got %d calls", q)
	}
	v := w.Snapshot()
	if v.Selected != nil {
		t.Errorf("rate 9 is not in the new quote and must be dropped, got %+v", v.Selected)
	}
	if v.Contact == nil || v.Contact.MyShipmentReference != "PED-1001" {
		t.Error("contact data must survive a requote")
	}
}

func TestWizard_StepOrderIsEnforced(t *testing.T) {
	w, _ := newTestWizard(&stubWizardBackend{quoteAck: inlineRates(testRates...)})

	if err := w.SelectRate(7); !errors.Is(err, domain.ErrInvalidStep) {
		t.Errorf("select before quote: expected ErrInvalidStep, got %v", err)
	}
	if err := w.SubmitContact(validContact()); !errors.Is(err, domain.ErrInvalidStep) {
		t.Errorf("contact on step 1: expected ErrInvalidStep, got %v", err)
	}
	if err := w.Confirm(context.Background()); !errors.Is(err, domain.ErrInvalidStep) {
		t.Errorf("confirm on step 1: expected ErrInvalidStep, got %v", err)
	}

	_ = w.SubmitShipment(context.Background(), validShipment())
	if err := w.SelectRate(12345); !errors.Is(err, domain.ErrUnknownRate) {
		t.Errorf("expected ErrUnknownRate, got %v", err)
	}
}

func TestWizard_SubmitContact_Validation(t *testing.T) {
	w, _ := newTestWizard(&stubWizardBackend{quoteAck: inlineRates(testRates...)})
	_ = w.SubmitShipment(context.Background(), validShipment())
	_ = w.SelectRate(7)

	form := validContact()
	form.Origin.Phone = "300123"
	form.Destination.Email = "not-an-email"
	form.Destination.FirstName = "Maximilianoooooo"
	form.RequestPickup = true

	err := w.SubmitContact(form)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	for _, field := range []string{"origin.phone", "destination.email", "destination.first_name"} {
		if _, ok := ve.Fields[field]; !ok {
			t.Errorf("expected error on %s, got %v", field, ve.Fields)
		}
	}

	form = validContact()
	form.RequestPickup = true
	err = w.SubmitContact(form)
	if !errors.As(err, &ve) || ve.Fields["pickup_date"] == "" {
		t.Errorf("expected pickup_date error, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Step 4: confirmation
// ---------------------------------------------------------------------------

func TestWizard_TotalCostInvariants(t *testing.T) {
	w, _ := newTestWizard(&stubWizardBackend{quoteAck: inlineRates(testRates...)})
	toConfirmation(t, w, 7)

	v := w.Snapshot()
	if v.Rates[0].Total != 12000 {
		t.Errorf("list total must include extra insurance: got %v", v.Rates[0].Total)
	}
	if v.TotalCost != 10500 {
		t.Errorf("confirmation total must be flete + minimum insurance: got %v", v.TotalCost)
	}
	if v.Selected.CarrierName != "Servientrega" {
		t.Errorf("expected carrier display name, got %q", v.Selected.CarrierName)
	}
}

func TestWizard_Confirm_InsufficientBalanceMakesNoCall(t *testing.T) {
	b := &stubWizardBackend{balance: 10000, quoteAck: inlineRates(domain.Rate{IDRate: 7, Carrier: "tcc", Flete: 12000, MinimumInsurance: 500})}
	w, obs := newTestWizard(b)
	w.Open(context.Background(), OpenOptions{})
	toConfirmation(t, w, 7)

	err := w.Confirm(context.Background())
	var ib *domain.InsufficientBalanceError
	if !errors.As(err, &ib) {
		t.Fatalf("expected InsufficientBalanceError, got %v", err)
	}
	if !strings.Contains(err.Error(), "$12.500") || !strings.Contains(err.Error(), "$10.000") {
		t.Errorf("message must name both amounts: %q", err.Error())
	}
	if _, g := b.calls(); g != 0 {
		t.Errorf("expected no generate call, got %d", g)
	}
	if obs.blocked != 1 {
		t.Errorf("expected guard metric, got %d", obs.blocked)
	}
	v := w.Snapshot()
	if v.Shortfall != 2500 {
		t.Errorf("expected shortfall 2500, got %v", v.Shortfall)
	}
	if v.Step != StepPaymentConfirmation {
		t.Errorf("wizard must stay on step 4, got %d", v.Step)
	}
}

func TestWizard_Confirm_UnknownBalanceIsFetched(t *testing.T) {
	b := &stubWizardBackend{
		balance:    100000,
		quoteAck:   inlineRates(testRates...),
		guideAck:   &domain.GuideAck{Success: true, Guide: &domain.Guide{Tracker: "SV123", URL: "https://labels/SV123.pdf"}},
		balanceErr: nil,
	}
	w, _ := newTestWizard(b)
	toConfirmation(t, w, 7)

	if err := w.Confirm(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.balanceCalls != 1 {
		t.Errorf("expected balance fetched once, got %d", b.balanceCalls)
	}
}

func TestWizard_Confirm_BalanceUnavailable(t *testing.T) {
	b := &stubWizardBackend{balanceErr: errors.New("wallet down"), quoteAck: inlineRates(testRates...)}
	w, _ := newTestWizard(b)
	toConfirmation(t, w, 7)

	if err := w.Confirm(context.Background()); !errors.Is(err, domain.ErrBalanceUnavailable) {
		t.Fatalf("expected ErrBalanceUnavailable, got %v", err)
	}
	if _, g := b.calls(); g != 0 {
		t.Errorf("expected no generate call, got %d", g)
	}
}

func TestWizard_Confirm_SyncGuide(t *testing.T) {
	b := &stubWizardBackend{
		balance:  100000,
		quoteAck: inlineRates(testRates...),
		guideAck: &domain.GuideAck{Success: true, ShipmentID: 88, Guide: &domain.Guide{Tracker: "SV123", URL: "https://labels/SV123.pdf", MyShipmentReference: "PED-1001"}},
	}
	w, _ := newTestWizard(b)
	w.Open(context.Background(), OpenOptions{})

	var got []domain.Guide
	w.OnGuideGenerated(func(g domain.Guide) { got = append(got, g) })
	toConfirmation(t, w, 7)

	if err := w.Confirm(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.lastGuide.IDRate != 7 || b.lastGuide.TotalCost != 10500 {
		t.Errorf("unexpected guide request: %+v", b.lastGuide)
	}
	if b.lastGuide.Origin.Phone != "3001234567" || b.lastGuide.Destination.DaneCode != "05001000" {
		t.Errorf("guide request must merge step 1 and step 3: %+v", b.lastGuide)
	}

	// The SSE confirmation of the same guide arrives afterwards.
	late := makeEvent(t, domain.EventGuideGenerated, "", 88, domain.GuideGeneratedPayload{TrackingNumber: "SV123"})
	w.HandleEvent(late)

	if len(got) != 1 || got[0].Tracker != "SV123" || got[0].ShipmentID != 88 {
		t.Fatalf("expected one callback with SV123, got %+v", got)
	}
	v := w.Snapshot()
	if v.Phase != PhaseGenerated || v.GuideSource != "http" {
		t.Errorf("expected generated via http, got %s/%s", v.Phase, v.GuideSource)
	}
	if err := w.Back(); !errors.Is(err, domain.ErrInvalidStep) {
		t.Errorf("back after generation: expected ErrInvalidStep, got %v", err)
	}
	if err := w.Confirm(context.Background()); err != nil {
		t.Errorf("second confirm must be a no-op, got %v", err)
	}
	if _, g := b.calls(); g != 1 {
		t.Errorf("expected 1 generate call, got %d", g)
	}
}

func TestWizard_Confirm_AsyncGuideResolvedBySSE(t *testing.T) {
	b := &stubWizardBackend{
		balance:  100000,
		quoteAck: inlineRates(testRates...),
		guideAck: &domain.GuideAck{Success: true, CorrelationID: "corr-g1", ShipmentID: 91},
	}
	w, _ := newTestWizard(b)
	w.Open(context.Background(), OpenOptions{})

	calls := 0
	w.OnGuideGenerated(func(domain.Guide) { calls++ })
	toConfirmation(t, w, 7)

	if err := w.Confirm(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Snapshot().Phase != PhaseGenerating {
		t.Fatal("expected generating phase while waiting for the event")
	}
	if err := w.Confirm(context.Background()); !errors.Is(err, domain.ErrGenerationInFlight) {
		t.Errorf("expected ErrGenerationInFlight, got %v", err)
	}
	if err := w.Back(); !errors.Is(err, domain.ErrGenerationInFlight) {
		t.Errorf("back while generating: expected ErrGenerationInFlight, got %v", err)
	}

	evt := makeEvent(t, domain.EventGuideGenerated, "corr-g1", 0, domain.GuideGeneratedPayload{
		TrackingNumber: "CO-777", LabelURL: "https://labels/CO-777.pdf", ShipmentReference: "PED-1001",
	})
	if !w.HandleEvent(evt) {
		t.Fatal("expected guide event to be consumed")
	}

	g, err := w.AwaitGuide(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Tracker != "CO-777" || g.URL != "https://labels/CO-777.pdf" || g.ShipmentID != 91 {
		t.Errorf("unexpected guide: %+v", g)
	}
	if calls != 1 {
		t.Errorf("expected one callback, got %d", calls)
	}
}

func TestWizard_Confirm_GuideFailedAllowsRetry(t *testing.T) {
	b := &stubWizardBackend{
		balance:  100000,
		quoteAck: inlineRates(testRates...),
		guideAck: &domain.GuideAck{Success: true, CorrelationID: "corr-g2"},
	}
	w, _ := newTestWizard(b)
	w.Open(context.Background(), OpenOptions{})
	toConfirmation(t, w, 7)
	_ = w.Confirm(context.Background())

	w.HandleEvent(makeEvent(t, domain.EventGuideFailed, "corr-g2", 0, domain.FailurePayload{Message: "carrier rejected"}))

	if _, err := w.AwaitGuide(context.Background()); !errors.Is(err, domain.ErrGuideFailed) {
		t.Fatalf("expected ErrGuideFailed, got %v", err)
	}
	if err := w.Confirm(context.Background()); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if _, g := b.calls(); g != 2 {
		t.Errorf("expected 2 generate calls, got %d", g)
	}
}

// ---------------------------------------------------------------------------
// Close
// ---------------------------------------------------------------------------

func TestWizard_CloseCancelsInFlightQuote(t *testing.T) {
	b := &stubWizardBackend{quoteAck: inlineRates(testRates...)}
	w, _ := newTestWizard(b)

	started := make(chan struct{})
	b.quoteHook = func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	errc := make(chan error, 1)
	go func() { errc <- w.SubmitShipment(context.Background(), validShipment()) }()
	<-started
	w.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, domain.ErrSessionClosed) {
			t.Errorf("expected ErrSessionClosed, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight quote was not cancelled by Close")
	}

	v := w.Snapshot()
	if v.Step != StepAddressAndPackage || v.Shipment != nil || len(v.Rates) != 0 {
		t.Errorf("expected a clean step 1 after close, got %+v", v)
	}
}

func TestWizard_CloseResetsAndReopenPrefetchesAgain(t *testing.T) {
	b := &stubWizardBackend{balance: 100000, quoteAck: inlineRates(testRates...)}
	w, _ := newTestWizard(b)
	w.Open(context.Background(), OpenOptions{})
	toConfirmation(t, w, 7)

	w.Close()
	if v := w.Snapshot(); v.Step != StepAddressAndPackage || v.Selected != nil || v.Balance != nil {
		t.Errorf("expected cleared state, got %+v", v)
	}

	w.Open(context.Background(), OpenOptions{})
	if b.balanceCalls != 2 {
		t.Errorf("expected balance prefetched on each open, got %d", b.balanceCalls)
	}
}

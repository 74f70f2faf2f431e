package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
)

// WizardStep is the position of the guide wizard.
type WizardStep int

const (
	StepAddressAndPackage WizardStep = iota + 1
	StepRateSelection
	StepContactDetails
	StepPaymentConfirmation
)

func (s WizardStep) String() string {
	switch s {
	case StepAddressAndPackage:
		return "address_and_package"
	case StepRateSelection:
		return "rate_selection"
	case StepContactDetails:
		return "contact_details"
	case StepPaymentConfirmation:
		return "payment_confirmation"
	default:
		return "unknown"
	}
}

// WizardPhase describes what the wizard is waiting on, if anything.
type WizardPhase string

const (
	PhaseEditing    WizardPhase = "editing"
	PhaseQuoting    WizardPhase = "quoting"
	PhaseGenerating WizardPhase = "generating"
	PhaseGenerated  WizardPhase = "generated"
)

const (
	sourceHTTP = "http"
	sourceSSE  = "sse"

	maxEarlyEvents = 32
)

// WizardObserver receives wizard metrics. It may be nil.
type WizardObserver interface {
	WizardTransition(from, to string)
	BalanceGuardBlocked()
}

// WizardDeps are the collaborators of a GuideWizard.
type WizardDeps struct {
	Backend   ports.WizardBackend
	Dane      ports.DaneResolver
	Validator *FormValidator
	Observer  WizardObserver
	Log       zerolog.Logger
}

// OpenOptions carries the optional order used to prefill a new session.
type OpenOptions struct {
	OrderID string
}

// GuideWizard drives the four-step guide generation flow for one business.
// Step data is kept when moving backwards and only cleared by Close.
type GuideWizard struct {
	businessID uint
	backend    ports.WizardBackend
	dane       ports.DaneResolver
	forms      *FormValidator
	observer   WizardObserver
	log        zerolog.Logger

	mu         sync.Mutex
	session    uint64
	sessionCtx context.Context
	cancel     context.CancelFunc

	step      WizardStep
	shipment  *ShipmentForm
	quotedFor *ShipmentForm
	rates     []domain.Rate
	selected  *domain.Rate
	contact   *ContactForm

	balance         *float64
	origins         []domain.OriginAddress
	defaultOrigin   *domain.OriginAddress
	order           *domain.Order
	prefillShipment *ShipmentForm
	prefillContact  *ContactForm
	degradations    []domain.Degradation

	quote            *Outcome[[]domain.Rate]
	quoteCorrelation string
	guide            *Outcome[domain.Guide]
	guideCorrelation string
	guideShipmentID  uint
	early            []domain.Event

	lastErr    string
	onGuide    []func(domain.Guide)
	lastActive time.Time
}

// NewGuideWizard returns a wizard positioned on step 1. Call Open to start a
// session with prefetched data.
func NewGuideWizard(businessID uint, deps WizardDeps) *GuideWizard {
	forms := deps.Validator
	if forms == nil {
		forms = NewFormValidator(deps.Dane)
	}
	w := &GuideWizard{
		businessID: businessID,
		backend:    deps.Backend,
		dane:       deps.Dane,
		forms:      forms,
		observer:   deps.Observer,
		log:        deps.Log,
	}
	w.resetLocked()
	return w
}

// BusinessID returns the tenant the wizard belongs to.
func (w *GuideWizard) BusinessID() uint {
	return w.businessID
}

// OnGuideGenerated registers fn to run once per session when the guide is
// available, whichever channel delivered it. Callbacks survive Close.
func (w *GuideWizard) OnGuideGenerated(fn func(domain.Guide)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onGuide = append(w.onGuide, fn)
}

// LastActive is the time of the last caller interaction.
func (w *GuideWizard) LastActive() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// Open starts a fresh session: state is cleared, then wallet balance, origin
// addresses and the optional order are fetched in parallel. Fetch failures
// never fail Open; they are recorded as degradations.
func (w *GuideWizard) Open(ctx context.Context, opts OpenOptions) []domain.Degradation {
	w.mu.Lock()
	w.closeLocked()
	session := w.session
	callCtx, done := w.callContextLocked(ctx)
	w.mu.Unlock()
	defer done()

	var (
		balance    *float64
		origins    []domain.OriginAddress
		order      *domain.Order
		degraded   []domain.Degradation
		degradedMu sync.Mutex
	)
	soft := func(feature string, err error) {
		degradedMu.Lock()
		defer degradedMu.Unlock()
		degraded = append(degraded, domain.Degradation{Feature: feature, Reason: err.Error()})
		w.log.Warn().Err(err).Uint("business_id", w.businessID).Str("feature", feature).Msg("wizard prefetch degraded")
	}

	// Backend failures degrade one feature; a cancelled caller or a closed
	// session aborts the remaining fetches through the group.
	g, gctx := errgroup.WithContext(callCtx)
	fetch := func(feature string, call func(context.Context) error) {
		g.Go(func() error {
			err := call(gctx)
			if err == nil {
				return nil
			}
			if gctx.Err() != nil {
				return fmt.Errorf("%s: %w", feature, err)
			}
			soft(feature, err)
			return nil
		})
	}
	fetch("wallet_balance", func(ctx context.Context) error {
		b, err := w.backend.Balance(ctx, w.businessID)
		if err == nil {
			balance = &b
		}
		return err
	})
	fetch("origin_addresses", func(ctx context.Context) error {
		list, err := w.backend.ListOriginAddresses(ctx, w.businessID)
		origins = list
		return err
	})
	if id := strings.TrimSpace(opts.OrderID); id != "" {
		fetch("order", func(ctx context.Context) error {
			o, err := w.backend.GetOrder(ctx, id)
			order = o
			return err
		})
	}
	if err := g.Wait(); err != nil {
		w.log.Info().Err(err).Uint("business_id", w.businessID).Msg("wizard prefetch aborted")
		degraded = append(degraded, domain.Degradation{Feature: "prefetch", Reason: err.Error()})
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if session != w.session {
		return nil
	}
	w.balance = balance
	w.origins = origins
	for i := range origins {
		if origins[i].IsDefault {
			def := origins[i]
			w.defaultOrigin = &def
			break
		}
	}
	w.order = order
	w.degradations = append(w.degradations, degraded...)
	w.prefillLocked()
	w.touchLocked()

	w.log.Info().
		Uint("business_id", w.businessID).
		Bool("balance_known", balance != nil).
		Int("origins", len(origins)).
		Bool("order", order != nil).
		Msg("wizard opened")

	return append([]domain.Degradation(nil), w.degradations...)
}

func (w *GuideWizard) degrade(d domain.Degradation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.degradations = append(w.degradations, d)
}

// prefillLocked seeds step 1 and step 3 from the default origin and the
// order. An order city without a DANE code falls back to the configured
// default code; the wizard is never blocked on it.
func (w *GuideWizard) prefillLocked() {
	form := ShipmentForm{}
	contact := ContactForm{}

	if o := w.defaultOrigin; o != nil {
		form.OriginDaneCode = o.DaneCode
		form.OriginAddress = o.Street
		contact.Origin = ContactDetails{
			Company:     o.Company,
			FirstName:   o.FirstName,
			LastName:    o.LastName,
			Email:       o.Email,
			Phone:       o.Phone,
			Suburb:      o.Suburb,
			CrossStreet: o.CrossStreet,
			Reference:   o.Reference,
		}
	}

	if o := w.order; o != nil {
		form.DestinationAddress = o.ShippingStreet
		if w.dane != nil {
			code, fellBack := w.dane.ResolveOrDefault(o.ShippingCity, o.ShippingState)
			form.DestinationDaneCode = code
			if fellBack {
				reason := fmt.Sprintf("no DANE code for %q/%q, using %s", o.ShippingCity, o.ShippingState, code)
				w.degradations = append(w.degradations, domain.Degradation{Feature: "dane_lookup", Reason: reason})
				w.log.Warn().Str("city", o.ShippingCity).Str("department", o.ShippingState).Str("fallback", code).Msg("order city not resolved")
			}
		}
		form.Weight = deref(o.Weight)
		form.Height = deref(o.Height)
		form.Width = deref(o.Width)
		form.Length = deref(o.Length)
		form.ContentValue = o.TotalAmount

		first, last := splitName(o.CustomerName)
		contact.Destination = ContactDetails{
			FirstName: first,
			LastName:  last,
			Email:     o.CustomerEmail,
			Phone:     o.CustomerPhone,
			Suburb:    o.ShippingSuburb,
		}
		contact.ExternalOrderID = o.ID
		contact.MyShipmentReference = o.OrderNumber
	}

	w.prefillShipment = &form
	w.prefillContact = &contact
}

// SubmitShipment validates step 1 and requests a quote. Resubmitting an
// unchanged form reuses the current rates without a call. When the backend
// answers with a correlation id only, the quote stays pending until the SSE
// event arrives; see AwaitQuote.
func (w *GuideWizard) SubmitShipment(ctx context.Context, form ShipmentForm) error {
	if err := w.forms.shipmentForm(form); err != nil {
		return err
	}

	w.mu.Lock()
	w.touchLocked()
	if w.step != StepAddressAndPackage {
		w.mu.Unlock()
		return domain.ErrInvalidStep
	}
	if w.quotePendingLocked() {
		w.mu.Unlock()
		return domain.ErrQuotePending
	}
	w.shipment = form.clone()
	w.lastErr = ""
	if w.quotedFor != nil && w.quotedFor.sameAs(form) && len(w.rates) > 0 {
		w.transitionLocked(StepRateSelection)
		w.mu.Unlock()
		return nil
	}

	out := NewOutcome[[]domain.Rate]()
	w.quote = out
	w.quoteCorrelation = ""
	session := w.session
	req := form.quoteRequest(w.businessID)
	callCtx, done := w.callContextLocked(ctx)
	w.mu.Unlock()
	defer done()

	ack, err := w.backend.Quote(callCtx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	if session != w.session {
		return domain.ErrSessionClosed
	}
	if err != nil {
		w.settleQuoteLocked(out, nil, fmt.Errorf("quote: %w", err), sourceHTTP)
		return w.quoteErrLocked(out)
	}

	switch {
	case ack.RatesInline:
		w.settleQuoteLocked(out, ack.Rates, nil, sourceHTTP)
	case ack.CorrelationID != "":
		w.quoteCorrelation = ack.CorrelationID
		w.log.Debug().Str("correlation_id", ack.CorrelationID).Msg("quote accepted, waiting for event")
		w.replayEarlyLocked()
	default:
		w.settleQuoteLocked(out, nil, domain.ErrNoRates, sourceHTTP)
	}
	return w.quoteErrLocked(out)
}

// AwaitQuote blocks until the pending quote settles or ctx is done.
func (w *GuideWizard) AwaitQuote(ctx context.Context) ([]domain.Rate, error) {
	w.mu.Lock()
	out := w.quote
	w.touchLocked()
	w.mu.Unlock()
	if out == nil {
		return nil, domain.ErrInvalidStep
	}
	return out.Wait(ctx)
}

// SelectRate stores the chosen rate and moves to step 3. No call is made.
func (w *GuideWizard) SelectRate(idRate int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()
	if w.step != StepRateSelection {
		return domain.ErrInvalidStep
	}
	for _, r := range w.rates {
		if r.IDRate == idRate {
			sel := r
			w.selected = &sel
			w.lastErr = ""
			w.transitionLocked(StepContactDetails)
			return nil
		}
	}
	return domain.ErrUnknownRate
}

// SubmitContact validates step 3 and moves to step 4. No call is made.
func (w *GuideWizard) SubmitContact(form ContactForm) error {
	if err := w.forms.contactForm(form); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()
	if w.step != StepContactDetails {
		return domain.ErrInvalidStep
	}
	w.contact = form.clone()
	w.lastErr = ""
	w.transitionLocked(StepPaymentConfirmation)
	return nil
}

// Back moves one step backwards, keeping every form. It is refused once
// generation has started.
func (w *GuideWizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.touchLocked()
	if w.guide != nil {
		if _, settled, err := w.guide.Settled(); !settled {
			return domain.ErrGenerationInFlight
		} else if err == nil {
			return domain.ErrInvalidStep
		}
	}
	if w.step <= StepAddressAndPackage {
		return domain.ErrInvalidStep
	}
	w.lastErr = ""
	w.transitionLocked(w.step - 1)
	return nil
}

// Confirm charges the selected rate and requests the guide. The wallet
// balance is checked first and an insufficient balance fails before any
// generation call. Confirming an already generated session is a no-op.
func (w *GuideWizard) Confirm(ctx context.Context) error {
	w.mu.Lock()
	w.touchLocked()
	if err := w.canConfirmLocked(); err != nil {
		w.mu.Unlock()
		if errors.Is(err, errAlreadyGenerated) {
			return nil
		}
		return err
	}
	total := w.selected.ChargeTotal()
	balance := w.balance
	session := w.session
	callCtx, done := w.callContextLocked(ctx)
	w.mu.Unlock()
	defer done()

	if balance == nil {
		b, err := w.backend.Balance(callCtx, w.businessID)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrBalanceUnavailable, err)
		}
		balance = &b
	}

	w.mu.Lock()
	if session != w.session {
		w.mu.Unlock()
		return domain.ErrSessionClosed
	}
	w.balance = balance
	if *balance < total {
		err := &domain.InsufficientBalanceError{Required: total, Available: *balance}
		w.lastErr = err.Error()
		w.mu.Unlock()
		if w.observer != nil {
			w.observer.BalanceGuardBlocked()
		}
		w.log.Info().Uint("business_id", w.businessID).Float64("required", total).Float64("available", *balance).Msg("guide blocked by balance")
		return err
	}
	if err := w.canConfirmLocked(); err != nil {
		w.mu.Unlock()
		if errors.Is(err, errAlreadyGenerated) {
			return nil
		}
		return err
	}
	req := w.guideRequestLocked(total)
	out := NewOutcome[domain.Guide]()
	w.guide = out
	w.guideCorrelation = ""
	w.guideShipmentID = 0
	w.lastErr = ""
	w.mu.Unlock()

	ack, err := w.backend.GenerateGuide(callCtx, req)

	w.mu.Lock()
	if session != w.session {
		w.mu.Unlock()
		return domain.ErrSessionClosed
	}
	var fire func()
	switch {
	case err != nil:
		fire = w.settleGuideLocked(out, domain.Guide{}, fmt.Errorf("generate guide: %w", err), sourceHTTP)
	case ack.Guide != nil && ack.Guide.Tracker != "":
		g := *ack.Guide
		if g.ShipmentID == 0 {
			g.ShipmentID = ack.ShipmentID
		}
		fire = w.settleGuideLocked(out, g, nil, sourceHTTP)
	case ack.CorrelationID != "" || ack.ShipmentID != 0:
		w.guideCorrelation = ack.CorrelationID
		w.guideShipmentID = ack.ShipmentID
		w.log.Debug().Str("correlation_id", ack.CorrelationID).Uint("shipment_id", ack.ShipmentID).Msg("guide accepted, waiting for event")
		fire = w.replayEarlyLocked()
	default:
		msg := ack.Message
		if msg == "" {
			msg = "no correlation id in acknowledgement"
		}
		fire = w.settleGuideLocked(out, domain.Guide{}, fmt.Errorf("%w: %s", domain.ErrGuideFailed, msg), sourceHTTP)
	}
	_, _, outErr := out.Settled()
	w.mu.Unlock()

	if fire != nil {
		fire()
	}
	return outErr
}

// AwaitGuide blocks until the pending guide settles or ctx is done.
func (w *GuideWizard) AwaitGuide(ctx context.Context) (domain.Guide, error) {
	w.mu.Lock()
	out := w.guide
	w.mu.Unlock()
	if out == nil {
		return domain.Guide{}, domain.ErrInvalidStep
	}
	return out.Wait(ctx)
}

var errAlreadyGenerated = errors.New("guide already generated")

func (w *GuideWizard) canConfirmLocked() error {
	if w.step != StepPaymentConfirmation {
		return domain.ErrInvalidStep
	}
	if w.selected == nil {
		return domain.ErrNoRateSelected
	}
	if w.guide != nil {
		_, settled, err := w.guide.Settled()
		if !settled {
			return domain.ErrGenerationInFlight
		}
		if err == nil {
			return errAlreadyGenerated
		}
	}
	return nil
}

func (w *GuideWizard) guideRequestLocked(total float64) domain.GuideRequest {
	s, c, r := w.shipment, w.contact, w.selected
	req := domain.GuideRequest{
		BusinessID:          w.businessID,
		IDRate:              r.IDRate,
		MyShipmentReference: c.MyShipmentReference,
		ExternalOrderID:     c.ExternalOrderID,
		RequestPickup:       c.RequestPickup,
		Insurance:           c.Insurance,
		Description:         s.Description,
		ContentValue:        s.ContentValue,
		IncludeGuideCost:    s.IncludeGuideCost,
		Packages:            s.parcels(),
		Origin:              c.Origin.location(s.OriginDaneCode, s.OriginAddress),
		Destination:         c.Destination.location(s.DestinationDaneCode, s.DestinationAddress),
		TotalCost:           total,
	}
	if c.RequestPickup {
		req.PickupDate = c.PickupDate
	}
	if s.hasCOD() {
		v := *s.CODValue
		req.CODValue = &v
		req.CODPaymentMethod = s.CODPaymentMethod
	}
	return req
}

// HandleEvent applies a quote or guide event that belongs to this session.
// It reports whether the event was consumed. Events that arrive before the
// acknowledgement revealed their correlation id are held and replayed.
func (w *GuideWizard) HandleEvent(evt domain.Event) bool {
	w.mu.Lock()
	handled, fire := w.handleEventLocked(evt, true)
	w.mu.Unlock()
	if fire != nil {
		fire()
	}
	return handled
}

func (w *GuideWizard) handleEventLocked(evt domain.Event, stash bool) (bool, func()) {
	switch evt.Kind {
	case domain.EventQuoteReceived, domain.EventQuoteFailed:
		out := w.quote
		if out == nil || !w.quotePendingLocked() {
			return false, nil
		}
		if w.quoteCorrelation == "" {
			if stash {
				w.stashLocked(evt)
			}
			return false, nil
		}
		if evt.CorrelationID != w.quoteCorrelation {
			return false, nil
		}
		if evt.Kind == domain.EventQuoteFailed {
			var p domain.FailurePayload
			_ = evt.Decode(&p)
			w.settleQuoteLocked(out, nil, fmt.Errorf("%w: %s", domain.ErrQuoteFailed, p.Reason()), sourceSSE)
			return true, nil
		}
		var p domain.QuoteReceivedPayload
		if err := evt.Decode(&p); err != nil {
			w.log.Debug().Err(err).Str("correlation_id", evt.CorrelationID).Msg("quote event ignored")
			return false, nil
		}
		w.settleQuoteLocked(out, p.Rates, nil, sourceSSE)
		return true, nil

	case domain.EventGuideGenerated, domain.EventGuideFailed:
		out := w.guide
		if out == nil {
			return false, nil
		}
		if _, settled, _ := out.Settled(); settled {
			return false, nil
		}
		if w.guideCorrelation == "" && w.guideShipmentID == 0 {
			if stash {
				w.stashLocked(evt)
			}
			return false, nil
		}
		if !w.guideMatchesLocked(evt) {
			return false, nil
		}
		if evt.Kind == domain.EventGuideFailed {
			var p domain.FailurePayload
			_ = evt.Decode(&p)
			return true, w.settleGuideLocked(out, domain.Guide{}, fmt.Errorf("%w: %s", domain.ErrGuideFailed, p.Reason()), sourceSSE)
		}
		var p domain.GuideGeneratedPayload
		if err := evt.Decode(&p); err != nil {
			w.log.Debug().Err(err).Str("correlation_id", evt.CorrelationID).Msg("guide event ignored")
			return false, nil
		}
		shipmentID := evt.ShipmentID
		if shipmentID == 0 {
			shipmentID = w.guideShipmentID
		}
		g := p.Guide(shipmentID)
		if g.Tracker == "" {
			w.log.Warn().Str("correlation_id", evt.CorrelationID).Msg("guide event without tracking number")
			return false, nil
		}
		return true, w.settleGuideLocked(out, g, nil, sourceSSE)
	}
	return false, nil
}

func (w *GuideWizard) guideMatchesLocked(evt domain.Event) bool {
	if w.guideCorrelation != "" && evt.CorrelationID == w.guideCorrelation {
		return true
	}
	return w.guideShipmentID != 0 && evt.ShipmentID == w.guideShipmentID
}

func (w *GuideWizard) stashLocked(evt domain.Event) {
	if len(w.early) >= maxEarlyEvents {
		w.early = w.early[1:]
	}
	w.early = append(w.early, evt)
}

// replayEarlyLocked runs held events against the now known correlation ids.
func (w *GuideWizard) replayEarlyLocked() func() {
	held := w.early
	w.early = nil
	var fires []func()
	for _, evt := range held {
		if ok, fire := w.handleEventLocked(evt, false); ok && fire != nil {
			fires = append(fires, fire)
		}
	}
	if len(fires) == 0 {
		return nil
	}
	return func() {
		for _, f := range fires {
			f()
		}
	}
}

// settleQuoteLocked resolves the quote outcome. Only the winning resolution
// changes wizard state.
func (w *GuideWizard) settleQuoteLocked(out *Outcome[[]domain.Rate], rates []domain.Rate, err error, source string) {
	if err == nil && len(rates) == 0 {
		err = domain.ErrNoRates
	}
	if err != nil {
		if out.Fail(err, source) && out == w.quote {
			w.lastErr = err.Error()
			w.log.Info().Err(err).Str("source", source).Msg("quote failed")
		}
		return
	}
	if !out.Resolve(rates, source) || out != w.quote {
		return
	}
	w.rates = rates
	w.quotedFor = w.shipment.clone()
	if prev := w.selected; prev != nil {
		w.selected = nil
		for _, r := range rates {
			if r.IDRate == prev.IDRate {
				sel := r
				w.selected = &sel
				break
			}
		}
	}
	w.lastErr = ""
	w.log.Info().Int("rates", len(rates)).Str("source", source).Msg("quote resolved")
	if w.step == StepAddressAndPackage {
		w.transitionLocked(StepRateSelection)
	}
}

// settleGuideLocked resolves the guide outcome and returns the callbacks to
// run once the lock is released.
func (w *GuideWizard) settleGuideLocked(out *Outcome[domain.Guide], g domain.Guide, err error, source string) func() {
	if err != nil {
		if out.Fail(err, source) && out == w.guide {
			w.lastErr = err.Error()
			w.log.Warn().Err(err).Str("source", source).Msg("guide generation failed")
		}
		return nil
	}
	if !out.Resolve(g, source) || out != w.guide {
		return nil
	}
	w.lastErr = ""
	w.log.Info().
		Uint("business_id", w.businessID).
		Str("tracker", g.Tracker).
		Str("source", source).
		Msg("guide generated")

	callbacks := append([]func(domain.Guide){}, w.onGuide...)
	return func() {
		for _, fn := range callbacks {
			fn(g)
		}
	}
}

func (w *GuideWizard) quotePendingLocked() bool {
	if w.quote == nil {
		return false
	}
	_, settled, _ := w.quote.Settled()
	return !settled
}

// quoteErrLocked returns the error of a settled quote, nil otherwise.
func (w *GuideWizard) quoteErrLocked(out *Outcome[[]domain.Rate]) error {
	_, _, err := out.Settled()
	return err
}

// Close cancels in-flight calls, fails pending outcomes and returns the
// wizard to an empty step 1. Reopening starts a new session.
func (w *GuideWizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closeLocked()
}

func (w *GuideWizard) closeLocked() {
	if w.cancel != nil {
		w.cancel()
	}
	if w.quote != nil {
		w.quote.Fail(domain.ErrSessionClosed, "close")
	}
	if w.guide != nil {
		w.guide.Fail(domain.ErrSessionClosed, "close")
	}
	w.session++
	w.resetLocked()
}

func (w *GuideWizard) resetLocked() {
	w.sessionCtx, w.cancel = context.WithCancel(context.Background())
	w.step = StepAddressAndPackage
	w.shipment, w.quotedFor, w.contact = nil, nil, nil
	w.rates, w.selected = nil, nil
	w.balance, w.origins, w.defaultOrigin, w.order = nil, nil, nil, nil
	w.prefillShipment, w.prefillContact = nil, nil
	w.degradations = nil
	w.quote, w.quoteCorrelation = nil, ""
	w.guide, w.guideCorrelation, w.guideShipmentID = nil, "", 0
	w.early = nil
	w.lastErr = ""
	w.lastActive = time.Now()
}

// callContextLocked derives a call context that ends with either the caller
// or the session.
func (w *GuideWizard) callContextLocked(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(w.sessionCtx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (w *GuideWizard) transitionLocked(to WizardStep) {
	from := w.step
	w.step = to
	if w.observer != nil && from != to {
		w.observer.WizardTransition(from.String(), to.String())
	}
	w.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("wizard step")
}

func (w *GuideWizard) touchLocked() {
	w.lastActive = time.Now()
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
)

// ProgressStep is the 5-step lifecycle indicator. It is derived from the
// shipment status for display and never written back.
type ProgressStep int

const (
	ProgressCreated ProgressStep = iota + 1
	ProgressPickedUp
	ProgressInTransit
	ProgressOutForDelivery
	ProgressDelivered
)

const progressSteps = 5

func (p ProgressStep) Label() string {
	switch p {
	case ProgressCreated:
		return "Creado"
	case ProgressPickedUp:
		return "Recogido"
	case ProgressInTransit:
		return "En tránsito"
	case ProgressOutForDelivery:
		return "En reparto"
	case ProgressDelivered:
		return "Entregado"
	default:
		return "Desconocido"
	}
}

var statusSteps = map[domain.ShipmentStatus]ProgressStep{
	domain.StatusPending:        ProgressCreated,
	domain.StatusPickedUp:       ProgressPickedUp,
	domain.StatusInTransit:      ProgressInTransit,
	domain.StatusOutForDelivery: ProgressOutForDelivery,
	domain.StatusDelivered:      ProgressDelivered,
}

// StepForStatus maps a status to its step. Statuses outside the table,
// failed included, map to ProgressCreated with ok=false.
func StepForStatus(s domain.ShipmentStatus) (step ProgressStep, ok bool) {
	if step, ok = statusSteps[s]; ok {
		return step, true
	}
	return ProgressCreated, false
}

type ProgressColor string

const (
	ProgressBlue  ProgressColor = "blue"
	ProgressGreen ProgressColor = "green"
	ProgressRed   ProgressColor = "red"
)

// Progress is the rendered progress bar.
type Progress struct {
	Step        ProgressStep  `json:"step"`
	StepLabel   string        `json:"step_label"`
	Percent     int           `json:"percent"`
	Color       ProgressColor `json:"color"`
	Failed      bool          `json:"failed"`
	Status      string        `json:"status"`
	StatusLabel string        `json:"status_label"`
}

// ProgressFor derives the progress bar. A failed shipment is a full red bar
// whatever its step.
func ProgressFor(status domain.ShipmentStatus) Progress {
	step, _ := StepForStatus(status)
	p := Progress{
		Step:        step,
		StepLabel:   step.Label(),
		Percent:     int(step) * 100 / progressSteps,
		Color:       ProgressBlue,
		Status:      string(status),
		StatusLabel: status.Label(),
	}
	switch status {
	case domain.StatusFailed:
		p.Failed = true
		p.Percent = 100
		p.Color = ProgressRed
	case domain.StatusDelivered:
		p.Color = ProgressGreen
	}
	return p
}

type TimelineState string

const (
	TimelineLoading     TimelineState = "loading"
	TimelineReady       TimelineState = "ready"
	TimelineUnavailable TimelineState = "unavailable"
	TimelineError       TimelineState = "error"
)

// TimelineEntry is one history row. The newest entry is marked current.
type TimelineEntry struct {
	domain.TrackHistory
	Current bool `json:"current"`
}

// Timeline is the tracking panel of one shipment.
type Timeline struct {
	ShipmentID     uint            `json:"shipment_id"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	Carrier        string          `json:"carrier,omitempty"`
	CarrierStatus  string          `json:"carrier_status,omitempty"`
	Cancelled      bool            `json:"cancelled,omitempty"`
	State          TimelineState   `json:"state"`
	Message        string          `json:"message,omitempty"`
	Entries        []TimelineEntry `json:"entries,omitempty"`
	Progress       Progress        `json:"progress"`
}

const (
	msgNoTracking = "Este envío aún no tiene número de guía"
	msgNoHistory  = "Aún no hay eventos de rastreo para esta guía"
	msgTrackError = "No fue posible consultar el rastreo"
)

const (
	maxLiveEntries = 1024

	statusCancelled = "cancelled"
	labelCancelled  = "Cancelado"

	sharedTrackTimeout = 30 * time.Second
)

type timelineKey struct {
	shipmentID     uint
	trackingNumber string
}

// TrackingPanel builds shipment timelines. Concurrent requests for the same
// shipment share one tracking call.
type TrackingPanel struct {
	tracker ports.TrackingClient
	strict  bool
	log     zerolog.Logger

	mu       sync.Mutex
	inflight map[timelineKey]*Outcome[*domain.TrackingResult]
	live     map[string]domain.TrackingUpdatedPayload
}

// NewTrackingPanel returns a panel. In strict mode statuses missing from the
// step table are logged as errors instead of warnings.
func NewTrackingPanel(tracker ports.TrackingClient, strict bool, log zerolog.Logger) *TrackingPanel {
	return &TrackingPanel{
		tracker:  tracker,
		strict:   strict,
		log:      log,
		inflight: make(map[timelineKey]*Outcome[*domain.TrackingResult]),
		live:     make(map[string]domain.TrackingUpdatedPayload),
	}
}

// Begin returns the loading state shown before the tracking call completes.
func (p *TrackingPanel) Begin(s domain.Shipment) Timeline {
	return Timeline{
		ShipmentID:     s.ID,
		TrackingNumber: s.TrackingNumber,
		Carrier:        s.Carrier,
		State:          TimelineLoading,
		Progress:       p.progress(s.Status),
	}
}

// Show issues the tracking call for s and builds its timeline. Failures are
// reported in the timeline state, never as an error. A pushed update takes
// precedence over the polled status, and its history is used when it holds
// more entries than the polled one.
func (p *TrackingPanel) Show(ctx context.Context, s domain.Shipment) Timeline {
	t := p.Begin(s)
	if s.TrackingNumber == "" {
		t.State = TimelineUnavailable
		t.Message = msgNoTracking
		return t
	}

	res, err := p.track(ctx, timelineKey{shipmentID: s.ID, trackingNumber: s.TrackingNumber})
	live, hasLive := p.Live(s.TrackingNumber)
	if err != nil {
		p.log.Warn().Err(err).Uint("shipment_id", s.ID).Str("tracking", s.TrackingNumber).Msg("tracking call failed")
		t.State = TimelineError
		t.Message = fmt.Sprintf("%s: %v", msgTrackError, err)
		if hasLive {
			applyLiveStatus(&t, live)
		}
		return t
	}

	history := res.History
	if res.Carrier != "" {
		t.Carrier = res.Carrier
	}
	t.CarrierStatus = res.Status
	if hasLive {
		if len(live.History) > len(history) {
			history = live.History
		}
		applyLiveStatus(&t, live)
	}
	if len(history) == 0 {
		t.State = TimelineUnavailable
		t.Message = msgNoHistory
		return t
	}

	t.State = TimelineReady
	t.Entries = make([]TimelineEntry, len(history))
	for i, h := range history {
		t.Entries[i] = TimelineEntry{TrackHistory: h, Current: i == 0}
	}
	return t
}

func applyLiveStatus(t *Timeline, live domain.TrackingUpdatedPayload) {
	if live.Status != "" {
		t.CarrierStatus = live.Status
	}
	if live.Status != statusCancelled {
		return
	}
	t.Cancelled = true
	t.Progress.Color = ProgressRed
	t.Progress.Status = statusCancelled
	t.Progress.StatusLabel = labelCancelled
}

// track joins or starts the shared call for key. The call itself runs
// detached from ctx so one caller giving up does not fail the others.
func (p *TrackingPanel) track(ctx context.Context, key timelineKey) (*domain.TrackingResult, error) {
	p.mu.Lock()
	out, ok := p.inflight[key]
	if !ok {
		out = NewOutcome[*domain.TrackingResult]()
		p.inflight[key] = out
		go p.runTrack(context.WithoutCancel(ctx), key, out)
	}
	p.mu.Unlock()
	return out.Wait(ctx)
}

func (p *TrackingPanel) runTrack(ctx context.Context, key timelineKey, out *Outcome[*domain.TrackingResult]) {
	ctx, cancel := context.WithTimeout(ctx, sharedTrackTimeout)
	defer cancel()

	res, err := p.tracker.Track(ctx, key.trackingNumber)
	if err != nil {
		out.Fail(err, sourceHTTP)
	} else {
		out.Resolve(res, sourceHTTP)
	}

	p.mu.Lock()
	delete(p.inflight, key)
	p.mu.Unlock()
}

func (p *TrackingPanel) progress(status domain.ShipmentStatus) Progress {
	if _, ok := StepForStatus(status); !ok && status != domain.StatusFailed {
		ev := p.log.Warn()
		if p.strict {
			ev = p.log.Error()
		}
		ev.Str("status", string(status)).Msg("status missing from progress table")
	}
	return ProgressFor(status)
}

// Process keeps the latest pushed history per tracking number. A
// cancellation keeps the known history and overrides the status, and later
// updates do not clear it.
func (p *TrackingPanel) Process(_ context.Context, evt domain.Event) error {
	var upd domain.TrackingUpdatedPayload
	switch evt.Kind {
	case domain.EventTrackingUpdated:
		if err := evt.Decode(&upd); err != nil {
			return fmt.Errorf("tracking update: %w", err)
		}
	case domain.EventCancelled:
		var c domain.CancelledPayload
		if err := evt.Decode(&c); err != nil {
			return fmt.Errorf("cancellation: %w", err)
		}
		upd = domain.TrackingUpdatedPayload{TrackingNumber: c.TrackingNumber, Status: c.Status}
		if upd.Status == "" {
			upd.Status = statusCancelled
		}
	default:
		return nil
	}
	if upd.TrackingNumber == "" {
		upd.TrackingNumber = evt.TrackingNumber
	}
	if upd.TrackingNumber == "" {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	prev, ok := p.live[upd.TrackingNumber]
	if !ok && len(p.live) >= maxLiveEntries {
		for k := range p.live {
			delete(p.live, k)
			break
		}
	}
	switch {
	case evt.Kind == domain.EventCancelled:
		upd.History = prev.History
	case ok && prev.Status == statusCancelled:
		upd.Status = statusCancelled
	}
	p.live[upd.TrackingNumber] = upd
	return nil
}

// Live returns the last pushed update for a tracking number.
func (p *TrackingPanel) Live(trackingNumber string) (domain.TrackingUpdatedPayload, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	upd, ok := p.live[trackingNumber]
	return upd, ok
}

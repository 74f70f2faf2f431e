package service

import (
	"github.com/99minutos/shipping-central/internal/core/domain"
)

// RateView is a rate as listed in step 2.
type RateView struct {
	domain.Rate
	Total       float64 `json:"total"`
	CarrierName string  `json:"carrier_name"`
	CarrierLogo string  `json:"carrier_logo"`
}

func newRateView(r domain.Rate) RateView {
	c, _ := domain.LookupCarrier(r.Carrier)
	return RateView{
		Rate:        r,
		Total:       r.QuotedTotal(),
		CarrierName: c.Name,
		CarrierLogo: c.Logo,
	}
}

// WizardView is a read-only copy of the wizard state.
type WizardView struct {
	Step               WizardStep             `json:"step"`
	StepName           string                 `json:"step_name"`
	Phase              WizardPhase            `json:"phase"`
	Shipment           *ShipmentForm          `json:"shipment,omitempty"`
	Contact            *ContactForm           `json:"contact,omitempty"`
	Rates              []RateView             `json:"rates,omitempty"`
	Selected           *RateView              `json:"selected_rate,omitempty"`
	TotalCost          float64                `json:"total_cost,omitempty"`
	Balance            *float64               `json:"balance,omitempty"`
	Shortfall          float64                `json:"shortfall,omitempty"`
	Origins            []domain.OriginAddress `json:"origin_addresses,omitempty"`
	DefaultOriginID    uint                   `json:"default_origin_id,omitempty"`
	Order              *domain.Order          `json:"order,omitempty"`
	Guide              *domain.Guide          `json:"guide,omitempty"`
	GuideSource        string                 `json:"guide_source,omitempty"`
	QuoteCorrelationID string                 `json:"quote_correlation_id,omitempty"`
	GuideCorrelationID string                 `json:"guide_correlation_id,omitempty"`
	Error              string                 `json:"error,omitempty"`
	Degradations       []domain.Degradation   `json:"degradations,omitempty"`
}

// Snapshot copies the current state. Forms fall back to their prefill until
// the step has been submitted.
func (w *GuideWizard) Snapshot() WizardView {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := WizardView{
		Step:               w.step,
		StepName:           w.step.String(),
		Phase:              w.phaseLocked(),
		QuoteCorrelationID: w.quoteCorrelation,
		GuideCorrelationID: w.guideCorrelation,
		Error:              w.lastErr,
		Order:              w.order,
	}

	switch {
	case w.shipment != nil:
		v.Shipment = w.shipment.clone()
	case w.prefillShipment != nil:
		v.Shipment = w.prefillShipment.clone()
	}
	switch {
	case w.contact != nil:
		v.Contact = w.contact.clone()
	case w.prefillContact != nil:
		v.Contact = w.prefillContact.clone()
	}

	if len(w.rates) > 0 {
		v.Rates = make([]RateView, 0, len(w.rates))
		for _, r := range w.rates {
			v.Rates = append(v.Rates, newRateView(r))
		}
	}
	if w.selected != nil {
		sel := newRateView(*w.selected)
		v.Selected = &sel
		v.TotalCost = w.selected.ChargeTotal()
	}
	if w.balance != nil {
		b := *w.balance
		v.Balance = &b
		if v.Selected != nil && b < v.TotalCost {
			v.Shortfall = v.TotalCost - b
		}
	}

	v.Origins = append([]domain.OriginAddress(nil), w.origins...)
	if w.defaultOrigin != nil {
		v.DefaultOriginID = w.defaultOrigin.ID
	}
	if w.guide != nil {
		if g, settled, err := w.guide.Settled(); settled && err == nil {
			v.Guide = &g
			v.GuideSource = w.guide.Source()
		}
	}
	v.Degradations = append([]domain.Degradation(nil), w.degradations...)
	return v
}

func (w *GuideWizard) phaseLocked() WizardPhase {
	if w.guide != nil {
		_, settled, err := w.guide.Settled()
		switch {
		case !settled:
			return PhaseGenerating
		case err == nil:
			return PhaseGenerated
		}
	}
	if w.quotePendingLocked() {
		return PhaseQuoting
	}
	return PhaseEditing
}

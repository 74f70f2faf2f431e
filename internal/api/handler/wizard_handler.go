package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/service"
)

const maxQuoteWait = 30 * time.Second

// WizardSessions is the session registry the handler drives.
type WizardSessions interface {
	Open(ctx context.Context, businessID uint, opts service.OpenOptions) (string, *service.GuideWizard)
	Get(id string) (*service.GuideWizard, error)
	Close(id string) error
}

// WizardHandler exposes the guide wizard over HTTP.
type WizardHandler struct {
	sessions WizardSessions
}

func NewWizardHandler(sessions WizardSessions) *WizardHandler {
	return &WizardHandler{sessions: sessions}
}

// session loads the wizard named by :id. Sessions of another business are
// reported as missing.
func (h *WizardHandler) session(c echo.Context) (*service.GuideWizard, error) {
	p, err := ctxPrincipal(c)
	if err != nil {
		return nil, err
	}
	w, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		return nil, err
	}
	if _, err := p.Scope(w.BusinessID()); err != nil {
		return nil, domain.ErrSessionNotFound
	}
	return w, nil
}

// respond renders the wizard snapshot: 202 while an upstream result is
// pending, 200 otherwise.
func respond(c echo.Context, w *service.GuideWizard) error {
	v := w.Snapshot()
	code := http.StatusOK
	if v.Phase == service.PhaseQuoting || v.Phase == service.PhaseGenerating {
		code = http.StatusAccepted
	}
	return c.JSON(code, v)
}

// Open handles POST /v1/wizard/sessions.
//
// @Summary      Open a guide wizard session
// @Description  Prefetches the wallet balance and origin addresses, and prefills from an order when order_id is given.
// @Tags         wizard
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      openSessionRequest  true  "Session options"
// @Success      201   {object}  openSessionResponse
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /v1/wizard/sessions [post]
func (h *WizardHandler) Open(c echo.Context) error {
	p, err := ctxPrincipal(c)
	if err != nil {
		return err
	}
	var req openSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	businessID, err := p.Scope(req.BusinessID)
	if err != nil {
		return err
	}
	if businessID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "business_id is required")
	}

	id, w := h.sessions.Open(c.Request().Context(), businessID, service.OpenOptions{OrderID: req.OrderID})
	return c.JSON(http.StatusCreated, openSessionResponse{SessionID: id, Wizard: w.Snapshot()})
}

// Get handles GET /v1/wizard/sessions/:id.
//
// @Summary      Wizard snapshot
// @Tags         wizard
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session id"
// @Success      200  {object}  service.WizardView
// @Failure      404  {object}  errorResponse
// @Router       /v1/wizard/sessions/{id} [get]
func (h *WizardHandler) Get(c echo.Context) error {
	w, err := h.session(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, w.Snapshot())
}

// Close handles DELETE /v1/wizard/sessions/:id.
//
// @Summary      Close a wizard session
// @Tags         wizard
// @Security     BearerAuth
// @Param        id   path  string  true  "Session id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /v1/wizard/sessions/{id} [delete]
func (h *WizardHandler) Close(c echo.Context) error {
	if _, err := h.session(c); err != nil {
		return err
	}
	if err := h.sessions.Close(c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// SubmitShipment handles POST /v1/wizard/sessions/:id/shipment (step 1).
//
// @Summary      Submit address and package
// @Description  Validates the form and requests a quote. 202 means the rates will arrive over the event stream.
// @Tags         wizard
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string                true  "Session id"
// @Param        body  body      service.ShipmentForm  true  "Address and package"
// @Success      200   {object}  service.WizardView
// @Success      202   {object}  service.WizardView
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/wizard/sessions/{id}/shipment [post]
func (h *WizardHandler) SubmitShipment(c echo.Context) error {
	w, err := h.session(c)
	if err != nil {
		return err
	}
	var form service.ShipmentForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := w.SubmitShipment(c.Request().Context(), form); err != nil {
		return err
	}
	return respond(c, w)
}

// AwaitQuote handles GET /v1/wizard/sessions/:id/quote?wait=10s.
//
// @Summary      Wait for the pending quote
// @Description  Blocks up to wait (max 30s) for the rates. 202 means they are still pending.
// @Tags         wizard
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string  true   "Session id"
// @Param        wait  query     string  false  "Go duration, e.g. 5s"
// @Success      200   {object}  service.WizardView
// @Success      202   {object}  service.WizardView
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/wizard/sessions/{id}/quote [get]
func (h *WizardHandler) AwaitQuote(c echo.Context) error {
	w, err := h.session(c)
	if err != nil {
		return err
	}
	wait, err := parseWait(c.QueryParam("wait"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), wait)
	defer cancel()
	if _, err := w.AwaitQuote(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return respond(c, w)
}

// SelectRate handles POST /v1/wizard/sessions/:id/rate (step 2).
//
// @Summary      Select a rate
// @Tags         wizard
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "Session id"
// @Param        body  body      selectRateRequest  true  "Rate"
// @Success      200   {object}  service.WizardView
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/wizard/sessions/{id}/rate [post]
func (h *WizardHandler) SelectRate(c echo.Context) error {
	w, err := h.session(c)
	if err != nil {
		return err
	}
	var req selectRateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := w.SelectRate(req.IDRate); err != nil {
		return err
	}
	return respond(c, w)
}

// SubmitContact handles POST /v1/wizard/sessions/:id/contact (step 3).
//
// @Summary      Submit contact details
// @Tags         wizard
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string               true  "Session id"
// @Param        body  body      service.ContactForm  true  "Contact details"
// @Success      200   {object}  service.WizardView
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/wizard/sessions/{id}/contact [post]
func (h *WizardHandler) SubmitContact(c echo.Context) error {
	w, err := h.session(c)
	if err != nil {
		return err
	}
	var form service.ContactForm
	if err := c.Bind(&form); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := w.SubmitContact(form); err != nil {
		return err
	}
	return respond(c, w)
}

// Back handles POST /v1/wizard/sessions/:id/back.
//
// @Summary      Go back one step
// @Tags         wizard
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session id"
// @Success      200  {object}  service.WizardView
// @Failure      409  {object}  errorResponse
// @Router       /v1/wizard/sessions/{id}/back [post]
func (h *WizardHandler) Back(c echo.Context) error {
	w, err := h.session(c)
	if err != nil {
		return err
	}
	if err := w.Back(); err != nil {
		return err
	}
	return respond(c, w)
}

// Confirm handles POST /v1/wizard/sessions/:id/confirm (step 4).
//
// @Summary      Confirm and generate the guide
// @Description  Checks the wallet balance, then requests the guide. 202 means the guide will arrive over the event stream.
// @Tags         wizard
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Session id"
// @Success      200  {object}  service.WizardView
// @Success      202  {object}  service.WizardView
// @Failure      402  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /v1/wizard/sessions/{id}/confirm [post]
func (h *WizardHandler) Confirm(c echo.Context) error {
	w, err := h.session(c)
	if err != nil {
		return err
	}
	if err := w.Confirm(c.Request().Context()); err != nil {
		return err
	}
	return respond(c, w)
}

// parseWait reads ?wait=. Empty means do not block; values are capped.
func parseWait(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "wait must be a duration such as 5s")
	}
	if d > maxQuoteWait {
		d = maxQuoteWait
	}
	return d, nil
}

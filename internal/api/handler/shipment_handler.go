package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/shipping-central/internal/core/service"
)

// ShipmentHandler handles HTTP requests for persisted shipments.
type ShipmentHandler struct {
	list  *service.ShipmentList
	panel *service.TrackingPanel
}

func NewShipmentHandler(list *service.ShipmentList, panel *service.TrackingPanel) *ShipmentHandler {
	return &ShipmentHandler{list: list, panel: panel}
}

// filters parses the list query and pins it to the caller's business.
func (h *ShipmentHandler) filters(c echo.Context) (service.ShipmentFilters, error) {
	f, err := service.ParseShipmentFilters(c.QueryParams())
	if err != nil {
		return f, err
	}
	businessID, err := ctxBusiness(c)
	if err != nil {
		return f, err
	}
	f.BusinessID = businessID
	return f, nil
}

// List handles GET /v1/shipments.
//
// @Summary      List shipments
// @Description  Filters round-trip through the query string; empty values are never sent upstream.
// @Tags         shipments
// @Produce      json
// @Security     BearerAuth
// @Param        tracking_number  query     string  false  "Tracking number"
// @Param        order_id         query     string  false  "Order id"
// @Param        carrier          query     string  false  "Carrier"
// @Param        status           query     string  false  "Status"
// @Param        page             query     int     false  "Page (default 1)"
// @Param        page_size        query     int     false  "Page size (default 20, max 100)"
// @Param        business_id      query     int     false  "Business (admins only)"
// @Param        start_date       query     string  false  "From date"
// @Param        end_date         query     string  false  "To date"
// @Param        sort_by          query     string  false  "Sort field"
// @Param        order            query     string  false  "asc or desc"
// @Param        is_test          query     bool    false  "Test shipments"
// @Success      200              {object}  shipmentListResponse
// @Failure      403              {object}  errorResponse
// @Failure      422              {object}  errorResponse
// @Failure      502              {object}  errorResponse
// @Router       /v1/shipments [get]
func (h *ShipmentHandler) List(c echo.Context) error {
	f, err := h.filters(c)
	if err != nil {
		return err
	}
	page, err := h.list.Load(c.Request().Context(), f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toListResponse(page, f))
}

// Cancel handles POST /v1/shipments/:id/cancel.
//
// @Summary      Cancel a shipment
// @Description  Cancels, then reloads the list with the filters in the query string.
// @Tags         shipments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Shipment id"
// @Success      200  {object}  service.CancelOutcome
// @Failure      404  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /v1/shipments/{id}/cancel [post]
func (h *ShipmentHandler) Cancel(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}
	f, err := h.filters(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := h.list.Get(ctx, f.BusinessID, id); err != nil {
		return err
	}
	out, err := h.list.Cancel(ctx, id, f)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Timeline handles GET /v1/shipments/:id/timeline.
//
// @Summary      Tracking timeline of a shipment
// @Description  Tracking failures are reported in the timeline state, not as an error status.
// @Tags         shipments
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Shipment id"
// @Success      200  {object}  service.Timeline
// @Failure      404  {object}  errorResponse
// @Router       /v1/shipments/{id}/timeline [get]
func (h *ShipmentHandler) Timeline(c echo.Context) error {
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}
	businessID, err := ctxBusiness(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	s, err := h.list.Get(ctx, businessID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.panel.Show(ctx, *s))
}

// Consult handles POST /v1/tracking/:tracking_number/consult.
//
// @Summary      Consult tracking now
// @Tags         tracking
// @Produce      json
// @Security     BearerAuth
// @Param        tracking_number  path      string  true  "Tracking number"
// @Success      200              {object}  consultResponse
// @Failure      404              {object}  errorResponse
// @Failure      429              {object}  errorResponse
// @Failure      502              {object}  errorResponse
// @Router       /v1/tracking/{tracking_number}/consult [post]
func (h *ShipmentHandler) Consult(c echo.Context) error {
	res, err := h.list.ConsultNow(c.Request().Context(), c.Param("tracking_number"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toConsultResponse(res))
}

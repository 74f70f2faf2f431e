package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
)

const defaultHeartbeat = 15 * time.Second

// EventRelay hands out in-process event subscriptions.
type EventRelay interface {
	Subscribe(businessID uint) (<-chan domain.Event, func())
}

// EventHandler relays upstream events to browsers and exposes the journal.
type EventHandler struct {
	relay      EventRelay
	subscriber ports.EventSubscriber
	journal    ports.EventJournal
	heartbeat  time.Duration
	log        zerolog.Logger
}

// NewEventHandler creates an EventHandler. subscriber and journal may be nil.
func NewEventHandler(relay EventRelay, subscriber ports.EventSubscriber, journal ports.EventJournal, heartbeat time.Duration, log zerolog.Logger) *EventHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &EventHandler{
		relay:      relay,
		subscriber: subscriber,
		journal:    journal,
		heartbeat:  heartbeat,
		log:        log,
	}
}

// Stream handles GET /v1/events/stream.
//
// @Summary      Relay platform events to the browser
// @Description  text/event-stream of {type, data, metadata} envelopes with comment heartbeats. Holds the upstream subscription of the business open while connected.
// @Tags         events
// @Produce      text/event-stream
// @Security     BearerAuth
// @Param        business_id  query  int  false  "Business (admins only)"
// @Success      200
// @Router       /v1/events/stream [get]
func (h *EventHandler) Stream(c echo.Context) error {
	businessID, err := ctxBusiness(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	if h.subscriber != nil && businessID != 0 {
		release, err := h.subscriber.Acquire(ctx, businessID)
		if err != nil {
			h.log.Warn().Err(err).Uint("business_id", businessID).Msg("upstream subscription unavailable")
		} else {
			defer release()
		}
	}

	events, cancel := h.relay.Subscribe(businessID)
	defer cancel()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(res, ": connected\n\n"); err != nil {
		return nil
	}
	res.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": heartbeat\n\n"); err != nil {
				return nil
			}
			res.Flush()
		case evt, ok := <-events:
			if !ok {
				return nil
			}
			if err := writeEvent(res, evt); err != nil {
				h.log.Debug().Err(err).Msg("relay client gone")
				return nil
			}
			res.Flush()
		}
	}
}

// writeEvent writes an unnamed frame so EventSource.onmessage receives it;
// the kind travels in the envelope's type field.
func writeEvent(res *echo.Response, evt domain.Event) error {
	data, err := evt.Envelope()
	if err != nil {
		return err
	}
	if evt.ID != "" {
		if _, err := fmt.Fprintf(res, "id: %s\n", evt.ID); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintf(res, "data: %s\n\n", data)
	return err
}

// Recent handles GET /v1/events/recent.
//
// @Summary      Recently received events
// @Tags         events
// @Produce      json
// @Security     BearerAuth
// @Param        business_id  query     int  false  "Business (admins only)"
// @Param        limit        query     int  false  "Max entries (default 50, max 500)"
// @Success      200          {array}   ports.JournalEntry
// @Failure      503          {object}  errorResponse
// @Router       /v1/events/recent [get]
func (h *EventHandler) Recent(c echo.Context) error {
	if h.journal == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "event journal disabled")
	}
	businessID, err := ctxBusiness(c)
	if err != nil {
		return err
	}
	var limit int64
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || limit <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
	}
	out, err := h.journal.Recent(c.Request().Context(), businessID, limit)
	if err != nil {
		return err
	}
	if out == nil {
		out = []ports.JournalEntry{}
	}
	return c.JSON(http.StatusOK, out)
}

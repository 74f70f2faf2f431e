package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/shipping-central/internal/dane"
)

const (
	defaultDaneLimit = 10
	maxDaneLimit     = 50
)

// DaneIndex is the municipality table the handler queries.
type DaneIndex interface {
	Search(q string, limit int) []dane.Entry
	Lookup(city, department string) (string, bool)
	Get(code string) (dane.Entry, bool)
}

// DaneHandler serves municipality autocomplete and reverse lookup.
type DaneHandler struct {
	index DaneIndex
}

func NewDaneHandler(index DaneIndex) *DaneHandler {
	return &DaneHandler{index: index}
}

type daneOption struct {
	dane.Entry
	Label string `json:"label"`
}

type daneResolveResponse struct {
	Found bool        `json:"found"`
	Entry *daneOption `json:"entry,omitempty"`
}

// Search handles GET /v1/dane?q=.
//
// @Summary      Search municipalities
// @Tags         dane
// @Produce      json
// @Param        q      query     string  true   "City or department prefix, accents optional"
// @Param        limit  query     int     false  "Max results (default 10, max 50)"
// @Success      200    {array}   daneOption
// @Failure      400    {object}  errorResponse
// @Router       /v1/dane [get]
func (h *DaneHandler) Search(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q is required")
	}
	limit := defaultDaneLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(n, maxDaneLimit)
	}

	entries := h.index.Search(q, limit)
	out := make([]daneOption, len(entries))
	for i, e := range entries {
		out[i] = daneOption{Entry: e, Label: e.Label()}
	}
	return c.JSON(http.StatusOK, out)
}

// Resolve handles GET /v1/dane/resolve?city=&department=.
//
// @Summary      Resolve a city to its DANE code
// @Tags         dane
// @Produce      json
// @Param        city        query     string  true   "City"
// @Param        department  query     string  false  "Department"
// @Success      200         {object}  daneResolveResponse
// @Failure      400         {object}  errorResponse
// @Router       /v1/dane/resolve [get]
func (h *DaneHandler) Resolve(c echo.Context) error {
	city := strings.TrimSpace(c.QueryParam("city"))
	if city == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "city is required")
	}
	code, ok := h.index.Lookup(city, c.QueryParam("department"))
	if !ok {
		return c.JSON(http.StatusOK, daneResolveResponse{})
	}
	e, _ := h.index.Get(code)
	return c.JSON(http.StatusOK, daneResolveResponse{Found: true, Entry: &daneOption{Entry: e, Label: e.Label()}})
}

package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
)

// OriginHandler passes saved pickup address operations through to the
// platform API, scoped to the caller's business.
type OriginHandler struct {
	origins ports.OriginAddressClient
}

func NewOriginHandler(origins ports.OriginAddressClient) *OriginHandler {
	return &OriginHandler{origins: origins}
}

type originAddressRequest struct {
	Alias       string `json:"alias"          validate:"required,max=40"`
	Company     string `json:"company"        validate:"max=60"`
	FirstName   string `json:"first_name"     validate:"required,min=2,max=14"`
	LastName    string `json:"last_name"      validate:"required,min=2,max=14"`
	Email       string `json:"email"          validate:"required,email,max=60"`
	Phone       string `json:"phone"          validate:"required,len=10,numeric"`
	Street      string `json:"street"         validate:"required,min=5,max=100"`
	Suburb      string `json:"suburb"         validate:"max=60"`
	CrossStreet string `json:"cross_street"   validate:"max=60"`
	Reference   string `json:"reference"      validate:"max=60"`
	DaneCode    string `json:"city_dane_code" validate:"required,dane"`
	IsDefault   bool   `json:"is_default"`
}

func (r originAddressRequest) toDomain(businessID uint) domain.OriginAddress {
	return domain.OriginAddress{
		BusinessID:  businessID,
		Alias:       r.Alias,
		Company:     r.Company,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Email:       r.Email,
		Phone:       r.Phone,
		Street:      r.Street,
		Suburb:      r.Suburb,
		CrossStreet: r.CrossStreet,
		Reference:   r.Reference,
		DaneCode:    r.DaneCode,
		IsDefault:   r.IsDefault,
	}
}

func (h *OriginHandler) bind(c echo.Context) (originAddressRequest, error) {
	var req originAddressRequest
	if err := c.Bind(&req); err != nil {
		return req, echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return req, err
	}
	return req, nil
}

// List handles GET /v1/origin-addresses.
//
// @Summary      List saved origin addresses
// @Tags         origin-addresses
// @Produce      json
// @Security     BearerAuth
// @Param        business_id  query     int  false  "Business (admins only)"
// @Success      200          {array}   domain.OriginAddress
// @Failure      502          {object}  errorResponse
// @Router       /v1/origin-addresses [get]
func (h *OriginHandler) List(c echo.Context) error {
	businessID, err := requireBusiness(c)
	if err != nil {
		return err
	}
	out, err := h.origins.ListOriginAddresses(c.Request().Context(), businessID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Create handles POST /v1/origin-addresses.
//
// @Summary      Save an origin address
// @Tags         origin-addresses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      originAddressRequest  true  "Address"
// @Success      201   {object}  domain.OriginAddress
// @Failure      422   {object}  errorResponse
// @Router       /v1/origin-addresses [post]
func (h *OriginHandler) Create(c echo.Context) error {
	businessID, err := requireBusiness(c)
	if err != nil {
		return err
	}
	req, err := h.bind(c)
	if err != nil {
		return err
	}
	out, err := h.origins.CreateOriginAddress(c.Request().Context(), businessID, req.toDomain(businessID))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, out)
}

// Update handles PUT /v1/origin-addresses/:id.
//
// @Summary      Update an origin address
// @Tags         origin-addresses
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      int                   true  "Address id"
// @Param        body  body      originAddressRequest  true  "Address"
// @Success      200   {object}  domain.OriginAddress
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /v1/origin-addresses/{id} [put]
func (h *OriginHandler) Update(c echo.Context) error {
	businessID, err := requireBusiness(c)
	if err != nil {
		return err
	}
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}
	req, err := h.bind(c)
	if err != nil {
		return err
	}
	addr := req.toDomain(businessID)
	addr.ID = id
	out, err := h.origins.UpdateOriginAddress(c.Request().Context(), businessID, id, addr)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Delete handles DELETE /v1/origin-addresses/:id.
//
// @Summary      Delete an origin address
// @Tags         origin-addresses
// @Security     BearerAuth
// @Param        id   path  int  true  "Address id"
// @Success      204
// @Failure      404  {object}  errorResponse
// @Router       /v1/origin-addresses/{id} [delete]
func (h *OriginHandler) Delete(c echo.Context) error {
	businessID, err := requireBusiness(c)
	if err != nil {
		return err
	}
	id, err := paramUint(c, "id")
	if err != nil {
		return err
	}
	if err := h.origins.DeleteOriginAddress(c.Request().Context(), businessID, id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

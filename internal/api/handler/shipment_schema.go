package handler

import (
	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/service"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// --- Response types ---

type shipmentItem struct {
	domain.Shipment
	StatusLabel string           `json:"status_label"`
	CarrierName string           `json:"carrier_name,omitempty"`
	CarrierLogo string           `json:"carrier_logo,omitempty"`
	Progress    service.Progress `json:"progress"`
}

type shipmentListResponse struct {
	Data       []shipmentItem          `json:"data"`
	Total      int64                   `json:"total"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
	TotalPages int                     `json:"total_pages"`
	Filters    service.ShipmentFilters `json:"filters"`
	Query      string                  `json:"query"`
}

type consultResponse struct {
	TrackingNumber string                  `json:"tracking_number"`
	Carrier        string                  `json:"carrier"`
	CarrierName    string                  `json:"carrier_name"`
	Status         string                  `json:"status"`
	Progress       service.Progress        `json:"progress"`
	Entries        []service.TimelineEntry `json:"entries"`
}

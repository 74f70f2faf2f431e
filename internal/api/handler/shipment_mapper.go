package handler

import (
	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/service"
)

// --- Domain → Response ---

func toShipmentItem(s domain.Shipment) shipmentItem {
	item := shipmentItem{
		Shipment:    s,
		StatusLabel: s.Status.Label(),
		Progress:    service.ProgressFor(s.Status),
	}
	if code := firstNonEmpty(s.CarrierCode, s.Carrier); code != "" {
		c, _ := domain.LookupCarrier(code)
		item.CarrierName = c.Name
		item.CarrierLogo = c.Logo
	}
	return item
}

func toListResponse(page *domain.ShipmentPage, f service.ShipmentFilters) shipmentListResponse {
	items := make([]shipmentItem, len(page.Items))
	for i, s := range page.Items {
		items[i] = toShipmentItem(s)
	}
	return shipmentListResponse{
		Data:       items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
		Filters:    f,
		Query:      f.Encode(),
	}
}

func toConsultResponse(res *domain.TrackingResult) consultResponse {
	c, _ := domain.LookupCarrier(res.Carrier)
	entries := make([]service.TimelineEntry, len(res.History))
	for i, h := range res.History {
		entries[i] = service.TimelineEntry{TrackHistory: h, Current: i == 0}
	}
	return consultResponse{
		TrackingNumber: res.TrackingNumber,
		Carrier:        res.Carrier,
		CarrierName:    c.Name,
		Status:         res.Status,
		Progress:       service.ProgressFor(domain.ShipmentStatus(res.Status)),
		Entries:        entries,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

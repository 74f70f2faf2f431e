package handler

import "github.com/99minutos/shipping-central/internal/core/service"

type openSessionRequest struct {
	BusinessID uint   `json:"business_id"`
	OrderID    string `json:"order_id"`
}

type openSessionResponse struct {
	SessionID string             `json:"session_id"`
	Wizard    service.WizardView `json:"wizard"`
}

type selectRateRequest struct {
	IDRate int `json:"id_rate" validate:"required,gt=0"`
}

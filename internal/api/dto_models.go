package api

import "github.com/example/subsmarket/internal/models"

// ErrorResponse is the body of every error answer.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse is a generic structure for simple success messages.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// InitializeResponse answers POST /users/initialize.
type InitializeResponse struct {
	User    *models.User `json:"user"`
	Created bool         `json:"created"`
}

// QRCodeResponse carries the pairing QR code of the WhatsApp instance.
type QRCodeResponse struct {
	QRCode string `json:"qrCode"`
}

// AddDeliverablesResponse lists the IDs of newly stocked deliverables.
type AddDeliverablesResponse struct {
	IDs []string `json:"ids"`
}

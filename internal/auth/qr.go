// Package auth renders QR pairing codes for the operator.
package auth

import (
	"fmt"

	"github.com/skip2/go-qrcode"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// QRHandler displays QR codes in the terminal during pairing.
type QRHandler struct {
	log waLog.Logger
}

// NewQRHandler creates a QRHandler.
func NewQRHandler(log waLog.Logger) *QRHandler {
	return &QRHandler{log: log.Sub("QR")}
}

// Display renders a QR payload as terminal ASCII art.
func (h *QRHandler) Display(code string) {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		h.log.Errorf("Failed to render QR code: %v", err)
		fmt.Println("QR code content:", code)
		return
	}

	h.log.Infof("Scan the QR code below with WhatsApp (Linked Devices)")
	fmt.Println()
	fmt.Println(qr.ToSmallString(false))
	fmt.Println()
}

// SaveToFile writes the QR code as a PNG, for headless deployments where
// the operator fetches it over the status endpoint.
func (h *QRHandler) SaveToFile(code, path string) error {
	if err := qrcode.WriteFile(code, qrcode.Medium, 256, path); err != nil {
		return fmt.Errorf("failed to save QR code: %w", err)
	}
	h.log.Infof("QR code saved to %s", path)
	return nil
}

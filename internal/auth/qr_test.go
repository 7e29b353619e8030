package auth

import (
	"os"
	"path/filepath"
	"testing"

	waLog "go.mau.fi/whatsmeow/util/log"
)

func TestSaveToFile(t *testing.T) {
	h := NewQRHandler(waLog.Noop)
	path := filepath.Join(t.TempDir(), "qr.png")

	if err := h.SaveToFile("2@pairing-payload", path); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("saved file unreadable: %v", err)
	}
	if len(data) < 8 || string(data[1:4]) != "PNG" {
		t.Errorf("saved file is not a PNG (%d bytes)", len(data))
	}
}

// services/qrcode_service.go
package services

import (
	"fmt"
	"net/url"
	"os"

	"github.com/skip2/go-qrcode"
)

// InviteURL builds the deep-link a scanning device follows to join a
// session: {APPLICATION_URL}/?session=CODE. The landing page consumes
// the query parameter once and scrubs it from the visible address.
func InviteURL(sessionCode string) string {
	applicationURL := os.Getenv("APPLICATION_URL")
	if applicationURL == "" {
		applicationURL = "http://localhost:8080" // Default for local testing
	}
	return applicationURL + "/?session=" + url.QueryEscape(sessionCode)
}

// GenerateInviteQR renders the join deep-link for a session as a QR
// code PNG of the given pixel size.
func GenerateInviteQR(sessionCode string, size int) ([]byte, error) {
	if sessionCode == "" {
		return nil, fmt.Errorf("session code is required")
	}
	png, err := qrcode.Encode(InviteURL(sessionCode), qrcode.Medium, size)
	if err != nil {
		return nil, err
	}
	return png, nil
}

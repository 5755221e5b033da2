// ABOUTME: QR code rendering for the browser-facing auth flow.
// ABOUTME: Raw pairing strings become PNG data URLs a frontend can drop into an img tag.

package supervisor

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// qrImageSize is the rendered PNG edge length in pixels.
const qrImageSize = 256

// renderQRDataURL encodes the raw QR string the network offered into a PNG
// data URL. The linking phone scans the image; the raw string itself is
// never shown to users.
func renderQRDataURL(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("encoding QR image: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

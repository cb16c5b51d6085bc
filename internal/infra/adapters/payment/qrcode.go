package payment

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// RenderQRDataURI encodes content as a PNG QR code data URI suitable for an <img> src.
func RenderQRDataURI(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, qrSize)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

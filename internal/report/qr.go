package report

import (
	"net/url"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the PNG edge length in pixels.
const DefaultQRSize = 300

// SubmitLink is the payload students scan: baseURL with the course and code
// as query parameters. An empty baseURL yields a classattend: URI.
func SubmitLink(baseURL, courseID, code string) string {
	q := url.Values{}
	q.Set("course", courseID)
	q.Set("code", code)
	if baseURL == "" {
		return "classattend:submit?" + q.Encode()
	}
	return baseURL + "?" + q.Encode()
}

// QRCode encodes content as a PNG.
func QRCode(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(content, qrcode.Medium, size)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr code")
	}
	return png, nil
}

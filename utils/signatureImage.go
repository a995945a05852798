package utils

import (
	"bytes"
	"encoding/base64"
	"image"
	"strings"

	"github.com/disintegration/imaging"
)

const signatureDataURLPrefix = "data:image/png;base64,"

// signatureDecodeFactor bounds the declared image size before any pixel is decoded.
const (
	signatureDecodeFactor  = 4
	signatureDecodeMaxSide = 4096
)

// NormalizeSignature decodes a base64 (optionally data-URL) signature image,
// bounds it to maxWidth x maxHeight and re-encodes it as a PNG data URL.
// Payloads that are not a decodable image, or that declare dimensions far beyond
// the bounds, are returned unchanged with ok=false; the signature stays opaque to
// the ledger in that case.
func NormalizeSignature(payload string, maxWidth, maxHeight int) (normalized string, ok bool) {
	raw := strings.TrimSpace(payload)
	if i := strings.Index(raw, ";base64,"); strings.HasPrefix(raw, "data:") && i > 0 {
		raw = raw[i+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(raw)
		if err != nil {
			return payload, false
		}
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return payload, false
	}
	limitW, limitH := signatureDecodeMaxSide, signatureDecodeMaxSide
	if maxWidth > 0 && maxHeight > 0 {
		limitW, limitH = maxWidth*signatureDecodeFactor, maxHeight*signatureDecodeFactor
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > limitW || cfg.Height > limitH {
		return payload, false
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return payload, false
	}

	b := img.Bounds()
	if maxWidth > 0 && maxHeight > 0 && (b.Dx() > maxWidth || b.Dy() > maxHeight) {
		img = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return payload, false
	}
	return signatureDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), true
}

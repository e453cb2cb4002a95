// Package imaging prepares uploaded receipt photos for storage:
// format sniffing, downscaling, and JPEG re-encoding. Receipts sit
// next to transactions as supporting evidence, so consistency and
// size matter more than fidelity.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"

	"golang.org/x/image/draw"
)

// MaxDimension is the maximum width or height for stored receipts.
const MaxDimension = 1600

// JPEGQuality is the compression quality for JPEG output.
const JPEGQuality = 80

// MaxUploadBytes caps how much of an upload is read.
const MaxUploadBytes = 10 << 20

// allowedMIME lists the accepted input MIME types.
var allowedMIME = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// Receipt contains the processed receipt image.
type Receipt struct {
	Data []byte
	MIME string
}

// ProcessReceipt reads image data, validates the format by sniffing
// bytes, downscales if larger than MaxDimension, and re-encodes to
// JPEG. The client-declared content type is never trusted.
func ProcessReceipt(r io.Reader) (*Receipt, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading receipt data: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, fmt.Errorf("receipt exceeds %d bytes", MaxUploadBytes)
	}

	detected := http.DetectContentType(data)
	if !allowedMIME[detected] {
		return nil, fmt.Errorf("unsupported receipt format: %s (only JPEG and PNG accepted)", detected)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding receipt: %w", err)
	}

	img = downscale(img, MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	return &Receipt{
		Data: buf.Bytes(),
		MIME: "image/jpeg",
	}, nil
}

// downscale resizes the image so neither dimension exceeds maxDim,
// preserving aspect ratio. Uses Catmull-Rom interpolation. Returns the
// original image if already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

func init() {
	// Register decoders (jpeg is registered by default, but be explicit).
	image.RegisterFormat("jpeg", "\xff\xd8", jpeg.Decode, jpeg.DecodeConfig)
	image.RegisterFormat("png", "\x89PNG", png.Decode, png.DecodeConfig)
}

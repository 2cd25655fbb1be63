// Package images downloads candidate pattern images, validates them and
// drops byte-identical or visually near-identical copies.
package images

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/mrlokans/patterns/internal/workpool"
)

// Inspection describes a decoded image.
type Inspection struct {
	Width     int
	Height    int
	Format    string
	Checksum  string
	Signature Signature
}

// Checksum returns the hex SHA-256 of data.
func Checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Inspect decodes data and computes its checksum and similarity signature.
// Decoding and downsampling run on pool; a nil pool runs them inline.
func Inspect(ctx context.Context, pool *workpool.Pool, data []byte) (Inspection, error) {
	return workpool.Run(ctx, pool, func() (Inspection, error) {
		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return Inspection{}, fmt.Errorf("decode image: %w", err)
		}
		b := img.Bounds()
		return Inspection{
			Width:     b.Dx(),
			Height:    b.Dy(),
			Format:    format,
			Checksum:  Checksum(data),
			Signature: NewSignature(img),
		}, nil
	})
}

// Dimensions reads only the image header.
func Dimensions(data []byte) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", fmt.Errorf("decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

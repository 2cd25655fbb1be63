package images

import (
	"bytes"
	"context"
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSIM_IdenticalImages(t *testing.T) {
	sig := NewSignature(blockImage(1, 300))

	assert.InDelta(t, 1.0, Similarity(sig, sig), 1e-9)
}

func TestSimilarity_ScalesOfSamePicture(t *testing.T) {
	big := NewSignature(blockImage(1, 800))
	small := NewSignature(blockImage(1, 400))

	assert.GreaterOrEqual(t, Similarity(big, small), 0.95)
	assert.Equal(t, 640000, big.PixelCount())
	assert.Equal(t, 160000, small.PixelCount())
}

func TestSimilarity_DifferentPictures(t *testing.T) {
	a := NewSignature(blockImage(1, 400))
	b := NewSignature(blockImage(2, 400))

	assert.Less(t, Similarity(a, b), 0.95)
	assert.False(t, IsSimilar(a, b, 0.95))
}

func TestSimilarity_DifferentShapes(t *testing.T) {
	a := Signature{Gray: scaleGray(blockImage(3, 300), 64, 64), Width: 300, Height: 300}
	same := Signature{Gray: scaleGray(blockImage(3, 300), 32, 32), Width: 300, Height: 300}
	other := Signature{Gray: scaleGray(blockImage(4, 300), 32, 32), Width: 300, Height: 300}

	sameScore, otherScore := Similarity(a, same), Similarity(a, other)
	require.False(t, math.IsNaN(sameScore))
	assert.Greater(t, sameScore, otherScore)
}

func TestSimilarity_UndefinedIsNotSimilar(t *testing.T) {
	assert.True(t, math.IsNaN(Similarity(Signature{}, NewSignature(blockImage(1, 100)))))
	assert.False(t, IsSimilar(Signature{}, Signature{}, 0.5))

	empty := image.NewGray(image.Rect(0, 0, 0, 0))
	assert.True(t, math.IsNaN(SSIM(empty, empty)))
}

func TestInspect(t *testing.T) {
	data := encodePNG(t, blockImage(4, 256))

	insp, err := Inspect(context.Background(), nil, data)

	require.NoError(t, err)
	assert.Equal(t, 256, insp.Width)
	assert.Equal(t, 256, insp.Height)
	assert.Equal(t, "png", insp.Format)
	assert.Equal(t, Checksum(data), insp.Checksum)
	assert.Len(t, insp.Checksum, 64)
	assert.Equal(t, image.Pt(SignatureSize, SignatureSize), insp.Signature.Gray.Bounds().Size())

	_, err = Inspect(context.Background(), nil, []byte("garbage"))
	assert.Error(t, err)
}

func TestDownscale_BoundsLongestSide(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 400, 100))

	out, err := Downscale(encodePNG(t, src), 200)
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 200, cfg.Width)
	assert.Equal(t, 50, cfg.Height)
}

func TestDownscale_RejectsGarbage(t *testing.T) {
	_, err := Downscale([]byte("not an image"), 100)
	assert.Error(t, err)
}

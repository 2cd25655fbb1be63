package images

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// SignatureSize is the side length of the grayscale raster used for
// perceptual comparison.
const SignatureSize = 64

const (
	ssimWindow = 7
	ssimC1     = (0.01 * 255) * (0.01 * 255)
	ssimC2     = (0.03 * 255) * (0.03 * 255)
)

// Signature is a downsampled grayscale copy of an image together with the
// original dimensions. It is never persisted.
type Signature struct {
	Gray   *image.Gray
	Width  int
	Height int
}

// PixelCount returns the original image area.
func (s Signature) PixelCount() int {
	return s.Width * s.Height
}

// NewSignature downsamples img to a SignatureSize square grayscale raster.
func NewSignature(img image.Image) Signature {
	b := img.Bounds()
	return Signature{
		Gray:   scaleGray(img, SignatureSize, SignatureSize),
		Width:  b.Dx(),
		Height: b.Dy(),
	}
}

func scaleGray(src image.Image, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// Similarity returns the structural similarity of two signatures in [-1, 1].
// Signatures of different shapes are resized to the smaller common shape.
// The result is NaN when no comparison is possible.
func Similarity(a, b Signature) float64 {
	if a.Gray == nil || b.Gray == nil {
		return math.NaN()
	}
	ga, gb := a.Gray, b.Gray
	sa, sb := ga.Bounds().Size(), gb.Bounds().Size()
	if sa != sb {
		w, h := min(sa.X, sb.X), min(sa.Y, sb.Y)
		if sa.X != w || sa.Y != h {
			ga = scaleGray(ga, w, h)
		}
		if sb.X != w || sb.Y != h {
			gb = scaleGray(gb, w, h)
		}
	}
	return SSIM(ga, gb)
}

// IsSimilar reports whether two signatures meet the threshold. An undefined
// score is never similar.
func IsSimilar(a, b Signature, threshold float64) bool {
	score := Similarity(a, b)
	if math.IsNaN(score) {
		return false
	}
	return score >= threshold
}

// SSIM computes the mean structural similarity index over uniform square
// windows. Both images must have the same bounds size.
func SSIM(a, b *image.Gray) float64 {
	size := a.Bounds().Size()
	if size != b.Bounds().Size() || size.X == 0 || size.Y == 0 {
		return math.NaN()
	}
	win := min(ssimWindow, size.X, size.Y)
	n := float64(win * win)

	pa, pb := grayValues(a), grayValues(b)
	total, count := 0.0, 0
	for y := 0; y+win <= size.Y; y++ {
		for x := 0; x+win <= size.X; x++ {
			var sumA, sumB, sumAA, sumBB, sumAB float64
			for dy := 0; dy < win; dy++ {
				row := (y + dy) * size.X
				for dx := 0; dx < win; dx++ {
					va, vb := pa[row+x+dx], pb[row+x+dx]
					sumA += va
					sumB += vb
					sumAA += va * va
					sumBB += vb * vb
					sumAB += va * vb
				}
			}
			muA, muB := sumA/n, sumB/n
			varA := sumAA/n - muA*muA
			varB := sumBB/n - muB*muB
			cov := sumAB/n - muA*muB

			num := (2*muA*muB + ssimC1) * (2*cov + ssimC2)
			den := (muA*muA + muB*muB + ssimC1) * (varA + varB + ssimC2)
			total += num / den
			count++
		}
	}
	if count == 0 {
		return math.NaN()
	}
	return total / float64(count)
}

// grayValues copies pixel intensities into a dense row-major slice.
func grayValues(g *image.Gray) []float64 {
	r := g.Bounds()
	w, h := r.Dx(), r.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := g.Pix[y*g.Stride : y*g.Stride+w]
		for x, v := range row {
			out[y*w+x] = float64(v)
		}
	}
	return out
}

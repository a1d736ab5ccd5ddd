package imaging

import (
	"image"
	"image/color"
	"testing"

	"github.com/antonkazakov/firewatch/internal/core/domain"
)

func uploadFrom(img image.Image) *domain.ImageUpload {
	bounds := img.Bounds()
	return &domain.ImageUpload{
		Filename: "test.png",
		MimeType: "image/png",
		Format:   "png",
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Decoded:  img,
	}
}

// grayRampImage mimics a false-colour thermal ramp: zero saturation,
// smooth gradient, tiny palette.
func grayRampImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(128 + (x%16)*2)
			img.Set(x, y, color.RGBA{R: v, G: v, B: v, A: 255})
		}
	}
	return img
}

// noisyPhotoImage produces a colourful, high-variance scene via a fixed LCG.
func noisyPhotoImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	seed := uint32(1)
	next := func() uint8 {
		seed = seed*1664525 + 1013904223
		return uint8(seed >> 24)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: next(), G: next(), B: next(), A: 255})
		}
	}
	return img
}

// blazeImage fills most of the frame with saturated bright reds and oranges.
func blazeImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r := uint8(220 + (x+y)%36)
			g := uint8(40 + (x*7)%60)
			b := uint8(10 + (y*3)%25)
			img.Set(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

// forestImage is a dark-green scene with no warm pixels.
func forestImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := uint8(70 + (x+y)%50)
			img.Set(x, y, color.RGBA{R: uint8(10 + x%20), G: g, B: uint8(15 + y%18), A: 255})
		}
	}
	return img
}

func TestClassifyFlagsGrayRampAsThermal(t *testing.T) {
	cls := NewClassifier().Classify(uploadFrom(grayRampImage(64, 64)))
	if !cls.IsThermal {
		t.Fatalf("expected gray ramp to be flagged thermal")
	}
}

func TestClassifyAcceptsNoisyPhotoAsVisible(t *testing.T) {
	cls := NewClassifier().Classify(uploadFrom(noisyPhotoImage(64, 64)))
	if cls.IsThermal {
		t.Fatalf("expected high-variance colour image to pass as visible spectrum")
	}
}

func TestFireProbabilityHighForBlaze(t *testing.T) {
	cls := NewClassifier().Classify(uploadFrom(blazeImage(64, 64)))
	if cls.FireProbability < 0.5 {
		t.Fatalf("expected high fire probability for blaze image, got %.3f", cls.FireProbability)
	}
}

func TestFireProbabilityLowForForest(t *testing.T) {
	cls := NewClassifier().Classify(uploadFrom(forestImage(64, 64)))
	if cls.FireProbability > 0.25 {
		t.Fatalf("expected low fire probability for forest image, got %.3f", cls.FireProbability)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	upload := uploadFrom(blazeImage(48, 48))
	classifier := NewClassifier()
	first := classifier.Classify(upload)
	second := classifier.Classify(upload)
	if first != second {
		t.Fatalf("classification not deterministic: %+v vs %+v", first, second)
	}
}

func TestRGBToHSVKnownValues(t *testing.T) {
	cases := []struct {
		r, g, b uint8
		h, s, v float64
	}{
		{255, 0, 0, 0, 1, 1},
		{0, 255, 0, 120, 1, 1},
		{0, 0, 255, 240, 1, 1},
		{128, 128, 128, 0, 0, 128.0 / 255.0},
	}
	for _, tc := range cases {
		h, s, v := rgbToHSV(tc.r, tc.g, tc.b)
		if abs(h-tc.h) > 0.5 || abs(s-tc.s) > 0.01 || abs(v-tc.v) > 0.01 {
			t.Fatalf("rgbToHSV(%d,%d,%d) = (%.1f,%.2f,%.2f), want (%.1f,%.2f,%.2f)",
				tc.r, tc.g, tc.b, h, s, v, tc.h, tc.s, tc.v)
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

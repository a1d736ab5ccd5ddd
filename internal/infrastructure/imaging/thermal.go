package imaging

import (
	"image"
	"math"

	"github.com/antonkazakov/firewatch/internal/core/domain"
)

// Thermal detection thresholds, tuned against false-colour thermal palettes:
// such captures have washed-out saturation, a flat brightness profile, and a
// narrow colour ramp.
const (
	thermalSaturationMean = 25.0 / 255.0
	thermalValueStdDev    = 18.0 / 255.0
	thermalUniqueRatio    = 0.08
	thermalSampleMaxSide  = 512
	fireSampleMaxSide     = 640
	warmSaturationFloor   = 70.0 / 255.0
	warmValueFloor        = 80.0 / 255.0
	fireRedRatioWeight    = 0.65
	fireBrightnessWeight  = 0.35
	warmHueLowCeilingDeg  = 30.0
	warmHueHighFloorDeg   = 320.0
)

// Classifier implements the local thermal/fire-probability heuristics.
// Deterministic, side-effect-free, bounded by the downsampling stride.
type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

func (c *Classifier) Classify(img *domain.ImageUpload) domain.Classification {
	return domain.Classification{
		IsThermal:       detectThermal(img.Decoded),
		FireProbability: estimateFireProbability(img.Decoded),
	}
}

// detectThermal flags narrow-palette false-colour imagery using downsampled
// HSV statistics and colour diversity.
func detectThermal(img image.Image) bool {
	stride := sampleStride(img.Bounds(), thermalSampleMaxSide)

	var (
		satSum    float64
		valSum    float64
		valSqSum  float64
		pixels    float64
		uniqueRGB = make(map[uint32]struct{})
	)

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			r, g, b := rgb8At(img, x, y)
			_, s, v := rgbToHSV(r, g, b)
			satSum += s
			valSum += v
			valSqSum += v * v
			pixels++
			uniqueRGB[uint32(r)<<16|uint32(g)<<8|uint32(b)] = struct{}{}
		}
	}
	if pixels == 0 {
		return true
	}

	satMean := satSum / pixels
	valMean := valSum / pixels
	valVariance := valSqSum/pixels - valMean*valMean
	if valVariance < 0 {
		valVariance = 0
	}
	valStd := math.Sqrt(valVariance)
	uniqueRatio := float64(len(uniqueRGB)) / pixels

	return satMean < thermalSaturationMean || valStd < thermalValueStdDev || uniqueRatio < thermalUniqueRatio
}

// estimateFireProbability masks warm high-intensity pixels and blends the
// warm ratio with global brightness. Coarse by design; the external model
// remains authoritative for non-thermal images.
func estimateFireProbability(img image.Image) float64 {
	stride := sampleStride(img.Bounds(), fireSampleMaxSide)

	var (
		warm   float64
		valSum float64
		pixels float64
	)

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stride {
		for x := bounds.Min.X; x < bounds.Max.X; x += stride {
			r, g, b := rgb8At(img, x, y)
			h, s, v := rgbToHSV(r, g, b)
			valSum += v
			pixels++
			if s < warmSaturationFloor || v < warmValueFloor {
				continue
			}
			if h <= warmHueLowCeilingDeg || h >= warmHueHighFloorDeg {
				warm++
			}
		}
	}
	if pixels == 0 {
		return 0
	}

	redRatio := warm / pixels
	brightness := valSum / pixels
	return clamp01(fireRedRatioWeight*redRatio + fireBrightnessWeight*brightness)
}

func sampleStride(bounds image.Rectangle, maxSide int) int {
	stride := 1
	if w := bounds.Dx(); w > maxSide {
		stride = w / maxSide
	}
	if h := bounds.Dy(); h > maxSide && h/maxSide > stride {
		stride = h / maxSide
	}
	if stride < 1 {
		stride = 1
	}
	return stride
}

func rgb8At(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

// rgbToHSV converts 8-bit RGB to hue in degrees [0,360) and
// saturation/value in [0,1].
func rgbToHSV(r8, g8, b8 uint8) (h, s, v float64) {
	r := float64(r8) / 255.0
	g := float64(g8) / 255.0
	b := float64(b8) / 255.0

	maxC := max3(r, g, b)
	minC := min3(r, g, b)
	delta := maxC - minC

	v = maxC
	if maxC > 0 {
		s = delta / maxC
	}
	if delta == 0 {
		return 0, s, v
	}

	switch maxC {
	case r:
		h = 60 * ((g - b) / delta)
	case g:
		h = 60 * ((b-r)/delta + 2)
	default:
		h = 60 * ((r-g)/delta + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/antonkazakov/firewatch/internal/core/domain"
)

const (
	bannerPadding    = 12
	bannerLineHeight = 17
	maxSummaryRunes  = 220
	jpegQuality      = 90
)

var (
	fireBannerColor     = color.RGBA{R: 214, G: 45, B: 32, A: 255}
	clearBannerColor    = color.RGBA{R: 45, G: 106, B: 204, A: 255}
	degradedBannerColor = color.RGBA{R: 176, G: 108, B: 0, A: 255}
	bannerTextColor     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Annotator overlays a verdict banner on a copy of the original image and
// encodes the result for transport. Degraded verdicts get a distinct banner
// so a failed analysis is never mistaken for a clean negative.
type Annotator struct{}

func NewAnnotator() *Annotator {
	return &Annotator{}
}

func (a *Annotator) Annotate(img *domain.ImageUpload, verdict domain.ImageVerdict) (domain.AnnotatedImage, error) {
	annotated := cloneRGBA(img.Decoded)

	lines := bannerLines(verdict, annotated.Bounds().Dx())
	bannerHeight := len(lines)*bannerLineHeight + bannerPadding*2
	if bannerHeight > annotated.Bounds().Dy() {
		bannerHeight = annotated.Bounds().Dy()
	}

	banner := image.Rect(0, 0, annotated.Bounds().Dx(), bannerHeight)
	draw.Draw(annotated, banner, image.NewUniform(bannerColor(verdict)), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  annotated,
		Src:  image.NewUniform(bannerTextColor),
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		drawer.Dot = fixed.P(bannerPadding, bannerPadding+(i+1)*bannerLineHeight-4)
		drawer.DrawString(line)
	}

	encoded, err := encodeImage(annotated, img.Format)
	if err != nil {
		return domain.AnnotatedImage{}, domain.WrapError(domain.ErrAnnotation, "annotate image", err)
	}

	return domain.AnnotatedImage{
		Filename:    img.Filename,
		ImageBase64: base64.StdEncoding.EncodeToString(encoded),
	}, nil
}

func bannerColor(verdict domain.ImageVerdict) color.RGBA {
	switch {
	case verdict.Source == domain.SourceError:
		return degradedBannerColor
	case verdict.FireDetected:
		return fireBannerColor
	default:
		return clearBannerColor
	}
}

func bannerLines(verdict domain.ImageVerdict, width int) []string {
	header := "NO FIRE DETECTED"
	if verdict.FireDetected {
		header = "FIRE DETECTED"
	}
	if verdict.Confidence != nil {
		header = fmt.Sprintf("%s (confidence %.2f)", header, *verdict.Confidence)
	}
	if verdict.Source == domain.SourceError {
		header = "ANALYSIS DEGRADED - " + header
	}

	summary := strings.TrimSpace(verdict.AnalysisSummary)
	if summary == "" {
		summary = "Analysis completed."
	}
	if runes := []rune(summary); len(runes) > maxSummaryRunes {
		summary = string(runes[:maxSummaryRunes-3]) + "..."
	}

	maxChars := (width - bannerPadding*2) / basicfont.Face7x13.Advance
	if maxChars < 16 {
		maxChars = 16
	}
	return append([]string{header}, wrapText(summary, maxChars)...)
}

func wrapText(text string, maxChars int) []string {
	var lines []string
	var current strings.Builder
	for _, word := range strings.Fields(text) {
		switch {
		case current.Len() == 0:
			current.WriteString(word)
		case current.Len()+1+len(word) <= maxChars:
			current.WriteByte(' ')
			current.WriteString(word)
		default:
			lines = append(lines, current.String())
			current.Reset()
			current.WriteString(word)
		}
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}

func cloneRGBA(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	return dst
}

// encodeImage re-encodes in the source format. WebP has no encoder in the
// Go ecosystem worth carrying, so annotated WebP comes back as JPEG.
func encodeImage(img image.Image, format string) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case "png":
		if err := png.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	default:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	}
	return buf.Bytes(), nil
}

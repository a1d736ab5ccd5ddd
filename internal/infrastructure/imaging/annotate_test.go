package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"testing"

	"github.com/antonkazakov/firewatch/internal/core/domain"
)

func decodeAnnotated(t *testing.T, annotated domain.AnnotatedImage) image.Image {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(annotated.ImageBase64)
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode annotated image: %v", err)
	}
	return img
}

func TestAnnotatePreservesDimensions(t *testing.T) {
	upload := uploadFrom(forestImage(200, 150))
	confidence := 0.87
	annotated, err := NewAnnotator().Annotate(upload, domain.ImageVerdict{
		Filename:        upload.Filename,
		FireDetected:    true,
		Confidence:      &confidence,
		AnalysisSummary: "Visible smoke column on the ridge line with active flame front.",
		Source:          domain.SourceModel,
	})
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if annotated.Filename != upload.Filename {
		t.Fatalf("expected filename %q, got %q", upload.Filename, annotated.Filename)
	}

	img := decodeAnnotated(t, annotated)
	if img.Bounds().Dx() != 200 || img.Bounds().Dy() != 150 {
		t.Fatalf("annotated dimensions changed: %v", img.Bounds())
	}
}

func TestAnnotateDoesNotMutateOriginal(t *testing.T) {
	original := forestImage(120, 90)
	before := original.Pix[0]
	upload := uploadFrom(original)

	if _, err := NewAnnotator().Annotate(upload, domain.ImageVerdict{Source: domain.SourceModel}); err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if original.Pix[0] != before {
		t.Fatalf("annotator mutated the original image")
	}
}

func TestAnnotateBannerColorsBySource(t *testing.T) {
	cases := []struct {
		name    string
		verdict domain.ImageVerdict
		want    [3]uint8
	}{
		{
			name:    "fire",
			verdict: domain.ImageVerdict{FireDetected: true, Source: domain.SourceModel},
			want:    [3]uint8{214, 45, 32},
		},
		{
			name:    "clear",
			verdict: domain.ImageVerdict{Source: domain.SourceModel},
			want:    [3]uint8{45, 106, 204},
		},
		{
			name:    "degraded",
			verdict: domain.ImageVerdict{FireDetected: true, Source: domain.SourceError},
			want:    [3]uint8{176, 108, 0},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			upload := uploadFrom(forestImage(180, 140))
			annotated, err := NewAnnotator().Annotate(upload, tc.verdict)
			if err != nil {
				t.Fatalf("Annotate() error = %v", err)
			}

			img := decodeAnnotated(t, annotated)
			r, g, b, _ := img.At(2, 2).RGBA()
			got := [3]uint8{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)}
			if got != tc.want {
				t.Fatalf("banner pixel = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAnnotateSucceedsForDegradedVerdict(t *testing.T) {
	upload := uploadFrom(noisyPhotoImage(64, 64))
	annotated, err := NewAnnotator().Annotate(upload, domain.ImageVerdict{
		AnalysisSummary: "Analysis degraded: model call failed, verdict derived from local heuristic.",
		Source:          domain.SourceError,
	})
	if err != nil {
		t.Fatalf("Annotate() error = %v", err)
	}
	if annotated.ImageBase64 == "" {
		t.Fatalf("expected encoded payload for degraded verdict")
	}
}

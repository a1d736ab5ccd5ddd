package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"

	"github.com/antonkazakov/firewatch/internal/core/domain"
)

// Preparer validates a single upload and decodes it. Pure validation,
// no side effects; batch-level count checks belong to the orchestrator.
type Preparer struct {
	allowed  map[string]struct{}
	maxBytes int64
}

func NewPreparer(allowedMIMETypes []string, maxBytes int64) *Preparer {
	allowed := make(map[string]struct{}, len(allowedMIMETypes))
	for _, mt := range allowedMIMETypes {
		mt = strings.ToLower(strings.TrimSpace(mt))
		if mt != "" {
			allowed[mt] = struct{}{}
		}
	}
	return &Preparer{allowed: allowed, maxBytes: maxBytes}
}

func (p *Preparer) Prepare(upload domain.RawUpload) (*domain.ImageUpload, error) {
	filename := sanitizeFilename(upload.Filename)

	if len(upload.Data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "prepare image",
			fmt.Errorf("uploaded image %q is empty", filename))
	}
	if p.maxBytes > 0 && int64(len(upload.Data)) > p.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "prepare image",
			fmt.Errorf("uploaded image %q exceeds the maximum allowed size of %d bytes", filename, p.maxBytes))
	}

	declared := normalizeMIME(upload.ContentType)
	sniffed := normalizeMIME(http.DetectContentType(upload.Data))
	if declared != "" && !p.isAllowed(declared) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "prepare image",
			fmt.Errorf("unsupported file type %q", declared))
	}
	if !p.isAllowed(sniffed) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "prepare image",
			fmt.Errorf("unsupported content sniffed as %q", sniffed))
	}

	decoded, format, err := image.Decode(bytes.NewReader(upload.Data))
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "prepare image",
			fmt.Errorf("unable to decode image %q: %w", filename, err))
	}
	bounds := decoded.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "prepare image",
			errors.New("decoded image has no pixels"))
	}

	mimeType := declared
	if mimeType == "" {
		mimeType = sniffed
	}

	return &domain.ImageUpload{
		Filename: filename,
		MimeType: mimeType,
		Format:   format,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Raw:      upload.Data,
		Decoded:  decoded,
	}, nil
}

func (p *Preparer) isAllowed(mimeType string) bool {
	_, ok := p.allowed[mimeType]
	return ok
}

func normalizeMIME(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	// image/jpg shows up in the wild even though it was never registered
	if mimeType == "image/jpg" {
		return "image/jpeg"
	}
	return mimeType
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "image.jpg"
	}
	return base
}

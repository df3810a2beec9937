// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package prepare

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/pdiddy/propextract/internal/container"
)

// DefaultMarkitdownImage is the converter image used when none is configured.
const DefaultMarkitdownImage = "markitdown:latest"

// MarkitdownExtractor converts PDFs by piping them through the markitdown
// container image. Its Markdown output is plain enough to serve as
// extraction text and keeps table structure the native parser loses.
type MarkitdownExtractor struct {
	runtime container.Runtime
	image   string
}

// NewMarkitdownExtractor verifies that image exists in rt before returning.
func NewMarkitdownExtractor(ctx context.Context, rt container.Runtime, image string) (*MarkitdownExtractor, error) {
	if image == "" {
		image = DefaultMarkitdownImage
	}
	if err := rt.ImageExists(ctx, image); err != nil {
		return nil, fmt.Errorf("markitdown image not available in %s: %w", rt.Name(), err)
	}
	return &MarkitdownExtractor{runtime: rt, image: image}, nil
}

func (m *MarkitdownExtractor) ExtractText(ctx context.Context, pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	var out bytes.Buffer
	if err := m.runtime.Run(ctx, m.image, f, &out); err != nil {
		return "", fmt.Errorf("converting %s with markitdown: %w", pdfPath, err)
	}
	return out.String(), nil
}

// NewExtractor returns the extractor named by backend: "native" (or empty)
// or "markitdown".
func NewExtractor(ctx context.Context, backend, image string) (TextExtractor, error) {
	switch backend {
	case "", "native":
		return PDFExtractor{}, nil
	case "markitdown":
		rt, err := container.DetectRuntime(ctx)
		if err != nil {
			return nil, err
		}
		return NewMarkitdownExtractor(ctx, rt, image)
	default:
		return nil, fmt.Errorf("unknown text backend %q", backend)
	}
}

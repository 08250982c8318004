// Package pdf wraps the PDF libraries used to prepare documents for
// extraction: go-fitz for rendering and pdfcpu for page splitting.
package pdf

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// DefaultDPI renders at four times the 72 DPI page size so the small print
// on till receipts stays legible.
const DefaultDPI = 288

// Rasterizer renders PDF pages with MuPDF through go-fitz.
type Rasterizer struct {
	dpi float64
}

// NewRasterizer creates a Rasterizer. A non-positive dpi selects DefaultDPI.
func NewRasterizer(dpi float64) *Rasterizer {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	return &Rasterizer{dpi: dpi}
}

// FirstPagePNG renders page one of the PDF at path.
func (r *Rasterizer) FirstPagePNG(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer doc.Close()

	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("PDF %s has no pages", path)
	}

	png, err := doc.ImagePNG(0, r.dpi)
	if err != nil {
		return nil, fmt.Errorf("rendering first page of %s: %w", path, err)
	}
	return png, nil
}

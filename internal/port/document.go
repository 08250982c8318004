package port

import "context"

// Rasterizer renders document pages to images.
type Rasterizer interface {
	// FirstPagePNG returns the first page of the document at path as PNG bytes.
	FirstPagePNG(ctx context.Context, path string) ([]byte, error)
}

// DocumentSplitter splits multi-page PDFs into single-page files.
type DocumentSplitter interface {
	PageCount(path string) (int, error)
	// Split writes one PDF per page into outDir and returns the paths in page order.
	Split(ctx context.Context, path, outDir string) ([]string, error)
}

package pdf

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// Splitter splits multi-page PDFs with pdfcpu.
type Splitter struct {
	conf *model.Configuration
}

// NewSplitter creates a Splitter that never touches the pdfcpu user config directory.
func NewSplitter() *Splitter {
	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Splitter{conf: conf}
}

// PageCount returns the number of pages of the PDF at path.
func (s *Splitter) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("counting PDF pages: %w", err)
	}
	return n, nil
}

// Split writes one file per page into outDir, named "<base>_page<n>.pdf",
// and returns them in page order. A single-page PDF is returned unchanged.
func (s *Splitter) Split(ctx context.Context, path, outDir string) ([]string, error) {
	n, err := s.PageCount(path)
	if err != nil {
		return nil, err
	}
	if n <= 1 {
		return []string{path}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("splitting PDF: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	// pdfcpu names its output after the input, so split into a private
	// directory to keep documents with the same base name apart.
	tmp, err := os.MkdirTemp(outDir, base+"-split-")
	if err != nil {
		return nil, fmt.Errorf("splitting PDF: %w", err)
	}
	defer os.RemoveAll(tmp)

	if err := api.SplitFile(path, tmp, 1, s.conf); err != nil {
		return nil, fmt.Errorf("splitting PDF: %w", err)
	}

	entries, err := os.ReadDir(tmp)
	if err != nil {
		return nil, fmt.Errorf("splitting PDF: %w", err)
	}
	type page struct {
		num  int
		name string
	}
	pages := make([]page, 0, len(entries))
	for _, e := range entries {
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		idx := strings.LastIndex(stem, "_")
		if idx < 0 {
			continue
		}
		num, err := strconv.Atoi(stem[idx+1:])
		if err != nil {
			continue
		}
		pages = append(pages, page{num: num, name: e.Name()})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].num < pages[j].num })

	out := make([]string, 0, len(pages))
	for i, p := range pages {
		dst := filepath.Join(outDir, fmt.Sprintf("%s_page%d.pdf", base, i+1))
		if err := os.Rename(filepath.Join(tmp, p.name), dst); err != nil {
			return nil, fmt.Errorf("splitting PDF: %w", err)
		}
		out = append(out, dst)
	}
	return out, nil
}

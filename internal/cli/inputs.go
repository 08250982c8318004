package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"invoicer/internal/archive"
	"invoicer/internal/domain"
	"invoicer/internal/filenamer"
	"invoicer/internal/port"
)

// inputSet is the list of files to process for one command line argument.
type inputSet struct {
	Files []string
	// BaseDir is where renamed files go when no output dir is given.
	// Empty keeps each file in its own directory.
	BaseDir string
	cleanup []string
}

// Close removes the temporary directories created while collecting.
func (s *inputSet) Close() {
	for _, dir := range s.cleanup {
		_ = os.RemoveAll(dir)
	}
}

// collectInputs resolves arg to the invoice files it names: a single PDF or
// image, the PDFs and images directly inside a directory, or the PDFs inside
// a zip archive.
func collectInputs(arg string) (*inputSet, error) {
	info, err := os.Stat(arg)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %s", domain.MsgFileNotFound, arg)
		}
		return nil, err
	}

	if info.IsDir() {
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}
		set := &inputSet{}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || name[0] == '.' || !(filenamer.IsPDF(name) || filenamer.IsImage(name)) {
				continue
			}
			set.Files = append(set.Files, filepath.Join(arg, name))
		}
		if len(set.Files) == 0 {
			return nil, fmt.Errorf("no PDF files found in %s", arg)
		}
		sort.Strings(set.Files)
		return set, nil
	}

	switch {
	case filenamer.IsZip(arg):
		tmp, err := os.MkdirTemp("", "invoice-renamer-zip-")
		if err != nil {
			return nil, err
		}
		set := &inputSet{BaseDir: filepath.Dir(arg), cleanup: []string{tmp}}
		files, err := archive.ExtractPDFs(arg, tmp)
		if err != nil {
			set.Close()
			return nil, err
		}
		if len(files) == 0 {
			set.Close()
			return nil, fmt.Errorf("no PDF files found in %s", arg)
		}
		set.Files = files
		return set, nil
	case filenamer.IsPDF(arg), filenamer.IsImage(arg):
		return &inputSet{Files: []string{arg}}, nil
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, arg)
}

// splitPages replaces each multi-page PDF in set with its single pages.
// Pages are written to a temporary directory and renamed into the output
// directory, so BaseDir is pinned to the source location first.
func splitPages(ctx context.Context, splitter port.DocumentSplitter, set *inputSet) error {
	tmp, err := os.MkdirTemp("", "invoice-renamer-pages-")
	if err != nil {
		return err
	}
	set.cleanup = append(set.cleanup, tmp)

	var out []string
	for i, f := range set.Files {
		if !filenamer.IsPDF(f) {
			out = append(out, f)
			continue
		}
		if set.BaseDir == "" {
			set.BaseDir = filepath.Dir(f)
		}
		pages, err := splitter.Split(ctx, f, filepath.Join(tmp, fmt.Sprintf("%03d", i)))
		if err != nil {
			return fmt.Errorf("splitting %s: %w", filepath.Base(f), err)
		}
		out = append(out, pages...)
	}
	set.Files = out
	return nil
}

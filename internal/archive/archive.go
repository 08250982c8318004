// Package archive reads PDF batches from zip uploads and packages renamed
// results into a zip for download.
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"invoicer/internal/domain"
	"invoicer/internal/filenamer"
)

// MaxEntrySize caps the uncompressed size of a single extracted entry.
const MaxEntrySize int64 = 100 << 20

// ErrEntryTooLarge is returned when an entry exceeds MaxEntrySize.
var ErrEntryTooLarge = errors.New("zip entry too large")

// ExtractPDFs extracts the PDF entries of the zip at zipPath into dir,
// flattening any folder structure. Directories, macOS metadata, dotfiles and
// non-PDF entries are skipped. Entries that flatten to the same name get a
// numeric suffix.
func ExtractPDFs(zipPath, dir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("opening zip %s: %w", zipPath, err)
	}
	defer r.Close()

	if err := filenamer.EnsureDir(dir); err != nil {
		return nil, err
	}

	var out []string
	for _, f := range r.File {
		name := f.Name
		base := path.Base(name)
		if f.FileInfo().IsDir() ||
			strings.Contains(name, "__MACOSX") ||
			strings.HasPrefix(name, ".") ||
			strings.HasPrefix(base, ".") ||
			!filenamer.IsPDF(base) {
			continue
		}

		dst := uniquePath(dir, base)
		if err := extractFile(f, dst); err != nil {
			return nil, err
		}
		out = append(out, dst)
	}
	return out, nil
}

func uniquePath(dir, name string) string {
	dst := filepath.Join(dir, name)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; filenamer.Exists(dst); n++ {
		dst = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
	}
	return dst
}

func extractFile(f *zip.File, dst string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening zip entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	w, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}
	n, err := io.Copy(w, io.LimitReader(rc, MaxEntrySize+1))
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	if n > MaxEntrySize {
		_ = os.Remove(dst)
		return fmt.Errorf("%w: %s", ErrEntryTooLarge, f.Name)
	}
	return nil
}

// Writer builds a zip file on disk.
type Writer struct {
	f     *os.File
	zw    *zip.Writer
	names map[string]struct{}
}

// Create opens a new zip file at dst, replacing any existing file.
func Create(dst string) (*Writer, error) {
	if err := filenamer.EnsureDir(filepath.Dir(dst)); err != nil {
		return nil, err
	}
	f, err := os.Create(dst)
	if err != nil {
		return nil, fmt.Errorf("creating archive %s: %w", dst, err)
	}
	return &Writer{f: f, zw: zip.NewWriter(f), names: make(map[string]struct{})}, nil
}

// AddFile stores the file at src under its base name.
func (w *Writer) AddFile(src string) error {
	name := filepath.Base(src)
	if _, dup := w.names[name]; dup {
		return fmt.Errorf("duplicate archive entry %s", name)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header for %s: %w", src, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	dst, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("adding %s: %w", name, err)
	}
	if _, err := io.Copy(dst, in); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	w.names[name] = struct{}{}
	return nil
}

// Len returns the number of entries written so far.
func (w *Writer) Len() int {
	return len(w.names)
}

// Close finishes the archive and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.zw.Close(); err != nil {
		_ = w.f.Close()
		return fmt.Errorf("finishing archive: %w", err)
	}
	return w.f.Close()
}

// WriteResults packages the renamed outputs of the successful results into
// a zip at dst and returns the number of files stored. Missing outputs, as
// in a dry run, are skipped.
func WriteResults(dst string, results []domain.ProcessingResult) (int, error) {
	w, err := Create(dst)
	if err != nil {
		return 0, err
	}
	for _, r := range results {
		if !r.Success || r.NewPath == "" || !filenamer.Exists(r.NewPath) {
			continue
		}
		if err := w.AddFile(r.NewPath); err != nil {
			_ = w.Close()
			return 0, err
		}
	}
	n := w.Len()
	return n, w.Close()
}

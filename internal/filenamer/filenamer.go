// Package filenamer builds deterministic file names from extracted invoice
// data.
//
// UniqueNameFor probes the target directory without locking. Two writers
// renaming into the same directory at the same time can race on a name, so
// callers must serialize the name and rename step per output directory.
package filenamer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"invoicer/internal/domain"
)

// maxSuffix bounds the collision counter.
const maxSuffix = 10000

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	disallowed    = regexp.MustCompile(`[^a-zA-Z0-9-]`)
	hyphenRun     = regexp.MustCompile(`-+`)
)

// ErrNoFreeName is returned when every candidate up to the suffix limit exists.
var ErrNoFreeName = errors.New("no free file name")

// SanitizeSupplier reduces a supplier name to ASCII letters, digits and
// single hyphens.
func SanitizeSupplier(supplier string) string {
	s := whitespaceRun.ReplaceAllString(supplier, "-")
	s = disallowed.ReplaceAllString(s, "")
	s = hyphenRun.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// NameFor returns "{date}-{supplier}{ext}". ext includes its leading dot.
func NameFor(data domain.InvoiceData, ext string) string {
	return fmt.Sprintf("%s-%s%s", data.Date, SanitizeSupplier(data.Supplier), ext)
}

// UniqueNameFor returns NameFor, or the first "{stem}-{n}{ext}" with n >= 1
// that does not yet exist in dir.
func UniqueNameFor(data domain.InvoiceData, ext, dir string) (string, error) {
	name := NameFor(data, ext)
	if !Exists(filepath.Join(dir, name)) {
		return name, nil
	}
	stem := strings.TrimSuffix(name, ext)
	for n := 1; n <= maxSuffix; n++ {
		candidate := fmt.Sprintf("%s-%d%s", stem, n, ext)
		if !Exists(filepath.Join(dir, candidate)) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s in %s", ErrNoFreeName, name, dir)
}

// Extension returns the lowercase extension of path including the dot.
func Extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func IsPDF(path string) bool {
	return Extension(path) == ".pdf"
}

func IsZip(path string) bool {
	return Extension(path) == ".zip"
}

// IsImage reports whether path has an extension the vision providers accept directly.
func IsImage(path string) bool {
	switch Extension(path) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// Exists reports whether anything is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDir creates dir and any missing parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

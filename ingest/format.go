package ingest

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/tanishra/smartinfo/core"
)

// DetectFormat maps a file name to its source format by extension.
func DetectFormat(name string) (core.Format, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf":
		return core.FormatPDF, nil
	case ".docx":
		return core.FormatDOCX, nil
	case ".txt", ".md", ".markdown", ".text":
		return core.FormatTXT, nil
	case ".jpg", ".jpeg", ".png":
		return core.FormatImage, nil
	default:
		return "", &core.UnsupportedFormatError{Name: name, Ext: ext}
	}
}

// Supported reports whether name has an ingestible extension.
func Supported(name string) bool {
	_, err := DetectFormat(name)
	return err == nil
}

var documentNamespace = uuid.MustParse("3b8f2d4e-7c1a-4e9b-a6d5-0f2c8e1b7a94")

// DocumentID derives a stable identifier from a file path: the base name
// plus a short hash of the cleaned absolute path. Same-named files in
// different directories get different ids; the same path always maps to the
// same id.
func DocumentID(name string) string {
	path := filepath.Clean(name)
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	sum := uuid.NewSHA1(documentNamespace, []byte(filepath.ToSlash(path)))
	return filepath.Base(path) + "-" + sum.String()[:8]
}

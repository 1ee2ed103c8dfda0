package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// ErrOCRUnavailable is recorded on pages that needed OCR when no OCR engine
// is configured or installed.
var ErrOCRUnavailable = errors.New("ocr engine unavailable")

// OCR extracts text from an encoded image (PNG or JPEG).
type OCR interface {
	Extract(ctx context.Context, image []byte) (string, error)
}

// Tesseract runs the tesseract CLI as a subprocess.
type Tesseract struct {
	// Path of the binary; empty means "tesseract" on PATH.
	Path string
	DPI  int
}

var _ OCR = (*Tesseract)(nil)

// NewTesseract creates a Tesseract OCR engine.
func NewTesseract(path string, dpi int) *Tesseract {
	return &Tesseract{Path: path, DPI: dpi}
}

func (t *Tesseract) binary() (string, error) {
	name := t.Path
	if name == "" {
		name = "tesseract"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}
	return bin, nil
}

// Extract writes image to a temporary file and returns tesseract's stdout.
// The subprocess is killed when ctx is done.
func (t *Tesseract) Extract(ctx context.Context, image []byte) (string, error) {
	bin, err := t.binary()
	if err != nil {
		return "", err
	}

	path, cleanup, err := writeTemp("smartinfo-ocr-*.img", image)
	if err != nil {
		return "", err
	}
	defer cleanup()

	args := []string{path, "stdout"}
	if t.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(t.DPI))
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(stdout.String()), nil
}

func writeTemp(pattern string, data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { _ = os.Remove(f.Name()) }

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}

	return f.Name(), cleanup, nil
}

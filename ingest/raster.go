package ingest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Rasterizer renders one PDF page (zero based) to PNG bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, page int) ([]byte, error)
}

// Pdftoppm renders pages with poppler's pdftoppm.
type Pdftoppm struct {
	// Path of the binary; empty means "pdftoppm" on PATH.
	Path string
	DPI  int
}

var _ Rasterizer = (*Pdftoppm)(nil)

// NewPdftoppm creates a pdftoppm rasterizer.
func NewPdftoppm(path string, dpi int) *Pdftoppm {
	return &Pdftoppm{Path: path, DPI: dpi}
}

// Rasterize runs `pdftoppm -f N -l N -png -r DPI -singlefile` into a
// temporary directory and returns the PNG.
func (p *Pdftoppm) Rasterize(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	name := p.Path
	if name == "" {
		name = "pdftoppm"
	}
	bin, err := exec.LookPath(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}

	dir, err := os.MkdirTemp("", "smartinfo-raster-*")
	if err != nil {
		return nil, fmt.Errorf("create raster dir: %w", err)
	}
	defer os.RemoveAll(dir)

	num := strconv.Itoa(page + 1)
	dpi := p.DPI
	if dpi <= 0 {
		dpi = 150
	}
	prefix := filepath.Join(dir, "page")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-f", num, "-l", num, "-png", "-r", strconv.Itoa(dpi), "-singlefile", pdfPath, prefix)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("pdftoppm page %s: %w: %s", num, err, strings.TrimSpace(stderr.String()))
	}

	data, err := os.ReadFile(prefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("read raster of page %s: %w", num, err)
	}

	return data, nil
}

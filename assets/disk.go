// Package assets stores uploaded flyers on local disk and serves them by
// public URL. Flyers are decoded, downscaled to a web-friendly width and
// re-encoded as JPEG before being written.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"

	_ "image/gif"
	_ "image/png"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/ritmo/agenda-engine/schedule"
)

const (
	maxFlyerWidth = 1200
	jpegQuality   = 82
)

// Disk implements schedule.AssetStore on the local filesystem.
type Disk struct {
	dir     string
	baseURL string
}

// NewDisk creates the flyer directory if needed. baseURL is the public
// prefix under which dir is served (e.g. "https://cdn.example.com/flyers").
func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create flyer dir: %w", err)
	}
	return &Disk{dir: dir, baseURL: baseURL}, nil
}

var _ schedule.AssetStore = (*Disk)(nil)

// Upload decodes the flyer, scales it down if wider than maxFlyerWidth,
// writes it as JPEG under a fresh name and returns the public URL.
func (d *Disk) Upload(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("decode flyer %q: %w", name, err)
	}

	bounds := img.Bounds()
	if w := bounds.Dx(); w > maxFlyerWidth {
		newH := bounds.Dy() * maxFlyerWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxFlyerWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encode flyer: %w", err)
	}

	filename := uuid.NewString() + ".jpg"
	if err := os.WriteFile(filepath.Join(d.dir, filename), buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write flyer: %w", err)
	}
	return d.baseURL + "/" + filename, nil
}

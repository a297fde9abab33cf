package luckyreel

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

const (
	thumbWidth     = 200
	jpegQuality    = 80
	thumbCacheSize = 64
	thumbCacheTTL  = time.Hour
)

var errOutsideImageDir = errors.New("image path escapes image directory")

// makeThumbnail decodes an image from src, scales it to width (never up)
// and encodes it as JPEG.
func makeThumbnail(src io.Reader, width int) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > width {
		newH := max(h*width/w, 1)
		dst := image.NewRGBA(image.Rect(0, 0, width, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// resolveImage joins rel onto dir and refuses paths that leave dir.
func resolveImage(dir, rel string) (string, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	p := filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	if p != root && !strings.HasPrefix(p, root+string(filepath.Separator)) {
		return "", errOutsideImageDir
	}
	return p, nil
}

func (a *App) handleThumb(c echo.Context) error {
	entry, ok := a.Games.Find(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	key := entry.ID + "|" + entry.Image
	if data, ok := a.thumbs.Get(key); ok {
		return c.Blob(http.StatusOK, "image/jpeg", data)
	}

	path, err := resolveImage(a.Config.Games.ImageDir, entry.Image)
	if err != nil {
		log.Warn().Err(err).Str("game", entry.ID).Str("image", entry.Image).Msg("thumbnail")
		return echo.NewHTTPError(http.StatusNotFound)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return echo.NewHTTPError(http.StatusNotFound)
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	data, err := makeThumbnail(f, thumbWidth)
	if err != nil {
		return fmt.Errorf("thumbnail %s: %w", entry.ID, err)
	}
	a.thumbs.Add(key, data)
	return c.Blob(http.StatusOK, "image/jpeg", data)
}

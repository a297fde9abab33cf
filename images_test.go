package luckyreel

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, pngBytes(t, w, h), 0o644))
}

func TestMakeThumbnailScalesDown(t *testing.T) {
	data, err := makeThumbnail(bytes.NewReader(pngBytes(t, 400, 300)), thumbWidth)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
	assert.Equal(t, 150, img.Bounds().Dy())
}

func TestMakeThumbnailKeepsSmallImages(t *testing.T) {
	data, err := makeThumbnail(bytes.NewReader(pngBytes(t, 120, 80)), thumbWidth)
	require.NoError(t, err)

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())
}

func TestMakeThumbnailRejectsGarbage(t *testing.T) {
	_, err := makeThumbnail(strings.NewReader("not an image"), thumbWidth)
	assert.ErrorContains(t, err, "decode image")
}

func TestResolveImage(t *testing.T) {
	dir := t.TempDir()

	p, err := resolveImage(dir, "images/a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "images", "a.png"), p)

	p, err = resolveImage(dir, "/images/a.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "images", "a.png"), p)

	_, err = resolveImage(dir, "../secret.png")
	assert.ErrorIs(t, err, errOutsideImageDir)
}

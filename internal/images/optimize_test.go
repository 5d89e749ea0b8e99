package images

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func gradient() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 64, A: 255})
		}
	}
	return img
}

func TestOptimizeTIFFUsesDeflate(t *testing.T) {
	var raw bytes.Buffer
	require.NoError(t, tiff.Encode(&raw, gradient(), &tiff.Options{Compression: tiff.Uncompressed}))

	out, err := NewOptimizer(82).Optimize("scan.tiff", raw.Bytes())
	require.NoError(t, err)
	assert.Less(t, len(out), raw.Len())
	_, err = tiff.Decode(bytes.NewReader(out))
	assert.NoError(t, err)
}

func TestOptimizeKeepsOriginalWhenNotSmaller(t *testing.T) {
	var raw bytes.Buffer
	require.NoError(t, jpeg.Encode(&raw, gradient(), &jpeg.Options{Quality: 10}))

	out, err := NewOptimizer(95).Optimize("photo.JPG", raw.Bytes())
	require.NoError(t, err)
	assert.Equal(t, raw.Bytes(), out, "re-encoding at a higher quality grows the file, so the source wins")
}

func TestOptimizeGIF(t *testing.T) {
	pal := image.NewPaletted(image.Rect(0, 0, 8, 8), []color.Color{color.Black, color.White})
	var raw bytes.Buffer
	require.NoError(t, gif.EncodeAll(&raw, &gif.GIF{Image: []*image.Paletted{pal}, Delay: []int{0}}))

	out, err := NewOptimizer(82).Optimize("anim.gif", raw.Bytes())
	require.NoError(t, err)
	_, err = gif.DecodeAll(bytes.NewReader(out))
	assert.NoError(t, err)
	assert.LessOrEqual(t, len(out), raw.Len())
}

func TestOptimizeUnknownExtensionPassesThrough(t *testing.T) {
	in := []byte("binary\x00data")
	out, err := NewOptimizer(82).Optimize("font.woff2", in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

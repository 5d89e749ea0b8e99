package images

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"path"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
	"golang.org/x/image/tiff"
)

// Optimizer re-encodes image bytes. Results that are not smaller than the input
// are discarded in favor of the original bytes.
type Optimizer struct {
	jpegQuality int
	svg         *minify.M
}

func NewOptimizer(jpegQuality int) *Optimizer {
	m := minify.New()
	m.AddFunc("image/svg+xml", svg.Minify)
	return &Optimizer{jpegQuality: jpegQuality, svg: m}
}

// Optimize returns the optimized bytes for a file named name. Unknown
// extensions are returned unchanged.
func (o *Optimizer) Optimize(name string, data []byte) ([]byte, error) {
	var (
		out []byte
		err error
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		out, err = o.png(data)
	case ".jpg", ".jpeg":
		out, err = o.jpeg(data)
	case ".gif":
		out, err = o.gif(data)
	case ".tif", ".tiff":
		out, err = o.tiff(data)
	case ".svg":
		out, err = o.svg.Bytes("image/svg+xml", data)
	default:
		return data, nil
	}
	if err != nil {
		return nil, err
	}
	if len(out) >= len(data) {
		return data, nil
	}
	return out, nil
}

func (o *Optimizer) png(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Optimizer) jpeg(data []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: o.jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Optimizer) gif(data []byte) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (o *Optimizer) tiff(data []byte) ([]byte, error) {
	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return encodeTIFF(img)
}

func encodeTIFF(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

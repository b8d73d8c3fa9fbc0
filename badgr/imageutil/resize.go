package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"io"

	"github.com/nfnt/resize"
)

const (
	// DefaultSize is the edge length of stored badge images.
	DefaultSize = 400

	// MaxDimension bounds the declared width and height of raster uploads.
	MaxDimension = 4096

	// MaxInputBytes bounds the encoded size of an upload.
	MaxInputBytes = 8 << 20

	ContentTypePNG = "image/png"
	ContentTypeSVG = "image/svg+xml"
)

var (
	// ErrUnsupportedImage is returned for inputs that are neither PNG, JPEG nor SVG.
	ErrUnsupportedImage = errors.New("imageutil: unsupported image format")

	// ErrImageTooLarge is returned for uploads over MaxDimension or MaxInputBytes.
	ErrImageTooLarge = fmt.Errorf("%w: image too large", ErrUnsupportedImage)
)

// Normalize stores SVG documents as uploaded and turns raster images into a
// size×size PNG. It returns the stored bytes and their content type.
func Normalize(r io.Reader, size int) ([]byte, string, error) {
	data, err := readLimited(r)
	if err != nil {
		return nil, "", err
	}
	if IsSVG(data) {
		return data, ContentTypeSVG, nil
	}
	out, err := normalizeRaster(data, size)
	if err != nil {
		return nil, "", err
	}
	return out, ContentTypePNG, nil
}

// NormalizePNG scales an image to fit a size×size square, centers it on a
// transparent canvas and encodes it as PNG.
func NormalizePNG(r io.Reader, size int) ([]byte, error) {
	data, err := readLimited(r)
	if err != nil {
		return nil, err
	}
	return normalizeRaster(data, size)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(data) > MaxInputBytes {
		return nil, ErrImageTooLarge
	}
	return data, nil
}

func normalizeRaster(data []byte, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}

	// Check declared dimensions before allocating pixels.
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	if format != "png" && format != "jpeg" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedImage, format)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrUnsupportedImage)
	}
	if cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	var scaled image.Image
	if img.Bounds().Dx() >= img.Bounds().Dy() {
		scaled = resize.Resize(uint(size), 0, img, resize.Lanczos3)
	} else {
		scaled = resize.Resize(0, uint(size), img, resize.Lanczos3)
	}

	canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
	offset := image.Point{
		X: (size - scaled.Bounds().Dx()) / 2,
		Y: (size - scaled.Bounds().Dy()) / 2,
	}
	draw.Draw(canvas, scaled.Bounds().Sub(scaled.Bounds().Min).Add(offset), scaled, scaled.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

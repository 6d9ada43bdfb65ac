package media

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	// Header and full decoders for every format Go can read natively.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"book-library/internal/filesystem"
	"book-library/internal/logging"
	"book-library/internal/mediatypes"
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(path string) (*ImageDimensions, error) {
	file, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Warn("failed to close image file %s: %v", path, err)
		}
	}()

	config, _, err := image.DecodeConfig(file)
	if err != nil {
		return nil, err
	}

	return &ImageDimensions{
		Width:  config.Width,
		Height: config.Height,
	}, nil
}

// ReadDimensions reads the pixel size from the file header. Formats Go
// cannot parse (AVIF, HEIC, SVG) go through libvips when it is available.
func ReadDimensions(path string) (int, int, error) {
	dims, err := GetImageDimensions(path)
	if err == nil {
		return dims.Width, dims.Height, nil
	}
	if errors.Is(err, image.ErrFormat) && IsVipsAvailable() {
		return vipsDimensions(path)
	}
	return 0, 0, err
}

// loadImage decodes a page for rendering, honouring EXIF orientation.
// Formats without a Go decoder are decoded by libvips at targetWidth.
func loadImage(path string, targetWidth int) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err == nil {
		return img, nil
	}
	if !errors.Is(err, image.ErrFormat) {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, statErr
		}
	}

	if IsVipsAvailable() {
		logging.Debug("Go decode failed for %s (%v), using libvips", path, err)
		return LoadImageWithVips(path, targetWidth)
	}
	return nil, fmt.Errorf("decode %s (%s): %w", path, mediatypes.Ext(path), err)
}

// flattenOnWhite composites img over an opaque white background.
func flattenOnWhite(img image.Image) *image.NRGBA {
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// resizeToWidth scales img down to width, keeping the aspect ratio. Images
// already narrower than width are returned unchanged.
func resizeToWidth(img image.Image, width int) image.Image {
	if width <= 0 || img.Bounds().Dx() <= width {
		return img
	}
	return imaging.Resize(img, width, 0, imaging.Lanczos)
}

// placeholder returns a blank white page of width × 1.4·width.
func placeholder(width int) *image.NRGBA {
	return imaging.New(width, int(float64(width)*1.4), color.White)
}

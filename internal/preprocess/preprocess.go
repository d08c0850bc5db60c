// Package preprocess turns uploaded images into the (1, H, W, 3) float tensor
// the classifier expects.
package preprocess

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"unicode"

	"github.com/Brownie44l1/dept-classifier/internal/model"
	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrPreprocess wraps every failure in the pipeline.
var ErrPreprocess = errors.New("error preprocessing image")

const (
	channels = 3
	// DefaultSize matches the 224x224 input of common convolutional networks.
	DefaultSize = 224
)

type Options struct {
	// Size is the square edge the image is resized to.
	Size   int
	Filter resize.InterpolationFunction
	// MaxPixels bounds width*height of the decoded image; 0 disables the check.
	MaxPixels int
}

type Preprocessor struct {
	size      int
	filter    resize.InterpolationFunction
	maxPixels int
}

func New(opts Options) *Preprocessor {
	size := opts.Size
	if size <= 0 {
		size = DefaultSize
	}
	return &Preprocessor{
		size:      size,
		filter:    opts.Filter,
		maxPixels: opts.MaxPixels,
	}
}

// ParseFilter maps a configured resample name to a resize filter.
func ParseFilter(name string) (resize.InterpolationFunction, error) {
	switch strings.ToLower(name) {
	case "nearest":
		return resize.NearestNeighbor, nil
	case "bilinear":
		return resize.Bilinear, nil
	case "bicubic":
		return resize.Bicubic, nil
	case "mitchell":
		return resize.MitchellNetravali, nil
	case "lanczos2":
		return resize.Lanczos2, nil
	case "lanczos3":
		return resize.Lanczos3, nil
	default:
		return 0, fmt.Errorf("unknown resample filter %q", name)
	}
}

// Shape is the tensor shape every call produces.
func (p *Preprocessor) Shape() []int64 {
	return []int64{1, int64(p.size), int64(p.size), channels}
}

// Preprocess decodes a base64 payload, optionally carrying a data URL prefix.
func (p *Preprocessor) Preprocess(payload string) (t model.Tensor, err error) {
	defer recoverInto(&err)

	data, err := DecodeBase64(payload)
	if err != nil {
		return model.Tensor{}, wrap(err)
	}
	t, err = p.fromBytes(data)
	if err != nil {
		return model.Tensor{}, wrap(err)
	}
	return t, nil
}

// FromBytes runs the pipeline on encoded image bytes.
func (p *Preprocessor) FromBytes(data []byte) (t model.Tensor, err error) {
	defer recoverInto(&err)

	t, err = p.fromBytes(data)
	if err != nil {
		return model.Tensor{}, wrap(err)
	}
	return t, nil
}

// FromImage runs the pipeline on an already decoded image.
func (p *Preprocessor) FromImage(img image.Image) (t model.Tensor, err error) {
	defer recoverInto(&err)

	t, err = p.fromImage(img)
	if err != nil {
		return model.Tensor{}, wrap(err)
	}
	return t, nil
}

func (p *Preprocessor) fromBytes(data []byte) (model.Tensor, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return model.Tensor{}, fmt.Errorf("cannot identify image: %w", err)
	}
	if p.maxPixels > 0 && cfg.Width*cfg.Height > p.maxPixels {
		return model.Tensor{}, fmt.Errorf("image size (%d pixels) exceeds limit of %d pixels",
			cfg.Width*cfg.Height, p.maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return model.Tensor{}, fmt.Errorf("cannot decode image: %w", err)
	}
	return p.fromImage(img)
}

func (p *Preprocessor) fromImage(img image.Image) (model.Tensor, error) {
	if img == nil {
		return model.Tensor{}, errors.New("no image")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return model.Tensor{}, fmt.Errorf("image has no pixels (%dx%d)", b.Dx(), b.Dy())
	}

	resized := resize.Resize(uint(p.size), uint(p.size), toRGB(img), p.filter)
	rb := resized.Bounds()

	data := make([]float32, p.size*p.size*channels)
	for y := 0; y < p.size; y++ {
		for x := 0; x < p.size; x++ {
			c := color.RGBAModel.Convert(resized.At(rb.Min.X+x, rb.Min.Y+y)).(color.RGBA)
			i := (y*p.size + x) * channels
			data[i] = float32(c.R) / 255.0
			data[i+1] = float32(c.G) / 255.0
			data[i+2] = float32(c.B) / 255.0
		}
	}

	return model.Tensor{Shape: p.Shape(), Data: data}, nil
}

// toRGB flattens any color model onto an opaque RGB canvas. Alpha is dropped,
// not composited, so transparent pixels keep their stored color.
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			i := dst.PixOffset(x-b.Min.X, y-b.Min.Y)
			dst.Pix[i] = c.R
			dst.Pix[i+1] = c.G
			dst.Pix[i+2] = c.B
			dst.Pix[i+3] = 0xff
		}
	}
	return dst
}

// StripDataURL removes a "data:<mime>;base64," style prefix.
func StripDataURL(payload string) string {
	if i := strings.IndexByte(payload, ','); i >= 0 {
		return payload[i+1:]
	}
	return payload
}

// DecodeBase64 strips any data URL prefix and whitespace, then decodes with
// the standard alphabet. Unpadded input is accepted.
func DecodeBase64(payload string) ([]byte, error) {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, StripDataURL(payload))

	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	if !strings.HasSuffix(s, "=") {
		if raw, rawErr := base64.RawStdEncoding.DecodeString(s); rawErr == nil {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("invalid base64: %w", err)
}

func wrap(err error) error {
	return fmt.Errorf("%w: %v", ErrPreprocess, err)
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = wrap(fmt.Errorf("panic: %v", r))
	}
}

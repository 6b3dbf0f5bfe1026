package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // register gif decoder
	_ "image/jpeg" // register jpeg decoder
	"image/png"
	"math"

	_ "golang.org/x/image/bmp"  // register bmp decoder
	_ "golang.org/x/image/tiff" // register tiff decoder
	_ "golang.org/x/image/webp" // register webp decoder
)

// Tuned for phone photos of ruled paper.
const (
	DefaultContrastGain    = 1.5
	DefaultBlockSize       = 15
	DefaultThresholdOffset = 10
	DefaultKernelSize      = 2
	DefaultDilations       = 1
)

const (
	foreground = 255
	background = 0
)

// ErrDecode is matched by every DecodeError.
var ErrDecode = errors.New("image could not be decoded")

// DecodeError reports that the supplied bytes are not a recognised image container.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return ErrDecode.Error()
	}
	return fmt.Sprintf("%s: %v", ErrDecode.Error(), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDecode) match.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Params holds the preprocessing knobs.
type Params struct {
	ContrastGain    float64
	BlockSize       int
	ThresholdOffset int
	KernelSize      int
	Dilations       int
}

// DefaultParams returns the parameters used by Preprocess.
func DefaultParams() Params {
	return Params{
		ContrastGain:    DefaultContrastGain,
		BlockSize:       DefaultBlockSize,
		ThresholdOffset: DefaultThresholdOffset,
		KernelSize:      DefaultKernelSize,
		Dilations:       DefaultDilations,
	}
}

func (p Params) normalized() Params {
	def := DefaultParams()
	if p.ContrastGain <= 0 {
		p.ContrastGain = def.ContrastGain
	}
	if p.BlockSize < 3 {
		p.BlockSize = def.BlockSize
	}
	if p.BlockSize%2 == 0 {
		p.BlockSize++
	}
	if p.KernelSize <= 0 {
		p.KernelSize = def.KernelSize
	}
	if p.Dilations < 0 {
		p.Dilations = 0
	}
	return p
}

// BinaryMask is a single-channel image where ink pixels are 255 and paper is 0.
type BinaryMask struct {
	Width  int
	Height int
	Pix    []uint8
}

// At returns the mask value at x, y.
func (m *BinaryMask) At(x, y int) uint8 {
	return m.Pix[y*m.Width+x]
}

// Gray exposes the mask as an image.Gray sharing the pixel buffer.
func (m *BinaryMask) Gray() *image.Gray {
	return &image.Gray{
		Pix:    m.Pix,
		Stride: m.Width,
		Rect:   image.Rect(0, 0, m.Width, m.Height),
	}
}

// PNG encodes the mask for recognisers that consume image files.
func (m *BinaryMask) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m.Gray()); err != nil {
		return nil, fmt.Errorf("encode mask: %w", err)
	}
	return buf.Bytes(), nil
}

// Preprocess turns raw image bytes into a binary text mask using DefaultParams.
func Preprocess(raw []byte) (*BinaryMask, error) {
	return PreprocessWith(raw, DefaultParams())
}

// PreprocessWith runs grayscale, contrast gain, adaptive mean threshold (inverted)
// and rectangular dilation over the full-resolution frame.
func PreprocessWith(raw []byte, params Params) (*BinaryMask, error) {
	if len(raw) == 0 {
		return nil, &DecodeError{Err: errors.New("empty payload")}
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, &DecodeError{Err: err}
	}

	params = params.normalized()
	gray := Grayscale(img)
	Stretch(gray, params.ContrastGain)
	mask := AdaptiveThresholdInv(gray, params.BlockSize, params.ThresholdOffset)
	for i := 0; i < params.Dilations; i++ {
		mask = Dilate(mask, params.KernelSize)
	}
	return mask, nil
}

// Grayscale converts any image to luminance using BT.601 weights.
func Grayscale(img image.Image) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		row := (y - bounds.Min.Y) * out.Stride
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			lum := (299*int(c.R) + 587*int(c.G) + 114*int(c.B) + 500) / 1000
			out.Pix[row+x-bounds.Min.X] = uint8(lum)
		}
	}
	return out
}

// Stretch multiplies every intensity by gain in place, saturating at 255.
func Stretch(img *image.Gray, gain float64) {
	for i, v := range img.Pix {
		scaled := math.RoundToEven(math.Abs(float64(v) * gain))
		if scaled > 255 {
			scaled = 255
		}
		img.Pix[i] = uint8(scaled)
	}
}

// AdaptiveThresholdInv marks a pixel as ink when it is darker than the mean of its
// blockSize x blockSize neighbourhood minus offset. Borders replicate edge pixels.
func AdaptiveThresholdInv(img *image.Gray, blockSize, offset int) *BinaryMask {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	mask := &BinaryMask{Width: w, Height: h, Pix: make([]uint8, w*h)}
	if w == 0 || h == 0 {
		return mask
	}

	radius := blockSize / 2
	pw, ph := w+2*radius, h+2*radius
	// integral image over the replicate-padded frame, one extra row and column of zeros
	integral := make([]int64, (pw+1)*(ph+1))
	for py := 0; py < ph; py++ {
		sy := clamp(py-radius, 0, h-1)
		var rowSum int64
		for px := 0; px < pw; px++ {
			sx := clamp(px-radius, 0, w-1)
			rowSum += int64(img.Pix[sy*img.Stride+sx])
			integral[(py+1)*(pw+1)+px+1] = integral[py*(pw+1)+px+1] + rowSum
		}
	}

	area := float64(blockSize * blockSize)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := x, y
			x1, y1 := x+blockSize, y+blockSize
			sum := integral[y1*(pw+1)+x1] - integral[y0*(pw+1)+x1] - integral[y1*(pw+1)+x0] + integral[y0*(pw+1)+x0]
			mean := int(math.RoundToEven(float64(sum) / area))
			src := int(img.Pix[y*img.Stride+x])
			if src > mean-offset {
				mask.Pix[y*w+x] = background
			} else {
				mask.Pix[y*w+x] = foreground
			}
		}
	}
	return mask
}

// Dilate grows foreground regions with a size x size rectangular element anchored
// at its centre. Pixels outside the frame never contribute.
func Dilate(mask *BinaryMask, size int) *BinaryMask {
	out := &BinaryMask{Width: mask.Width, Height: mask.Height, Pix: make([]uint8, len(mask.Pix))}
	anchor := size / 2
	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			var v uint8
		kernel:
			for ky := 0; ky < size; ky++ {
				sy := y + ky - anchor
				if sy < 0 || sy >= mask.Height {
					continue
				}
				for kx := 0; kx < size; kx++ {
					sx := x + kx - anchor
					if sx < 0 || sx >= mask.Width {
						continue
					}
					if p := mask.Pix[sy*mask.Width+sx]; p > v {
						v = p
						if v == foreground {
							break kernel
						}
					}
				}
			}
			out.Pix[y*out.Width+x] = v
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package transforms

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gomlx/diffae/pkg/faces"
	"github.com/pkg/errors"
)

func init() {
	Register("Resize", buildResize)
	Register("CenterCrop", buildCenterCrop)
	Register("RandomCrop", buildRandomCrop)
	Register("RandomHorizontalFlip", buildFlip(true))
	Register("RandomVerticalFlip", buildFlip(false))
	Register("RandomRotation", buildRandomRotation)
	Register("Pad", buildPad)
	Register("Grayscale", buildGrayscale)
	Register("ColorJitter", buildColorJitter)
	Register("GaussianBlur", buildGaussianBlur)
	Register("ToTensor", buildToTensor)
	Register("Normalize", buildNormalize)
}

// cropPadded crops rect (in the coordinates of img) out of img. Regions of rect outside the
// image are filled with opaque black. The returned image has origin (0, 0).
func cropPadded(img image.Image, rect image.Rectangle) *image.NRGBA {
	inter := rect.Intersect(img.Bounds())
	if inter == rect {
		return imaging.Crop(img, rect)
	}
	dst := imaging.New(rect.Dx(), rect.Dy(), color.NRGBA{A: 0xFF})
	if inter.Empty() {
		return dst
	}
	return imaging.Paste(dst, imaging.Crop(img, inter), inter.Min.Sub(rect.Min))
}

var filters = map[string]imaging.ResampleFilter{
	"nearest":  imaging.NearestNeighbor,
	"bilinear": imaging.Linear,
	"bicubic":  imaging.CatmullRom,
	"lanczos":  imaging.Lanczos,
	"box":      imaging.Box,
}

// Resize the image. If Single is set, the smaller edge is resized to Height (== Width) keeping
// the aspect ratio, otherwise the image is resized to exactly Height x Width.
type Resize struct {
	Height, Width int
	Single        bool
	Filter        imaging.ResampleFilter
	filterName    string
}

func buildResize(params Params, _ *RNG) (Transform, error) {
	if err := params.CheckKnown("size", "interpolation"); err != nil {
		return nil, err
	}
	h, w, single, err := params.Size("size")
	if err != nil {
		return nil, err
	}
	name, err := params.Text("interpolation", "bilinear")
	if err != nil {
		return nil, err
	}
	filter, found := filters[strings.ToLower(name)]
	if !found {
		return nil, errors.Wrapf(faces.ErrConfiguration, "unknown interpolation %q", name)
	}
	return &Resize{Height: h, Width: w, Single: single, Filter: filter, filterName: strings.ToLower(name)}, nil
}

// OutputSize returns the size of the resized image, given the input size.
func (r *Resize) OutputSize(inputWidth, inputHeight int) (width, height int) {
	if !r.Single {
		return r.Width, r.Height
	}
	size := r.Height
	if inputWidth <= inputHeight {
		return size, int(float64(size) * float64(inputHeight) / float64(inputWidth))
	}
	return int(float64(size) * float64(inputWidth) / float64(inputHeight)), size
}

// Apply implements Transform.
func (r *Resize) Apply(img image.Image) image.Image {
	size := img.Bounds().Size()
	w, h := r.OutputSize(size.X, size.Y)
	if w == size.X && h == size.Y {
		return img
	}
	return imaging.Resize(img, w, h, r.Filter)
}

func (r *Resize) String() string {
	if r.Single {
		return fmt.Sprintf("Resize(size=%d, interpolation=%s)", r.Height, r.filterName)
	}
	return fmt.Sprintf("Resize(size=[%d, %d], interpolation=%s)", r.Height, r.Width, r.filterName)
}

// CenterCrop crops the center of the image. Images smaller than the crop are padded with black.
type CenterCrop struct {
	Height, Width int
}

func buildCenterCrop(params Params, _ *RNG) (Transform, error) {
	if err := params.CheckKnown("size"); err != nil {
		return nil, err
	}
	h, w, _, err := params.Size("size")
	if err != nil {
		return nil, err
	}
	return &CenterCrop{Height: h, Width: w}, nil
}

// Apply implements Transform.
func (c *CenterCrop) Apply(img image.Image) image.Image {
	b := img.Bounds()
	top := b.Min.Y + int(math.Round(float64(b.Dy()-c.Height)/2))
	left := b.Min.X + int(math.Round(float64(b.Dx()-c.Width)/2))
	return cropPadded(img, image.Rect(left, top, left+c.Width, top+c.Height))
}

func (c *CenterCrop) String() string {
	return fmt.Sprintf("CenterCrop(size=[%d, %d])", c.Height, c.Width)
}

// RandomCrop crops a random Height x Width region of the image, after padding it by Padding pixels
// on every side.
type RandomCrop struct {
	Height, Width, Padding int
	rng                    *RNG
}

func buildRandomCrop(params Params, rng *RNG) (Transform, error) {
	if err := params.CheckKnown("size", "padding"); err != nil {
		return nil, err
	}
	h, w, _, err := params.Size("size")
	if err != nil {
		return nil, err
	}
	padding, err := params.Int("padding", 0)
	if err != nil {
		return nil, err
	}
	return &RandomCrop{Height: h, Width: w, Padding: padding, rng: rng}, nil
}

// Apply implements Transform.
func (c *RandomCrop) Apply(img image.Image) image.Image {
	b := img.Bounds().Inset(-c.Padding)
	top := b.Min.Y + c.rng.IntN(b.Dy()-c.Height+1)
	left := b.Min.X + c.rng.IntN(b.Dx()-c.Width+1)
	return cropPadded(img, image.Rect(left, top, left+c.Width, top+c.Height))
}

func (c *RandomCrop) String() string {
	return fmt.Sprintf("RandomCrop(size=[%d, %d], padding=%d)", c.Height, c.Width, c.Padding)
}

// RandomFlip flips the image horizontally (or vertically) with probability P.
type RandomFlip struct {
	Horizontal bool
	P          float64
	rng        *RNG
}

func buildFlip(horizontal bool) Builder {
	return func(params Params, rng *RNG) (Transform, error) {
		if err := params.CheckKnown("p"); err != nil {
			return nil, err
		}
		p, err := params.Float("p", 0.5)
		if err != nil {
			return nil, err
		}
		if p < 0 || p > 1 {
			return nil, errors.Wrapf(faces.ErrConfiguration, "probability p=%g must be in [0, 1]", p)
		}
		return &RandomFlip{Horizontal: horizontal, P: p, rng: rng}, nil
	}
}

// Apply implements Transform.
func (f *RandomFlip) Apply(img image.Image) image.Image {
	if f.rng.Float64() >= f.P {
		return img
	}
	if f.Horizontal {
		return imaging.FlipH(img)
	}
	return imaging.FlipV(img)
}

func (f *RandomFlip) String() string {
	if f.Horizontal {
		return fmt.Sprintf("RandomHorizontalFlip(p=%g)", f.P)
	}
	return fmt.Sprintf("RandomVerticalFlip(p=%g)", f.P)
}

// RandomRotation rotates the image counter-clockwise by a random angle in [MinDegrees, MaxDegrees],
// keeping the original size. Uncovered areas are filled with black.
type RandomRotation struct {
	MinDegrees, MaxDegrees float64
	rng                    *RNG
}

func buildRandomRotation(params Params, rng *RNG) (Transform, error) {
	if err := params.CheckKnown("degrees"); err != nil {
		return nil, err
	}
	low, high, ok, err := params.Range("degrees", 0, math.Inf(-1))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrap(faces.ErrConfiguration, "RandomRotation requires the parameter \"degrees\"")
	}
	return &RandomRotation{MinDegrees: low, MaxDegrees: high, rng: rng}, nil
}

// Apply implements Transform.
func (r *RandomRotation) Apply(img image.Image) image.Image {
	angle := r.rng.Uniform(r.MinDegrees, r.MaxDegrees)
	size := img.Bounds().Size()
	rotated := imaging.Rotate(img, angle, color.NRGBA{A: 0xFF})
	return imaging.CropCenter(rotated, size.X, size.Y)
}

func (r *RandomRotation) String() string {
	return fmt.Sprintf("RandomRotation(degrees=[%g, %g])", r.MinDegrees, r.MaxDegrees)
}

// Pad adds a border around the image with the Fill gray level.
type Pad struct {
	Left, Top, Right, Bottom int
	Fill                     uint8
}

func buildPad(params Params, _ *RNG) (Transform, error) {
	if err := params.CheckKnown("padding", "fill"); err != nil {
		return nil, err
	}
	values, err := params.Floats("padding")
	if err != nil {
		return nil, err
	}
	fill, err := params.Int("fill", 0)
	if err != nil {
		return nil, err
	}
	if fill < 0 || fill > 255 {
		return nil, errors.Wrapf(faces.ErrConfiguration, "fill=%d must be in [0, 255]", fill)
	}
	p := &Pad{Fill: uint8(fill)}
	switch len(values) {
	case 1:
		p.Left, p.Top, p.Right, p.Bottom = int(values[0]), int(values[0]), int(values[0]), int(values[0])
	case 2:
		p.Left, p.Top, p.Right, p.Bottom = int(values[0]), int(values[1]), int(values[0]), int(values[1])
	case 4:
		p.Left, p.Top, p.Right, p.Bottom = int(values[0]), int(values[1]), int(values[2]), int(values[3])
	default:
		return nil, errors.Wrapf(faces.ErrConfiguration, "Pad requires \"padding\" with 1, 2 or 4 values, got %v", params["padding"])
	}
	return p, nil
}

// Apply implements Transform.
func (p *Pad) Apply(img image.Image) image.Image {
	size := img.Bounds().Size()
	dst := imaging.New(size.X+p.Left+p.Right, size.Y+p.Top+p.Bottom, color.NRGBA{R: p.Fill, G: p.Fill, B: p.Fill, A: 0xFF})
	return imaging.Paste(dst, img, image.Pt(p.Left, p.Top))
}

func (p *Pad) String() string {
	return fmt.Sprintf("Pad(padding=[%d, %d, %d, %d], fill=%d)", p.Left, p.Top, p.Right, p.Bottom, p.Fill)
}

// Grayscale converts the image to gray levels, still stored in 3 channels.
type Grayscale struct{}

func buildGrayscale(params Params, _ *RNG) (Transform, error) {
	if err := params.CheckKnown("num_output_channels"); err != nil {
		return nil, err
	}
	n, err := params.Int("num_output_channels", 1)
	if err != nil {
		return nil, err
	}
	if n != 1 && n != 3 {
		return nil, errors.Wrapf(faces.ErrConfiguration, "num_output_channels=%d must be 1 or 3", n)
	}
	return Grayscale{}, nil
}

// Apply implements Transform.
func (Grayscale) Apply(img image.Image) image.Image { return imaging.Grayscale(img) }

func (Grayscale) String() string { return "Grayscale()" }

// ColorJitter randomly changes brightness, contrast and saturation, by factors drawn uniformly
// from the configured ranges. A factor of 1 leaves the image unchanged.
type ColorJitter struct {
	Brightness, Contrast, Saturation [2]float64
	rng                              *RNG
}

func buildColorJitter(params Params, rng *RNG) (Transform, error) {
	if err := params.CheckKnown("brightness", "contrast", "saturation"); err != nil {
		return nil, errors.WithMessage(err, "ColorJitter (hue is not supported)")
	}
	cj := &ColorJitter{rng: rng}
	for key, target := range map[string]*[2]float64{
		"brightness": &cj.Brightness, "contrast": &cj.Contrast, "saturation": &cj.Saturation} {
		low, high, ok, err := params.Range(key, 1, 0)
		if err != nil {
			return nil, err
		}
		if !ok {
			low, high = 1, 1
		}
		*target = [2]float64{low, high}
	}
	return cj, nil
}

// Apply implements Transform.
func (cj *ColorJitter) Apply(img image.Image) image.Image {
	if b := cj.rng.Uniform(cj.Brightness[0], cj.Brightness[1]); b != 1 {
		img = imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
			scale := func(v uint8) uint8 { return uint8(min(math.Round(float64(v)*b), 255)) }
			return color.NRGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
		})
	}
	if c := cj.rng.Uniform(cj.Contrast[0], cj.Contrast[1]); c != 1 {
		img = imaging.AdjustContrast(img, (c-1)*100)
	}
	if s := cj.rng.Uniform(cj.Saturation[0], cj.Saturation[1]); s != 1 {
		img = imaging.AdjustSaturation(img, (s-1)*100)
	}
	return img
}

func (cj *ColorJitter) String() string {
	return fmt.Sprintf("ColorJitter(brightness=%v, contrast=%v, saturation=%v)", cj.Brightness, cj.Contrast, cj.Saturation)
}

// GaussianBlur blurs the image with a sigma drawn uniformly from [MinSigma, MaxSigma].
type GaussianBlur struct {
	KernelSize         int
	MinSigma, MaxSigma float64
	rng                *RNG
}

func buildGaussianBlur(params Params, rng *RNG) (Transform, error) {
	if err := params.CheckKnown("kernel_size", "sigma"); err != nil {
		return nil, err
	}
	kernel, _, _, err := params.Size("kernel_size")
	if err != nil {
		return nil, err
	}
	if kernel%2 == 0 {
		return nil, errors.Wrapf(faces.ErrConfiguration, "GaussianBlur kernel_size=%d must be odd", kernel)
	}
	g := &GaussianBlur{KernelSize: kernel, MinSigma: 0.1, MaxSigma: 2.0, rng: rng}
	if sigmas, err := params.Floats("sigma"); err != nil {
		return nil, err
	} else if len(sigmas) == 1 {
		g.MinSigma, g.MaxSigma = sigmas[0], sigmas[0]
	} else if len(sigmas) == 2 {
		g.MinSigma, g.MaxSigma = sigmas[0], sigmas[1]
	} else if len(sigmas) != 0 {
		return nil, errors.Wrapf(faces.ErrConfiguration, "GaussianBlur sigma must be a number or [min, max], got %v", params["sigma"])
	}
	if g.MinSigma <= 0 || g.MinSigma > g.MaxSigma {
		return nil, errors.Wrapf(faces.ErrConfiguration, "GaussianBlur sigma range [%g, %g] is invalid", g.MinSigma, g.MaxSigma)
	}
	return g, nil
}

// Apply implements Transform.
func (g *GaussianBlur) Apply(img image.Image) image.Image {
	return imaging.Blur(img, g.rng.Uniform(g.MinSigma, g.MaxSigma))
}

func (g *GaussianBlur) String() string {
	return fmt.Sprintf("GaussianBlur(kernel_size=%d, sigma=[%g, %g])", g.KernelSize, g.MinSigma, g.MaxSigma)
}

// ToTensor marks the point where images are converted to tensors with values in [0, 1].
// The conversion itself is done by the batch loader, so Apply is the identity.
type ToTensor struct{}

func buildToTensor(params Params, _ *RNG) (Transform, error) {
	return ToTensor{}, params.CheckKnown()
}

// Apply implements Transform.
func (ToTensor) Apply(img image.Image) image.Image { return img }

func (ToTensor) String() string { return "ToTensor()" }

// Normalize records the per-channel Mean and Std used to normalize the image tensors:
// `(x - mean) / std`. Apply is the identity, see Compose.Normalization.
type Normalize struct {
	Mean, Std []float64
}

func buildNormalize(params Params, _ *RNG) (Transform, error) {
	if err := params.CheckKnown("mean", "std", "inplace"); err != nil {
		return nil, err
	}
	mean, err := params.Floats("mean")
	if err != nil {
		return nil, err
	}
	std, err := params.Floats("std")
	if err != nil {
		return nil, err
	}
	if len(mean) != len(std) || (len(mean) != 1 && len(mean) != 3) {
		return nil, errors.Wrapf(faces.ErrConfiguration, "Normalize mean and std must both have 1 or 3 values, got %v and %v", mean, std)
	}
	for _, s := range std {
		if s == 0 {
			return nil, errors.Wrap(faces.ErrConfiguration, "Normalize std can't be 0")
		}
	}
	if len(mean) == 1 {
		mean = []float64{mean[0], mean[0], mean[0]}
		std = []float64{std[0], std[0], std[0]}
	}
	return &Normalize{Mean: mean, Std: std}, nil
}

// Apply implements Transform.
func (*Normalize) Apply(img image.Image) image.Image { return img }

func (n *Normalize) String() string {
	return fmt.Sprintf("Normalize(mean=%v, std=%v)", n.Mean, n.Std)
}

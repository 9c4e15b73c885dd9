package view

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"math"

	mandel "github.com/marben/mandelzoom"
)

// Event types understood by Apply.
const (
	EventPan      = "pan"
	EventZoom     = "zoom"
	EventBegin    = "begin"
	EventEnd      = "end"
	EventHue      = "hue"
	EventMono     = "mono"
	EventResize   = "resize"
	EventFinal    = "final"
	EventViewport = "viewport"
)

// ErrUnknownEvent is returned by Apply for an unrecognized event type.
var ErrUnknownEvent = errors.New("view: unknown event")

// Event is the JSON form of a host input event.
type Event struct {
	Type string `json:"type"`

	DX float64 `json:"dx,omitempty"` // pan, pixels
	DY float64 `json:"dy,omitempty"`

	Factor float64 `json:"factor,omitempty"` // zoom, >1 zooms in
	X      float64 `json:"x,omitempty"`      // zoom anchor, pixels
	Y      float64 `json:"y,omitempty"`

	Hue float64 `json:"hue,omitempty"` // degrees

	Width  int `json:"width,omitempty"` // resize, viewport
	Height int `json:"height,omitempty"`

	Re    float64 `json:"re,omitempty"` // viewport center
	Im    float64 `json:"im,omitempty"`
	Scale float64 `json:"scale,omitempty"`
}

// Apply forwards e to c.
func (e Event) Apply(c *Controller) error {
	switch e.Type {
	case EventPan:
		c.Pan(e.DX, e.DY)
	case EventZoom:
		c.Zoom(e.Factor, e.X, e.Y)
	case EventBegin:
		c.BeginInteraction()
	case EventEnd:
		c.EndInteraction()
	case EventHue:
		c.SetPalette(mandel.Hue(e.Hue))
	case EventMono:
		c.SetPalette(mandel.Monochrome())
	case EventResize:
		return c.Resize(e.Width, e.Height)
	case EventFinal:
		c.RequestFinal()
	case EventViewport:
		v, err := mandel.NewViewport(complex(e.Re, e.Im), e.Scale, e.Width, e.Height)
		if err != nil {
			return err
		}
		return c.SetViewport(v)
	default:
		return fmt.Errorf("%q: %w", e.Type, ErrUnknownEvent)
	}
	return nil
}

// StatusComplete is the type of the Status sent when a generation completes.
const StatusComplete = "complete"

// Status is the JSON message a server sends alongside binary frames.
// It describes the final frame of a completed generation.
type Status struct {
	Type       string  `json:"type"`
	Generation uint64  `json:"generation"`
	Re         float64 `json:"re"`
	Im         float64 `json:"im"`
	Scale      float64 `json:"scale"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Hue        float64 `json:"hue"`
	Mono       bool    `json:"mono,omitempty"`
}

// NewStatus returns the completion status for the final frame f.
func NewStatus(f *mandel.Frame) Status {
	st := Status{
		Type:       StatusComplete,
		Generation: f.Generation,
		Re:         real(f.Viewport.Center),
		Im:         imag(f.Viewport.Center),
		Scale:      f.Viewport.Scale,
		Width:      f.Viewport.Width,
		Height:     f.Viewport.Height,
	}
	if f.Palette.IsMonochrome() {
		st.Mono = true
	} else {
		st.Hue = mandel.Hue(f.Palette.BaseHue).BaseHue
	}
	return st
}

// Matches reports whether st describes a render of v with palette p.
// Frames are rendered on the snapped lattice, so the center may differ by
// up to a pixel.
func (st Status) Matches(v mandel.Viewport, p mandel.PaletteConfig) bool {
	if st.Width != v.Width || st.Height != v.Height {
		return false
	}
	if math.Abs(st.Scale-v.Scale) > 1e-9*v.Scale {
		return false
	}
	if math.Abs(st.Re-real(v.Center)) > v.Scale || math.Abs(st.Im-imag(v.Center)) > v.Scale {
		return false
	}
	if p.IsMonochrome() {
		return st.Mono
	}
	return !st.Mono && math.Abs(st.Hue-mandel.Hue(p.BaseHue).BaseHue) < 1e-9
}

// FrameHeaderSize is the length of the binary frame header.
const FrameHeaderSize = 16

// FrameHeader precedes the RGBA pixels of an encoded frame.
//
//	0..8   generation, little endian
//	8      tier level
//	9      1 if final
//	10..12 reserved
//	12..14 width
//	14..16 height
type FrameHeader struct {
	Generation uint64
	Level      int
	Final      bool
	Width      int
	Height     int
}

// ErrShortFrame is returned by DecodeFrame for truncated input.
var ErrShortFrame = errors.New("view: short frame")

// EncodeFrame serializes f as header plus tightly packed RGBA rows.
func EncodeFrame(f *mandel.Frame) ([]byte, error) {
	b := f.Image.Bounds()
	w, h := b.Dx(), b.Dy()
	if w > math.MaxUint16 || h > math.MaxUint16 || f.Tier.Level > math.MaxUint8 {
		return nil, fmt.Errorf("frame %dx%d tier %d does not fit the header", w, h, f.Tier.Level)
	}

	buf := make([]byte, FrameHeaderSize, FrameHeaderSize+4*w*h)
	binary.LittleEndian.PutUint64(buf[0:], f.Generation)
	buf[8] = byte(f.Tier.Level)
	if f.Final {
		buf[9] = 1
	}
	binary.LittleEndian.PutUint16(buf[12:], uint16(w))
	binary.LittleEndian.PutUint16(buf[14:], uint16(h))

	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := f.Image.PixOffset(b.Min.X, y)
		buf = append(buf, f.Image.Pix[i:i+4*w]...)
	}
	return buf, nil
}

// DecodeFrame parses an encoded frame. The image aliases data.
func DecodeFrame(data []byte) (FrameHeader, *image.RGBA, error) {
	if len(data) < FrameHeaderSize {
		return FrameHeader{}, nil, ErrShortFrame
	}
	hdr := FrameHeader{
		Generation: binary.LittleEndian.Uint64(data[0:]),
		Level:      int(data[8]),
		Final:      data[9] == 1,
		Width:      int(binary.LittleEndian.Uint16(data[12:])),
		Height:     int(binary.LittleEndian.Uint16(data[14:])),
	}
	pix := data[FrameHeaderSize:]
	if len(pix) < 4*hdr.Width*hdr.Height {
		return hdr, nil, fmt.Errorf("%dx%d frame with %d pixel bytes: %w", hdr.Width, hdr.Height, len(pix), ErrShortFrame)
	}
	img := &image.RGBA{
		Pix:    pix[:4*hdr.Width*hdr.Height],
		Stride: 4 * hdr.Width,
		Rect:   image.Rect(0, 0, hdr.Width, hdr.Height),
	}
	return hdr, img, nil
}

package main

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/gdamore/tcell/v2"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/view"
)

const (
	halfBlock = '▀'
	zoomStep  = 1.5
	hueStep   = 30
)

// frameSize returns the pixel size of a frame filling a cols x rows terminal.
func frameSize(cols, rows int) (width, height int) {
	return max(cols, 1), max(rows-1, 1) * 2
}

// display is the frame sink of the terminal. Frames arrive on render
// goroutines and are drawn on the event loop.
type display struct {
	screen tcell.Screen

	mu       sync.Mutex
	frame    *mandel.Frame
	complete uint64

	hue  float64
	mono bool
}

func newDisplay(s tcell.Screen) *display {
	return &display{screen: s}
}

func (d *display) DeliverFrame(f *mandel.Frame) {
	d.mu.Lock()
	d.frame = f
	d.mu.Unlock()
	d.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

func (d *display) GenerationComplete(gen uint64) {
	d.mu.Lock()
	d.complete = gen
	d.mu.Unlock()
	d.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

// run processes terminal events until the user quits.
func (d *display) run(ctrl *view.Controller) {
	for {
		switch ev := d.screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventResize:
			d.screen.Sync()
			if err := ctrl.Resize(frameSize(ev.Size())); err != nil {
				mandel.Logger().Warn("resize", "err", err)
			}
		case *tcell.EventInterrupt:
			d.draw()
		case *tcell.EventKey:
			if !d.key(ev, ctrl) {
				return
			}
		}
	}
}

// key applies one key press and reports whether to keep running.
func (d *display) key(ev *tcell.EventKey, ctrl *view.Controller) bool {
	v := ctrl.Viewport()
	cx, cy := float64(v.Width)/2, float64(v.Height)/2
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyLeft:
		ctrl.Pan(-float64(v.Width)/8, 0)
	case tcell.KeyRight:
		ctrl.Pan(float64(v.Width)/8, 0)
	case tcell.KeyUp:
		ctrl.Pan(0, -float64(v.Height)/8)
	case tcell.KeyDown:
		ctrl.Pan(0, float64(v.Height)/8)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q':
			return false
		case '+', '=':
			ctrl.Zoom(zoomStep, cx, cy)
		case '-':
			ctrl.Zoom(1/zoomStep, cx, cy)
		case 'h':
			d.hue += hueStep
			d.mono = false
			ctrl.SetPalette(mandel.Hue(d.hue))
		case 'm':
			d.mono = !d.mono
			if d.mono {
				ctrl.SetPalette(mandel.Monochrome())
			} else {
				ctrl.SetPalette(mandel.Hue(d.hue))
			}
		case 'f':
			ctrl.RequestFinal()
		}
	}
	return true
}

func rgb(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}

// draw paints the newest frame and the status line.
func (d *display) draw() {
	d.mu.Lock()
	f, complete := d.frame, d.complete
	d.mu.Unlock()
	if f == nil {
		return
	}

	cols, rows := d.screen.Size()
	b := f.Image.Bounds()
	for y := 0; y < rows-1; y++ {
		top, bottom := b.Min.Y+2*y, b.Min.Y+2*y+1
		if bottom >= b.Max.Y {
			break
		}
		for x := 0; x < cols && b.Min.X+x < b.Max.X; x++ {
			st := tcell.StyleDefault.
				Foreground(rgb(f.Image.RGBAAt(b.Min.X+x, top))).
				Background(rgb(f.Image.RGBAAt(b.Min.X+x, bottom)))
			d.screen.SetContent(x, y, halfBlock, nil, st)
		}
	}

	status := statusLine(f, complete)
	for x := 0; x < cols; x++ {
		r := ' '
		if x < len(status) {
			r = rune(status[x])
		}
		d.screen.SetContent(x, rows-1, r, nil, tcell.StyleDefault.Reverse(true))
	}
	d.screen.Show()
}

func statusLine(f *mandel.Frame, complete uint64) string {
	state := "refining"
	if f.Final && complete >= f.Generation {
		state = "done"
	}
	return fmt.Sprintf(" %s | %s | re=%.10g im=%.10g scale=%.3g | arrows +/- h m f q",
		state, f.Tier, real(f.Viewport.Center), imag(f.Viewport.Center), f.Viewport.Scale)
}

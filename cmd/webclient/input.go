//go:build js && wasm

package main

import (
	"math"
	"syscall/js"

	"github.com/marben/mandelzoom/view"
)

const hueStep = 30

// bindInput turns canvas and keyboard input into events.
// Handlers run on the JS event loop and must not block, so full queues drop input.
func bindInput(events chan<- view.Event) {
	send := func(ev view.Event) {
		select {
		case events <- ev:
		default:
		}
	}

	var (
		dragging     bool
		lastX, lastY float64
		hue          = 210.0
	)

	c := canvas()
	c.Call("addEventListener", "mousedown", js.FuncOf(func(_ js.Value, args []js.Value) any {
		e := args[0]
		dragging = true
		lastX, lastY = e.Get("offsetX").Float(), e.Get("offsetY").Float()
		send(view.Event{Type: view.EventBegin})
		return nil
	}))
	c.Call("addEventListener", "mousemove", js.FuncOf(func(_ js.Value, args []js.Value) any {
		if !dragging {
			return nil
		}
		e := args[0]
		x, y := e.Get("offsetX").Float(), e.Get("offsetY").Float()
		send(view.Event{Type: view.EventPan, DX: lastX - x, DY: lastY - y})
		lastX, lastY = x, y
		return nil
	}))
	end := js.FuncOf(func(js.Value, []js.Value) any {
		if dragging {
			dragging = false
			send(view.Event{Type: view.EventEnd})
		}
		return nil
	})
	c.Call("addEventListener", "mouseup", end)
	c.Call("addEventListener", "mouseleave", end)

	c.Call("addEventListener", "wheel", js.FuncOf(func(_ js.Value, args []js.Value) any {
		e := args[0]
		e.Call("preventDefault")
		send(view.Event{
			Type:   view.EventZoom,
			Factor: math.Pow(1.25, -e.Get("deltaY").Float()/100),
			X:      e.Get("offsetX").Float(),
			Y:      e.Get("offsetY").Float(),
		})
		return nil
	}), map[string]any{"passive": false})

	js.Global().Get("window").Call("addEventListener", "keydown", js.FuncOf(func(_ js.Value, args []js.Value) any {
		switch args[0].Get("key").String() {
		case "h":
			hue = math.Mod(hue+hueStep, 360)
			send(view.Event{Type: view.EventHue, Hue: hue})
		case "m":
			send(view.Event{Type: view.EventMono})
		case "f":
			send(view.Event{Type: view.EventFinal})
		}
		return nil
	}))

	js.Global().Get("window").Call("addEventListener", "resize", js.FuncOf(func(js.Value, []js.Value) any {
		w, h := canvasSize()
		if w > 0 && h > 0 {
			send(view.Event{Type: view.EventResize, Width: w, Height: h})
		}
		return nil
	}))
}

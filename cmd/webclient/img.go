//go:build js && wasm

package main

import (
	"image"
	"syscall/js"
)

func canvas() js.Value {
	return js.Global().Get("document").Call("getElementById", "myCanvas")
}

// canvasSize returns the displayed size of the canvas in CSS pixels.
func canvasSize() (width, height int) {
	c := canvas()
	return c.Get("clientWidth").Int(), c.Get("clientHeight").Int()
}

// displays image on the site
func displayImage(img *image.RGBA) {
	c := canvas()
	width := img.Rect.Dx()
	height := img.Rect.Dy()
	if c.Get("width").Int() != width || c.Get("height").Int() != height {
		c.Set("width", width)
		c.Set("height", height)
	}
	ctx := c.Call("getContext", "2d")

	// Copy the tightly packed pixels into a Uint8ClampedArray for ImageData
	jsData := js.Global().Get("Uint8ClampedArray").New(len(img.Pix))
	js.CopyBytesToJS(jsData, img.Pix)

	imageData := js.Global().Get("ImageData").New(jsData, width, height)
	ctx.Call("putImageData", imageData, 0, 0)
}

func initCanvas(width, height int, color string) {
	c := canvas()
	c.Set("width", width)
	c.Set("height", height)

	ctx := c.Call("getContext", "2d")
	ctx.Set("fillStyle", color)
	ctx.Call("fillRect", 0, 0, width, height)
}

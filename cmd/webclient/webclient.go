//go:build js && wasm

// webclient.go is a WASM web client for the Mandelbrot explorer.
// It connects to the mandel server, forwards canvas input as events, and draws
// every refinement the server streams back.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"syscall/js"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/marben/mandelzoom/view"
)

// main is the entry point for the WASM web client.
// It connects to the server, wires input to the event stream, and draws frames until the connection drops.
func main() {
	logScreenf("Starting WASM web client...")
	ctx := context.Background()

	// Step 1: Determine server address for WebSocket connection
	loc := js.Global().Get("window").Get("location")
	host := loc.Get("host").String()
	proto := "ws"
	if loc.Get("protocol").String() == "https:" {
		proto = "wss"
	}
	websocketUrl := proto + "://" + host + "/ws"

	// Step 2: Connect to server via WebSocket
	logScreenf("Connecting to Mandelbrot server at %s...", websocketUrl)
	conn, _, err := websocket.Dial(ctx, websocketUrl, nil)
	if err != nil {
		logFatalf("Failed to connect: %v", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(64 << 20)
	logScreenf("WebSocket connected.")

	// Step 3: Size the view to the canvas and start forwarding input
	width, height := canvasSize()
	initCanvas(width, height, "#3a3a6e")
	events := make(chan view.Event, 64)
	events <- view.Event{Type: view.EventResize, Width: width, Height: height}
	bindInput(events)
	go writeLoop(ctx, conn, events)
	logScreenf("Canvas initialized to dimensions %dx%d", width, height)

	// Step 4: Draw frames as they arrive
	if err := readLoop(ctx, conn); err != nil {
		logFatalf("readLoop: %v", err)
	}
}

// writeLoop sends input events to the server in order.
func writeLoop(ctx context.Context, conn *websocket.Conn, events <-chan view.Event) {
	for ev := range events {
		if err := wsjson.Write(ctx, conn, ev); err != nil {
			logScreenf("send %s: %v", ev.Type, err)
			return
		}
	}
}

// readLoop draws binary frames and shows status messages until the connection closes.
func readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if typ == websocket.MessageBinary {
			hdr, img, err := view.DecodeFrame(data)
			if err != nil {
				return err
			}
			displayImage(img)
			hudSetGeneration(hdr.Generation)
			hudSetTier(hdr.Level, hdr.Final)
			continue
		}

		var st view.Status
		if err := json.Unmarshal(data, &st); err != nil {
			return fmt.Errorf("status: %w", err)
		}
		hudSetView(st)
	}
}

// logScreenf appends a formatted message to the log element in the DOM,
func logScreenf(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)

	doc := js.Global().Get("document")
	logElem := doc.Call("getElementById", "log")
	logElem.Set("textContent", logElem.Get("textContent").String()+msg+"\n")
}

// logFatalf logs a fatal error to the log window and terminates the program.
func logFatalf(format string, a ...any) {
	logScreenf("FATAL: "+format, a...)
	log.Fatalf(format, a...)
}

// hudSetGeneration updates the HUD with the generation of the frame on screen.
func hudSetGeneration(gen uint64) {
	js.Global().Get("document").Call("getElementById", "generation").Set("textContent", gen)
}

// hudSetTier updates the HUD with the detail tier of the frame on screen.
func hudSetTier(level int, final bool) {
	s := fmt.Sprintf("%d", level)
	if final {
		s += " (final)"
	}
	js.Global().Get("document").Call("getElementById", "tier").Set("textContent", s)
}

// hudSetView shows where the last completed generation was rendered.
func hudSetView(st view.Status) {
	doc := js.Global().Get("document")
	doc.Call("getElementById", "center").Set("textContent", fmt.Sprintf("%.12g %+.12gi", st.Re, st.Im))
	doc.Call("getElementById", "scale").Set("textContent", fmt.Sprintf("%.3g", st.Scale))
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/view"
)

// renderRemote asks a mandel server for the final frame of v.
// The server may still be finishing its own initial view, so a frame is only
// accepted once a completion status for v and palette names its generation.
func renderRemote(ctx context.Context, url string, v mandel.Viewport, palette mandel.PaletteConfig) (*image.RGBA, error) {
	log.Printf("connecting")
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket.Dial: %w", err)
	}
	defer c.CloseNow()
	c.SetReadLimit(max(int64(view.FrameHeaderSize+4*v.Width*v.Height), 64<<20))

	events := []view.Event{
		{Type: view.EventViewport, Re: real(v.Center), Im: imag(v.Center), Scale: v.Scale, Width: v.Width, Height: v.Height},
		paletteEvent(palette),
		{Type: view.EventFinal},
	}
	for _, ev := range events {
		if err := wsjson.Write(ctx, c, ev); err != nil {
			return nil, fmt.Errorf("send %s: %w", ev.Type, err)
		}
	}

	finals := make(map[uint64]*image.RGBA)
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("read: %w", err)
		}

		if typ == websocket.MessageBinary {
			hdr, img, err := view.DecodeFrame(data)
			if err != nil {
				return nil, err
			}
			log.Printf("received generation %d tier %d frame %dx%d", hdr.Generation, hdr.Level, hdr.Width, hdr.Height)
			if hdr.Final {
				finals[hdr.Generation] = img
			}
			continue
		}

		var st view.Status
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		img, ok := finals[st.Generation]
		if !ok || !st.Matches(v, palette) {
			continue
		}
		c.Close(websocket.StatusNormalClosure, "")
		return img, nil
	}
}

func paletteEvent(p mandel.PaletteConfig) view.Event {
	if p.IsMonochrome() {
		return view.Event{Type: view.EventMono}
	}
	return view.Event{Type: view.EventHue, Hue: p.BaseHue}
}

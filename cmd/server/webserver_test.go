package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/tilecache"
	"github.com/marben/mandelzoom/view"
)

func TestWebsocketSession(t *testing.T) {
	initial, err := mandel.Fit(mandel.FullSet, 64, 48)
	if err != nil {
		t.Fatal(err)
	}
	s := &session{
		cache:   tilecache.New(tilecache.DefaultConfig()),
		initial: initial,
		palette: mandel.Hue(210),
		workers: 2,
	}
	srv := httptest.NewServer(websocketHandler(s))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.CloseNow()
	c.SetReadLimit(1 << 20)

	if err := wsjson.Write(ctx, c, view.Event{Type: view.EventResize, Width: 32, Height: 24}); err != nil {
		t.Fatal(err)
	}

	var final *view.FrameHeader
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if typ == websocket.MessageBinary {
			hdr, img, err := view.DecodeFrame(data)
			if err != nil {
				t.Fatal(err)
			}
			if b := img.Bounds(); b.Dx() != hdr.Width || b.Dy() != hdr.Height {
				t.Errorf("image %v does not match header %+v", b, hdr)
			}
			if hdr.Final {
				final = &hdr
			}
			continue
		}

		var st view.Status
		if err := json.Unmarshal(data, &st); err != nil {
			t.Fatal(err)
		}
		if st.Type != view.StatusComplete {
			t.Fatalf("status type = %q, want %q", st.Type, view.StatusComplete)
		}
		if st.Width == 32 && st.Height == 24 {
			break
		}
	}

	if final == nil {
		t.Fatal("no final frame before completion")
	}
	if want := mandel.DefaultTiers.Ceiling(initial).Level; final.Level != want {
		t.Errorf("final frame level = %d, want %d", final.Level, want)
	}
	c.Close(websocket.StatusNormalClosure, "")
}

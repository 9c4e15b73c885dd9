package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	mandel "github.com/marben/mandelzoom"
	"github.com/marben/mandelzoom/render"
	"github.com/marben/mandelzoom/tilecache"
	"github.com/marben/mandelzoom/view"
)

// session holds what every connection starts from.
type session struct {
	cache   *tilecache.Cache
	initial mandel.Viewport
	palette mandel.PaletteConfig
	workers int
}

// webServer creates a server serving the files in static and the websocket endpoint.
func webServer(port int, static string, s *session) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", websocketHandler(s))
	mux.Handle("/", http.FileServer(http.Dir(static)))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("listening on http://localhost:%d", port)
	return srv
}

// websocketHandler handles the http ws endpoint.
// Each accepted connection is served until either side closes it.
func websocketHandler(s *session) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"}, // TODO: restrict to the serving host once deployed behind a proxy
		})
		if err != nil {
			log.Println(err)
			return
		}
		defer c.CloseNow()

		log.Printf("got connection from: %s", r.RemoteAddr)
		err = s.serve(r.Context(), c)
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			log.Printf("connection %s closed", r.RemoteAddr)
		default:
			log.Printf("connection %s: %v", r.RemoteAddr, err)
		}
	}
}

// serve runs one client: JSON events in, binary frames and JSON status out.
func (s *session) serve(ctx context.Context, c *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sched := render.NewScheduler(render.WithWorkers(s.workers), render.WithCache(s.cache))
	defer sched.Close()

	sink := newFrameSink()
	ctrl, err := view.New(sched, sink, s.initial, view.WithPalette(s.palette))
	if err != nil {
		return err
	}
	defer ctrl.Close()

	go func() {
		if err := sink.writeLoop(ctx, c); err != nil && ctx.Err() == nil {
			log.Printf("write: %v", err)
			cancel()
		}
	}()

	for {
		var ev view.Event
		if err := wsjson.Read(ctx, c, &ev); err != nil {
			return err
		}
		if err := ev.Apply(ctrl); err != nil {
			log.Printf("event %q: %v", ev.Type, err)
		}
	}
}

// frameSink buffers controller output for the connection writer.
// Only the newest undelivered frame is kept.
type frameSink struct {
	mu        sync.Mutex
	frame     *mandel.Frame
	lastFinal *mandel.Frame
	completed []*mandel.Frame // final frames of completed generations
	notify    chan struct{}
}

func newFrameSink() *frameSink {
	return &frameSink{notify: make(chan struct{}, 1)}
}

func (s *frameSink) DeliverFrame(f *mandel.Frame) {
	s.mu.Lock()
	s.frame = f
	if f.Final {
		s.lastFinal = f
	}
	s.mu.Unlock()
	s.wake()
}

func (s *frameSink) GenerationComplete(gen uint64) {
	s.mu.Lock()
	if s.lastFinal != nil && s.lastFinal.Generation == gen {
		s.completed = append(s.completed, s.lastFinal)
	}
	s.mu.Unlock()
	s.wake()
}

func (s *frameSink) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *frameSink) take() (*mandel.Frame, []*mandel.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, done := s.frame, s.completed
	s.frame, s.completed = nil, nil
	return f, done
}

func (s *frameSink) writeLoop(ctx context.Context, c *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.notify:
		}

		f, completed := s.take()
		if f != nil {
			data, err := view.EncodeFrame(f)
			if err != nil {
				return err
			}
			if err := c.Write(ctx, websocket.MessageBinary, data); err != nil {
				return err
			}
		}
		for _, final := range completed {
			if err := wsjson.Write(ctx, c, view.NewStatus(final)); err != nil {
				return err
			}
		}
	}
}

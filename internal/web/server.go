// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package web serves the display record to browsers: a JSON snapshot endpoint
// and a websocket stream of views.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/relabs-tech/wayfinder/internal/display"
	"github.com/relabs-tech/wayfinder/internal/state"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// Server reads the display record the same way the presentation loop does:
// always with a bounded wait.
type Server struct {
	display     state.Display
	readTimeout time.Duration
	interval    time.Duration
	logger      *zap.SugaredLogger
}

// New returns a server polling d every interval for websocket clients.
func New(d state.Display, readTimeout, interval time.Duration, logger *zap.SugaredLogger) *Server {
	return &Server{display: d, readTimeout: readTimeout, interval: interval, logger: logger}
}

// Handler routes /api/display, /ws/display and the index page.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/display", s.handleDisplay)
	mux.HandleFunc("/ws/display", s.handleDisplayWS)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})
	return mux
}

// ListenAndServe serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// Hijacked websocket connections are not closed by Shutdown; they
		// watch the request context instead.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	defer stop()

	s.logger.Infof("web: server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	ds, err := s.display.Read(s.readTimeout)
	if err != nil {
		http.Error(w, "display busy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(display.NewView(ds)); err != nil {
		s.logger.Warnf("web: json encode error: %v", err)
	}
}

func (s *Server) handleDisplayWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// Drain client frames so close messages are seen.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.logger.Debugf("web: websocket read error: %v", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var last display.View
	sent := false
	for {
		ds, err := s.display.Read(s.readTimeout)
		if err == nil {
			v := display.NewView(ds)
			if !sent || v != last {
				if err := conn.WriteJSON(v); err != nil {
					s.logger.Debugf("web: websocket write error: %v", err)
					return
				}
				last, sent = v, true
			}
		}

		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Wayfinder</title></head>
<body style="font-family: monospace; text-align: center">
<svg id="arrow" width="200" height="200" viewBox="-50 -50 100 100">
  <polygon points="0,-40 12,20 0,10 -12,20" fill="black"/>
</svg>
<h1 id="distance">- m</h1>
<h2 id="label"></h2>
<script>
const ws = new WebSocket("ws://" + location.host + "/ws/display");
ws.onmessage = (ev) => {
  const v = JSON.parse(ev.data);
  document.getElementById("arrow").style.transform = "rotate(" + (v.angle / 10) + "deg)";
  document.getElementById("distance").textContent = v.distance_text;
  document.getElementById("label").textContent = v.label;
};
</script>
</body>
</html>
`

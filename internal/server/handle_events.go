package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const streamPing = 30 * time.Second

func handleEvents(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "internal", "streaming not supported")
			return
		}
		player := playerFrom(r)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		sub := d.hub.Subscribe(player.ID)
		defer d.hub.Unsubscribe(sub)

		fmt.Fprintf(w, "event: ready\ndata: {}\n\n")
		flusher.Flush()

		ping := time.NewTicker(streamPing)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case e := <-sub.C:
				data, err := json.Marshal(e)
				if err != nil {
					d.logger.Error("encoding event", "error", err)
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}

// handleWS streams the same events as handleEvents over a WebSocket. Client
// messages are ignored.
func handleWS(d *deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		player := playerFrom(r)

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			d.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx := conn.CloseRead(r.Context())

		sub := d.hub.Subscribe(player.ID)
		defer d.hub.Unsubscribe(sub)

		ping := time.NewTicker(streamPing)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				conn.Close(websocket.StatusNormalClosure, "")
				return
			case e := <-sub.C:
				wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := wsjson.Write(wctx, conn, e)
				cancel()
				if err != nil {
					d.logger.Debug("websocket write failed", "error", err)
					return
				}
			case <-ping.C:
				pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err := conn.Ping(pctx)
				cancel()
				if err != nil {
					d.logger.Debug("websocket ping failed", "error", err)
					return
				}
			}
		}
	}
}

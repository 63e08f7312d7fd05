package ipc

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jangala-audio/dspcore/internal/logging"
)

// notifyPollInterval is how often DrainNotifications checks the ring
// for a connected host that isn't itself generating request traffic to
// piggyback notifications on.
const notifyPollInterval = 5 * time.Millisecond

// WSBridge exposes the Dispatcher over a websocket connection, standing
// in for the real shared-memory mailbox window when a
// host-side simulator drives this core out of process rather than
// through a real doorbell/IRQ pair.
//
// Each message is one request/reply round-trip: one websocket binary
// frame in, the IPC reply frame out, preserving the "one outstanding
// request" discipline the Dispatcher already enforces.
type WSBridge struct {
	dispatcher *Dispatcher
	log        *logging.Logger
	upgrader   websocket.Upgrader
}

// NewWSBridge wraps dispatcher for serving over a websocket listener.
func NewWSBridge(dispatcher *Dispatcher, log *logging.Logger) *WSBridge {
	return &WSBridge{
		dispatcher: dispatcher,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and runs the request/reply loop
// until the client disconnects or sends a close frame.
func (b *WSBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if b.log != nil {
			b.log.Sugar().Warnw("mailbox bridge upgrade failed", "error", err)
		}
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		req, err := DecodeEnvelope(data)
		if err != nil {
			if b.log != nil {
				b.log.Sugar().Warnw("mailbox bridge received malformed envelope", "error", err)
			}
			continue
		}
		resp := b.dispatcher.Handle(ctx, req)
		if err := conn.WriteMessage(websocket.BinaryMessage, resp.Encode()); err != nil {
			return
		}
	}
}

// DrainNotifications periodically flushes the dispatcher's notification
// ring to the connected host as unsolicited binary frames; intended to
// run in its own goroutine per connection, cancelled via ctx.
func (b *WSBridge) DrainNotifications(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(notifyPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, env := range b.dispatcher.Notify.Drain() {
				if err := conn.WriteMessage(websocket.BinaryMessage, env.Encode()); err != nil {
					return
				}
			}
		}
	}
}

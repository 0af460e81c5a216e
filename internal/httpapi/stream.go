package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campuslink/moderation/internal/identity"
	"github.com/campuslink/moderation/internal/logger"
	"github.com/campuslink/moderation/internal/notify"
)

// Stream pushes a recipient's notifications over a websocket as they are
// persisted. Delivery here is best-effort on top of the stored records; a
// dropped connection loses nothing, the client just refetches.
type Stream struct {
	observer *notify.Observer
	upgrader websocket.Upgrader
}

func NewStream(observer *notify.Observer) *Stream {
	return &Stream{
		observer: observer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

const keepAlivePingInterval = 10 * time.Second

func (s *Stream) Serve(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.UserID == "" {
		writeError(w, http.StatusUnauthorized, "authentication required", "")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.L().Warn("websocket upgrade failed", "err", err, "remote", r.RemoteAddr)
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.observer.Subscribe(id.UserID)
	defer unsubscribe()

	// Drain reads so close frames are processed; signals the write loop to
	// stop.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(keepAlivePingInterval)
	defer ticker.Stop()

	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(n); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

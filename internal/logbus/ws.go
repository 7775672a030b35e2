package logbus

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	WRITE_WAIT = 10 * time.Second
	PONG_WAIT  = 30 * time.Second
	PING_EVERY = PONG_WAIT * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// the stream is read-only and meant for local viewers
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler streams events to websocket clients as JSON text messages.
// Query parameters narrow the stream: level=warn keeps warnings and
// above, command=NAME keeps one command's events.
func (b *Bus) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filters := []FilterFunc{MinLevel(zerolog.DebugLevel)}
		if s := r.URL.Query().Get("level"); s != "" {
			l, err := zerolog.ParseLevel(s)
			if err != nil {
				http.Error(w, "bad level", http.StatusBadRequest)
				return
			}
			filters[0] = MinLevel(l)
		}
		if name := r.URL.Query().Get("command"); name != "" {
			filters = append(filters, Field("command", name))
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("websocket upgrade")
			return
		}
		sub := b.Subscribe(DEFAULT_BUFFER, filters...)
		log.Debug().Str("remote", r.RemoteAddr).Msg("log viewer connected")
		stream(conn, sub)
		log.Debug().Str("remote", r.RemoteAddr).Msg("log viewer left")
	})
}

func stream(conn *websocket.Conn, sub *Subscription) {
	defer conn.Close()
	defer sub.Close()

	// the read loop only processes control frames
	gone := make(chan struct{})
	conn.SetReadLimit(1 << 12)
	_ = conn.SetReadDeadline(time.Now().Add(PONG_WAIT))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(PONG_WAIT))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(PING_EVERY)
	defer ping.Stop()
	for {
		select {
		case <-gone:
			return
		case e, ok := <-sub.Ch:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(WRITE_WAIT))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(WRITE_WAIT))
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(WRITE_WAIT)); err != nil {
				return
			}
		}
	}
}

package httpapi

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"adaptive-meal-planner/internal/session"
)

const eventWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type stateEvent struct {
	Type  string        `json:"type"`
	State session.State `json:"state"`
}

// SessionEvents streams the session state over a websocket: once on
// connect, then after every change until the session closes or the client
// goes away.
func (a *API) SessionEvents(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	updates, cancel := sess.Subscribe()
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed for session %s: %v", sess.ID, err)
		return
	}
	defer conn.Close()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeEvent(conn, sess.State()); err != nil {
		return
	}
	for {
		select {
		case st, ok := <-updates:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
				conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventWriteTimeout))
				return
			}
			if err := writeEvent(conn, st); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

func writeEvent(conn *websocket.Conn, st session.State) error {
	conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
	return conn.WriteJSON(stateEvent{Type: "state", State: st})
}

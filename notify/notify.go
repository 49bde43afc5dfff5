// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package notify delivers post-settlement market events to connected
// characters over websockets. Delivery is best-effort: events for absent
// characters, or for characters with a saturated send queue, are dropped.
// The settlement path must never block on a slow client.
package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/orbitforge/worldmarket/econ"
)

const (
	// outBufferSize is the per-character buffered event queue.
	outBufferSize = 64

	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = pingPeriod * 5 / 4
)

var upgrader = websocket.Upgrader{}

// Event is the wire envelope for one notification.
type Event struct {
	// ID is a unique event identifier, for client-side dedup across
	// reconnects.
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Stamp   time.Time `json:"stamp"`
	Payload any       `json:"payload,omitempty"`
}

// Hub fans market events out to connected characters. It satisfies
// econ.Notifier. All methods are safe for concurrent use.
type Hub struct {
	ctx context.Context

	mtx   sync.RWMutex
	links map[econ.EntityID]*link
}

// NewHub constructs a Hub. Links are torn down when ctx is canceled.
func NewHub(ctx context.Context) *Hub {
	return &Hub{
		ctx:   ctx,
		links: make(map[econ.EntityID]*link),
	}
}

// SendToCharacter queues an event for one character. Absent characters and
// full queues drop the event.
func (h *Hub) SendToCharacter(char econ.EntityID, event string, payload any) {
	h.mtx.RLock()
	l := h.links[char]
	h.mtx.RUnlock()
	if l == nil {
		log.Tracef("Dropping %s event for offline character %d", event, char)
		return
	}

	b, err := json.Marshal(&Event{
		ID:      uuid.NewString(),
		Type:    event,
		Stamp:   time.Now().UTC(),
		Payload: payload,
	})
	if err != nil {
		log.Errorf("Failed to marshal %s event for character %d: %v", event, char, err)
		return
	}

	select {
	case l.out <- b:
	default:
		log.Warnf("Event queue full for character %d, dropping %s event", char, event)
	}
}

// ServeWS upgrades an authenticated request to a websocket and attaches it to
// the character. A newer connection replaces an older one.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, char econ.EntityID) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	conn.SetReadDeadline(time.Now().Add(pongWait))

	l := &link{
		char: char,
		conn: conn,
		out:  make(chan []byte, outBufferSize),
		quit: make(chan struct{}),
	}

	h.mtx.Lock()
	if old := h.links[char]; old != nil {
		old.stop()
	}
	h.links[char] = l
	h.mtx.Unlock()

	log.Debugf("Character %d connected from %s", char, r.RemoteAddr)
	l.wg.Add(3)
	go l.outHandler()
	go l.inHandler()
	go l.pingHandler()
	go func() {
		select {
		case <-h.ctx.Done():
			l.stop()
		case <-l.quit:
		}
		l.wg.Wait()
		h.detach(l)
	}()
	return nil
}

// Disconnect tears down a character's connection, if any.
func (h *Hub) Disconnect(char econ.EntityID) {
	h.mtx.RLock()
	l := h.links[char]
	h.mtx.RUnlock()
	if l != nil {
		l.stop()
	}
}

// detach removes a link from the registry, unless a replacement has already
// taken its slot.
func (h *Hub) detach(l *link) {
	h.mtx.Lock()
	if h.links[l.char] == l {
		delete(h.links, l.char)
	}
	h.mtx.Unlock()
	log.Debugf("Character %d disconnected", l.char)
}

// Online reports the number of connected characters.
func (h *Hub) Online() int {
	h.mtx.RLock()
	defer h.mtx.RUnlock()
	return len(h.links)
}

// link is one character's connection. The hub never reads application data
// from clients; the read pump exists only to process control frames and
// detect disconnection.
type link struct {
	char econ.EntityID
	conn *websocket.Conn
	out  chan []byte

	once sync.Once
	quit chan struct{}
	wg   sync.WaitGroup
}

func (l *link) stop() {
	l.once.Do(func() {
		close(l.quit)
		l.conn.Close()
	})
}

func (l *link) outHandler() {
	defer l.wg.Done()
	defer l.stop()
	for {
		select {
		case b := <-l.out:
			l.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := l.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				log.Debugf("Write error for character %d: %v", l.char, err)
				return
			}
		case <-l.quit:
			return
		}
	}
}

func (l *link) inHandler() {
	defer l.wg.Done()
	defer l.stop()
	for {
		if _, _, err := l.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway,
				websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Debugf("Read error for character %d: %v", l.char, err)
			}
			return
		}
	}
}

func (l *link) pingHandler() {
	defer l.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			if err != nil {
				l.stop()
				return
			}
		case <-l.quit:
			return
		}
	}
}

// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/orbitforge/worldmarket/econ"
)

// attach registers a bare link, bypassing the websocket upgrade.
func attach(h *Hub, char econ.EntityID, queue int) *link {
	l := &link{
		char: char,
		out:  make(chan []byte, queue),
		quit: make(chan struct{}),
	}
	h.mtx.Lock()
	h.links[char] = l
	h.mtx.Unlock()
	return l
}

func TestSendToCharacter(t *testing.T) {
	hub := NewHub(context.Background())

	// An absent character drops the event without blocking.
	hub.SendToCharacter(7, "marketOrderFilled", nil)
	if hub.Online() != 0 {
		t.Fatalf("online = %d", hub.Online())
	}

	l := attach(hub, 7, 2)
	if hub.Online() != 1 {
		t.Fatalf("online = %d", hub.Online())
	}

	hub.SendToCharacter(7, "marketOrderFilled", map[string]uint64{"orderId": 11})

	var ev Event
	select {
	case b := <-l.out:
		if err := json.Unmarshal(b, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
	default:
		t.Fatalf("no event queued")
	}
	if ev.Type != "marketOrderFilled" || ev.ID == "" || ev.Stamp.IsZero() {
		t.Errorf("envelope = %+v", ev)
	}
	payload, ok := ev.Payload.(map[string]any)
	if !ok || payload["orderId"] != float64(11) {
		t.Errorf("payload = %+v", ev.Payload)
	}

	// Other characters' links are never touched.
	hub.SendToCharacter(8, "marketOrderFilled", nil)
	if len(l.out) != 0 {
		t.Errorf("event routed to wrong character")
	}

	// A saturated queue drops events; the sender never blocks.
	for i := 0; i < cap(l.out)+3; i++ {
		hub.SendToCharacter(7, "marketOrderCreated", i)
	}
	if len(l.out) != cap(l.out) {
		t.Errorf("queued = %d, want %d", len(l.out), cap(l.out))
	}
}

func TestDetach(t *testing.T) {
	hub := NewHub(context.Background())
	l := attach(hub, 7, 1)

	hub.detach(l)
	if hub.Online() != 0 {
		t.Fatalf("online after detach = %d", hub.Online())
	}
	hub.SendToCharacter(7, "marketOrderFilled", nil)
	if len(l.out) != 0 {
		t.Errorf("detached link received an event")
	}

	// A stale detach must not remove the character's replacement link.
	old := attach(hub, 9, 1)
	replacement := attach(hub, 9, 1)
	hub.detach(old)
	if hub.Online() != 1 {
		t.Fatalf("online after stale detach = %d", hub.Online())
	}
	hub.SendToCharacter(9, "marketOrderFilled", nil)
	if len(replacement.out) != 1 {
		t.Errorf("replacement link did not receive the event")
	}
}

package mqtt

import "sync"

// presence tracks which controllers have announced themselves online.
// Safe for concurrent use: paho delivers messages on its own goroutine.
type presence struct {
	mu     sync.Mutex
	online map[string]struct{}
}

func newPresence() *presence {
	return &presence{online: make(map[string]struct{})}
}

// update applies one presence message. Only "online" counts; any other
// payload (offline, empty retained clear) removes the controller.
func (p *presence) update(id string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if string(payload) == PresenceOnline {
		p.online[id] = struct{}{}
		return
	}
	delete(p.online, id)
}

func (p *presence) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.online)
}

// reset forgets every controller. Retained presence messages are delivered
// again when the subscription is restored.
func (p *presence) reset() {
	p.mu.Lock()
	p.online = make(map[string]struct{})
	p.mu.Unlock()
}

package statsserver

import (
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/expl-one/livestats/internal/model"
)

const peerBuffer = 32

// peer is one push subscriber (websocket or event stream).
type peer struct {
	id      string
	kind    string
	updates chan model.StatsUpdate
}

// hub fans published updates out to connected peers. A peer whose buffer is
// full is dropped; it reconnects and pulls.
type hub struct {
	mu    sync.Mutex
	peers map[string]*peer
}

func newHub() *hub {
	return &hub{peers: make(map[string]*peer)}
}

func (h *hub) join(kind string) *peer {
	p := &peer{
		id:      uuid.NewString(),
		kind:    kind,
		updates: make(chan model.StatsUpdate, peerBuffer),
	}
	h.mu.Lock()
	h.peers[p.id] = p
	h.mu.Unlock()
	log.Debug().Str("peer", p.id).Str("kind", kind).Msg("peer joined")
	return p
}

func (h *hub) leave(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[p.id]; !ok {
		return
	}
	delete(h.peers, p.id)
	close(p.updates)
	log.Debug().Str("peer", p.id).Str("kind", p.kind).Msg("peer left")
}

func (h *hub) broadcast(u model.StatsUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, p := range h.peers {
		select {
		case p.updates <- u:
		default:
			delete(h.peers, id)
			close(p.updates)
			log.Warn().Str("peer", id).Str("kind", p.kind).Msg("dropping slow peer")
		}
	}
}

func (h *hub) len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, p := range h.peers {
		delete(h.peers, id)
		close(p.updates)
	}
}

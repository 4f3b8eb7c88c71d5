package app

import (
	"sort"
	"sync"

	"github.com/dkeye/Reception/internal/app/guest"
	"github.com/dkeye/Reception/internal/domain"
	"github.com/rs/zerolog/log"
)

// PageFactory builds an unstarted guest page for room.
type PageFactory func(room domain.RoomID) *guest.Page

// Registry keeps exactly one guest page per room. A second request for a
// room reuses the page that is already there, in flight or not.
type Registry struct {
	factory PageFactory

	mu    sync.RWMutex
	pages map[domain.RoomID]*guest.Page
}

func NewRegistry(factory PageFactory) *Registry {
	return &Registry{
		factory: factory,
		pages:   make(map[domain.RoomID]*guest.Page),
	}
}

// GetOrCreate returns the page for room and whether it was just created.
func (r *Registry) GetOrCreate(room domain.RoomID) (*guest.Page, bool) {
	r.mu.RLock()
	p, ok := r.pages[room]
	r.mu.RUnlock()
	if ok {
		return p, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok = r.pages[room]; ok {
		return p, false
	}
	p = r.factory(room)
	r.pages[room] = p
	log.Info().Str("module", "app.registry").Str("room", string(room)).Msg("created guest page")
	return p, true
}

func (r *Registry) Get(room domain.RoomID) (*guest.Page, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pages[room]
	return p, ok
}

// Remove disposes and forgets the page for room.
func (r *Registry) Remove(room domain.RoomID) bool {
	r.mu.Lock()
	p, ok := r.pages[room]
	delete(r.pages, room)
	r.mu.Unlock()
	if !ok {
		return false
	}
	p.Dispose()
	log.Info().Str("module", "app.registry").Str("room", string(room)).Msg("removed guest page")
	return true
}

func (r *Registry) Rooms() []domain.RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.RoomID, 0, len(r.pages))
	for room := range r.pages {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Close disposes every page.
func (r *Registry) Close() {
	r.mu.Lock()
	pages := r.pages
	r.pages = make(map[domain.RoomID]*guest.Page)
	r.mu.Unlock()
	for _, p := range pages {
		p.Dispose()
	}
}

// Package core holds the in-memory room registry and the per-room
// admission/relay state machine.
package core

import (
	"sync"

	"github.com/peergrid/beacon/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry owns the process-wide mapping from room id to active room.
// Rooms are created lazily on first touch and removed as soon as their last
// participant departs.
type Registry struct {
	gw       Gateway
	capacity int

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRegistry(gw Gateway, capacity int) *Registry {
	return &Registry{
		gw:       gw,
		capacity: capacity,
		rooms:    make(map[domain.RoomID]*Room),
	}
}

// GetOrCreate returns the active room for id, constructing it if needed.
// Safe under concurrent first-touch: the insert is double-checked under the
// write lock so two connections racing on a new id get the same room.
func (reg *Registry) GetOrCreate(id domain.RoomID) *Room {
	reg.mu.RLock()
	room, ok := reg.rooms[id]
	reg.mu.RUnlock()
	if ok {
		return room
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok = reg.rooms[id]; !ok {
		room = newRoom(id, reg)
		reg.rooms[id] = room
		log.Info().Str("module", "core.registry").Str("room", string(id)).Msg("room created")
	}
	return room
}

// remove drops r from the registry. Only the exact pointer is deleted: if a
// concurrent first-touch already installed a fresh room under the same id,
// that room is left alone.
func (reg *Registry) remove(r *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if cur, ok := reg.rooms[r.id]; ok && cur == r {
		delete(reg.rooms, r.id)
		log.Info().Str("module", "core.registry").Str("room", string(r.id)).Msg("room deleted")
	}
}

// Len reports the number of active rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// List snapshots the active rooms for status/admin views.
func (reg *Registry) List() []RoomInfo {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]RoomInfo, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		out = append(out, RoomInfo{ID: r.id, ParticipantCount: r.ParticipantCount()})
	}
	return out
}

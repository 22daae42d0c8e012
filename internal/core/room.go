package core

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/peergrid/beacon/internal/domain"
	"github.com/peergrid/beacon/internal/protocol"
)

// Participant is one admitted connection. Owned exclusively by its room for
// the lifetime of the connection.
type Participant struct {
	ID          domain.ClientID
	DisplayName string
	conn        SignalConn
}

// Room coordinates admission, fan-out and departure for one session
// namespace. All operations on the participant list and the pending token
// set are serialized by mu, so every notification observes a consistent
// participant count.
type Room struct {
	id  domain.RoomID
	reg *Registry

	mu           sync.Mutex
	participants []*Participant
	pending      map[string]string // token -> display name
}

func newRoom(id domain.RoomID, reg *Registry) *Room {
	return &Room{
		id:      id,
		reg:     reg,
		pending: make(map[string]string),
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) ParticipantCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.participants)
}

// Reserve issues a one-time admission token bound to displayName. The token
// stays pending until it is redeemed or the room is destroyed; there is no
// separate expiry timer.
func (r *Room) Reserve(displayName string) string {
	token := uuid.NewString()
	r.mu.Lock()
	r.pending[token] = displayName
	r.mu.Unlock()
	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("name", displayName).Msg("admission reserved")
	return token
}

// Admit redeems token and appends a new participant. The token is consumed
// even when the room turns out to be full: admission is first-come at
// connection time, not at reservation time. On success every previously
// connected participant is notified before Admit returns, so existing
// members always learn of a joiner before that joiner can relay anything.
func (r *Room) Admit(token string, conn SignalConn) (*Participant, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.pending[token]
	if !ok {
		return nil, 0, domain.ErrInvalidToken
	}
	delete(r.pending, token)

	if len(r.participants) >= r.reg.capacity {
		return nil, 0, domain.ErrRoomFull
	}

	p := &Participant{
		ID:          domain.NewClientID(),
		DisplayName: name,
		conn:        conn,
	}
	r.participants = append(r.participants, p)
	count := len(r.participants)

	r.fanout(protocol.ParticipantJoined{
		Type:             protocol.KindParticipantJoined,
		NewID:            p.ID,
		NewDisplayName:   name,
		ParticipantCount: count,
	}, p.ID)

	log.Info().Str("module", "core.room").Str("room", string(r.id)).
		Str("client", string(p.ID)).Str("name", name).Int("count", count).Msg("participant admitted")
	return p, count, nil
}

// Depart removes the participant and notifies the remaining ones, or
// deletes the room from the registry when it empties. Idempotent, so the
// connection teardown path may not worry about double invocation.
func (r *Room) Depart(clientID domain.ClientID) {
	r.mu.Lock()
	idx := -1
	for i, p := range r.participants {
		if p.ID == clientID {
			idx = i
			break
		}
	}
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	r.participants = append(r.participants[:idx], r.participants[idx+1:]...)
	count := len(r.participants)

	if count > 0 {
		r.fanout(protocol.ParticipantLeft{
			Type:             protocol.KindParticipantLeft,
			LeftID:           clientID,
			ParticipantCount: count,
		}, "")
		r.mu.Unlock()
		log.Info().Str("module", "core.room").Str("room", string(r.id)).
			Str("client", string(clientID)).Int("count", count).Msg("participant departed")
		return
	}

	// Registry removal happens outside the room lock to keep the
	// Registry -> Room lock order single-directional.
	r.mu.Unlock()
	r.reg.remove(r)
	log.Info().Str("module", "core.room").Str("room", string(r.id)).
		Str("client", string(clientID)).Msg("last participant departed")
}

// BroadcastChat persists the message and delivers it to every current
// participant, the sender included; clients render chat only from the
// relayed copy. Persistence failure is logged and does not block relay.
func (r *Room) BroadcastChat(ctx context.Context, senderID domain.ClientID, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if len(text) > domain.MaxChatLen {
		text = text[:domain.MaxChatLen]
	}

	r.mu.Lock()
	var name string
	for _, p := range r.participants {
		if p.ID == senderID {
			name = p.DisplayName
			break
		}
	}
	r.mu.Unlock()
	if name == "" {
		return
	}

	ts, err := r.reg.gw.InsertChatMessage(ctx, r.id, senderID, name, text)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Str("room", string(r.id)).Msg("chat insert failed")
		ts = time.Now().UTC()
	}

	r.mu.Lock()
	r.fanout(protocol.ChatOut{
		Type:        protocol.KindChat,
		DisplayName: name,
		Message:     text,
		Timestamp:   ts.UTC().Format(time.RFC3339),
	}, "")
	r.mu.Unlock()
}

// RelayDirected forwards frame verbatim to the participant with targetID.
// A missing target means the peer already left; the frame is dropped with
// no error surfaced to the sender.
func (r *Room) RelayDirected(targetID domain.ClientID, frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.ID == targetID {
			if err := p.conn.TrySend(frame); err != nil {
				log.Warn().Err(err).Str("module", "core.room").Str("room", string(r.id)).
					Str("target", string(targetID)).Msg("directed send failed")
			}
			return
		}
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).
		Str("target", string(targetID)).Msg("directed relay target gone")
}

// fanout delivers v to every participant except skip (empty skips nobody).
// A failed send is logged and the loop continues with the remaining
// participants. Caller holds r.mu.
func (r *Room) fanout(v any, skip domain.ClientID) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "core.room").Msg("fanout marshal")
		return
	}
	for _, p := range r.participants {
		if skip != "" && p.ID == skip {
			continue
		}
		if err := p.conn.TrySend(data); err != nil {
			log.Warn().Err(err).Str("module", "core.room").Str("room", string(r.id)).
				Str("client", string(p.ID)).Msg("fanout send dropped")
		}
	}
}

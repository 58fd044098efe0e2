// Package session keeps the logged-in actor of each chat. The engines never
// read it: the presentation layer loads the session and passes the actor explicitly.
package session

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/google/uuid"
)

// Kinds of short references shown to the user instead of UUIDs.
const (
	RefSlot        = "slot"
	RefTeacher     = "teacher"
	RefMeeting     = "meeting"
	RefMeetingSlot = "poll"
	RefCode        = "code"
)

type Session struct {
	Actor     model.Actor          `json:"actor"`
	Refs      map[string]uuid.UUID `json:"refs,omitempty"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Store returns (nil, nil) for a chat without a session.
type Store interface {
	Get(ctx context.Context, chatID int64) (*Session, error)
	Set(ctx context.Context, chatID int64, s *Session) error
	Delete(ctx context.Context, chatID int64) error
}

func New(actor model.Actor) *Session {
	return &Session{
		Actor: actor,
		Refs:  make(map[string]uuid.UUID),
	}
}

// Remember numbers ids from 1 under kind, replacing the previous list of that kind.
func (s *Session) Remember(kind string, ids []uuid.UUID) {
	if s.Refs == nil {
		s.Refs = make(map[string]uuid.UUID)
	}

	prefix := kind + ":"
	for key := range s.Refs {
		if strings.HasPrefix(key, prefix) {
			delete(s.Refs, key)
		}
	}

	for i, id := range ids {
		s.Refs[prefix+strconv.Itoa(i+1)] = id
	}
}

// Resolve turns a short reference ("3") or a full UUID into an id.
func (s *Session) Resolve(kind, ref string) (uuid.UUID, bool) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")

	if id, err := uuid.Parse(ref); err == nil {
		return id, true
	}

	id, ok := s.Refs[kind+":"+ref]
	return id, ok
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Refs = make(map[string]uuid.UUID, len(s.Refs))
	for k, v := range s.Refs {
		cp.Refs[k] = v
	}
	return &cp
}

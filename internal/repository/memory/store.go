// Package memory is an in-process entity store with the same conditional
// update semantics as the PostgreSQL repositories.
package memory

import (
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/google/uuid"
)

// Store holds all entities behind one lock. Every conditional update runs
// under the write lock, which makes it atomic with respect to other callers.
type Store struct {
	mu sync.RWMutex

	codes     map[uuid.UUID]*model.AccessCode
	slots     map[uuid.UUID]*model.AppointmentSlot
	meetings  map[uuid.UUID]*model.Meeting
	mslots    map[uuid.UUID]*model.MeetingSlot
	responses map[responseKey]*model.MeetingResponse

	seq     int64
	created map[uuid.UUID]int64 // порядок вставки встреч

	now func() time.Time
}

type responseKey struct {
	slot      uuid.UUID
	responder uuid.UUID
}

func New() *Store {
	return &Store{
		codes:     make(map[uuid.UUID]*model.AccessCode),
		slots:     make(map[uuid.UUID]*model.AppointmentSlot),
		meetings:  make(map[uuid.UUID]*model.Meeting),
		mslots:    make(map[uuid.UUID]*model.MeetingSlot),
		responses: make(map[responseKey]*model.MeetingResponse),
		created:   make(map[uuid.UUID]int64),
		now:       time.Now,
	}
}

func (s *Store) AccessCodes() *AccessCodes { return &AccessCodes{s} }
func (s *Store) Slots() *Slots             { return &Slots{s} }
func (s *Store) Meetings() *Meetings       { return &Meetings{s} }

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func cloneCode(c *model.AccessCode) *model.AccessCode {
	if c == nil {
		return nil
	}
	cp := *c
	if c.ClassName != nil {
		name := *c.ClassName
		cp.ClassName = &name
	}
	return &cp
}

// slotView returns a copy of the slot with joined codes, like the SQL joins do.
func (s *Store) slotView(slot *model.AppointmentSlot) *model.AppointmentSlot {
	cp := slot.Clone()
	cp.Teacher = cloneCode(s.codes[slot.TeacherCodeID])
	if slot.ParentCodeID != nil {
		cp.Parent = cloneCode(s.codes[*slot.ParentCodeID])
	}
	return cp
}

func (s *Store) meetingHeader(m *model.Meeting) *model.Meeting {
	cp := *m
	cp.Slots = nil
	if m.Description != nil {
		d := *m.Description
		cp.Description = &d
	}
	if m.ConfirmedSlotID != nil {
		id := *m.ConfirmedSlotID
		cp.ConfirmedSlotID = &id
	}
	if m.ResponseDeadline != nil {
		at := *m.ResponseDeadline
		cp.ResponseDeadline = &at
	}
	cp.Creator = cloneCode(s.codes[m.CreatorCodeID])
	return &cp
}

func (s *Store) meetingTree(m *model.Meeting) *model.Meeting {
	tree := s.meetingHeader(m)

	for _, ms := range s.mslots {
		if ms.MeetingID != m.ID {
			continue
		}
		slot := *ms
		slot.Responses = nil
		for _, r := range s.responses {
			if r.SlotID != ms.ID {
				continue
			}
			resp := *r
			resp.Responder = cloneCode(s.codes[r.ResponderCodeID])
			slot.Responses = append(slot.Responses, &resp)
		}
		sort.Slice(slot.Responses, func(i, j int) bool {
			return slot.Responses[i].CreatedAt.Before(slot.Responses[j].CreatedAt)
		})
		tree.Slots = append(tree.Slots, &slot)
	}

	sortMeetingSlots(tree.Slots)
	return tree
}

func sortMeetingSlots(slots []*model.MeetingSlot) {
	sort.SliceStable(slots, func(i, j int) bool {
		if !slots[i].Date.Equal(slots[j].Date) {
			return slots[i].Date.Before(slots[j].Date)
		}
		return slots[i].StartTime < slots[j].StartTime
	})
}

func sortSlots(slots []*model.AppointmentSlot, desc bool) {
	sort.SliceStable(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if desc {
			a, b = b, a
		}
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return a.StartTime < b.StartTime
	})
}

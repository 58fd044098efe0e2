package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/repository"
	"github.com/google/uuid"
)

type Meetings struct {
	s *Store
}

func (r *Meetings) CreateWithSlots(_ context.Context, meeting *model.Meeting, slots []*model.MeetingSlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.codes[meeting.CreatorCodeID]; !ok {
		return fmt.Errorf("create meeting: %w", repository.ErrForeignKeyViolation)
	}
	if _, ok := r.s.meetings[meeting.ID]; ok {
		return fmt.Errorf("create meeting: %w", repository.ErrUniqueViolation)
	}
	for _, slot := range slots {
		if _, ok := r.s.mslots[slot.ID]; ok {
			return fmt.Errorf("create meeting slot: %w", repository.ErrUniqueViolation)
		}
	}

	now := r.s.now()
	meeting.CreatedAt = now
	stored := *meeting
	stored.Slots = nil
	stored.Creator = nil
	r.s.meetings[meeting.ID] = &stored
	r.s.created[meeting.ID] = r.s.nextSeq()

	for _, slot := range slots {
		slot.MeetingID = meeting.ID
		slot.CreatedAt = now
		ms := *slot
		ms.Responses = nil
		r.s.mslots[slot.ID] = &ms
	}

	meeting.Slots = slots
	return nil
}

func (r *Meetings) GetByID(_ context.Context, id uuid.UUID) (*model.Meeting, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.meetings[id]
	if !ok {
		return nil, nil
	}
	return r.s.meetingHeader(m), nil
}

func (r *Meetings) GetTree(_ context.Context, id uuid.UUID) (*model.Meeting, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.meetings[id]
	if !ok {
		return nil, nil
	}
	return r.s.meetingTree(m), nil
}

func (r *Meetings) ListTrees(_ context.Context) ([]*model.Meeting, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.Meeting, 0, len(r.s.meetings))
	for _, m := range r.s.meetings {
		out = append(out, r.s.meetingTree(m))
	}

	// новые первыми
	sort.Slice(out, func(i, j int) bool {
		return r.s.created[out[i].ID] > r.s.created[out[j].ID]
	})
	return out, nil
}

func (r *Meetings) GetSlot(_ context.Context, id uuid.UUID) (*model.MeetingSlot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ms, ok := r.s.mslots[id]
	if !ok {
		return nil, nil
	}
	slot := *ms
	return &slot, nil
}

func (r *Meetings) UpsertResponse(_ context.Context, resp *model.MeetingResponse) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.mslots[resp.SlotID]; !ok {
		return fmt.Errorf("upsert meeting response: %w", repository.ErrForeignKeyViolation)
	}
	if _, ok := r.s.codes[resp.ResponderCodeID]; !ok {
		return fmt.Errorf("upsert meeting response: %w", repository.ErrForeignKeyViolation)
	}

	key := responseKey{slot: resp.SlotID, responder: resp.ResponderCodeID}
	if existing, ok := r.s.responses[key]; ok {
		existing.Status = resp.Status
		resp.ID = existing.ID
		resp.CreatedAt = existing.CreatedAt
		return nil
	}

	resp.CreatedAt = r.s.now()
	stored := *resp
	stored.Responder = nil
	r.s.responses[key] = &stored
	return nil
}

func (r *Meetings) Confirm(_ context.Context, meetingID, slotID uuid.UUID) (*model.Meeting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.meetings[meetingID]
	if !ok || !m.IsPending() {
		return nil, nil
	}
	ms, ok := r.s.mslots[slotID]
	if !ok || ms.MeetingID != meetingID {
		return nil, nil
	}

	id := slotID
	m.Status = model.MeetingStatusConfirmed
	m.ConfirmedSlotID = &id

	return r.s.meetingHeader(m), nil
}

// deleteMeeting removes a meeting with its slots and responses. Caller holds the lock.
func (s *Store) deleteMeeting(id uuid.UUID) {
	for sid, ms := range s.mslots {
		if ms.MeetingID != id {
			continue
		}
		for key := range s.responses {
			if key.slot == sid {
				delete(s.responses, key)
			}
		}
		delete(s.mslots, sid)
	}
	delete(s.meetings, id)
	delete(s.created, id)
}

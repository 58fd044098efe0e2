package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/repository"
	"github.com/google/uuid"
)

type AccessCodes struct {
	s *Store
}

func (r *AccessCodes) Create(_ context.Context, code *model.AccessCode) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.codes {
		if c.Code == code.Code {
			return fmt.Errorf("create access code: %w", repository.ErrUniqueViolation)
		}
	}
	if _, ok := r.s.codes[code.ID]; ok {
		return fmt.Errorf("create access code: %w", repository.ErrUniqueViolation)
	}

	code.CreatedAt = r.s.now()
	r.s.codes[code.ID] = cloneCode(code)
	return nil
}

func (r *AccessCodes) GetByID(_ context.Context, id uuid.UUID) (*model.AccessCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return cloneCode(r.s.codes[id]), nil
}

func (r *AccessCodes) GetActiveByCode(_ context.Context, code string) (*model.AccessCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, c := range r.s.codes {
		if c.Code == code && c.IsActive {
			return cloneCode(c), nil
		}
	}
	return nil, nil
}

func (r *AccessCodes) ListActiveTeachers(_ context.Context, className *string) ([]*model.AccessCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*model.AccessCode
	for _, c := range r.s.codes {
		if c.Profile != model.ProfileTeacher || !c.IsActive {
			continue
		}
		if className != nil && (c.ClassName == nil || *c.ClassName != *className) {
			continue
		}
		out = append(out, cloneCode(c))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (r *AccessCodes) List(_ context.Context) ([]*model.AccessCode, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*model.AccessCode, 0, len(r.s.codes))
	for _, c := range r.s.codes {
		out = append(out, cloneCode(c))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Profile != out[j].Profile {
			return out[i].Profile < out[j].Profile
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out, nil
}

func (r *AccessCodes) SetActive(_ context.Context, id uuid.UUID, active bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.codes[id]
	if !ok {
		return false, nil
	}
	c.IsActive = active
	return true, nil
}

// Delete mirrors the schema: a code holding a booking cannot be deleted,
// everything the code owns is removed with it.
func (r *AccessCodes) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.codes[id]; !ok {
		return false, nil
	}

	for _, slot := range r.s.slots {
		if slot.ParentCodeID != nil && *slot.ParentCodeID == id {
			return false, fmt.Errorf("delete access code: %w", repository.ErrForeignKeyViolation)
		}
	}

	for sid, slot := range r.s.slots {
		if slot.TeacherCodeID == id {
			delete(r.s.slots, sid)
		}
	}
	for mid, m := range r.s.meetings {
		if m.CreatorCodeID == id {
			r.s.deleteMeeting(mid)
		}
	}
	for key := range r.s.responses {
		if key.responder == id {
			delete(r.s.responses, key)
		}
	}

	delete(r.s.codes, id)
	return true, nil
}

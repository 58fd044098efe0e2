package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/google/uuid"
)

// Stores follow one convention: a missing row, or a conditional update whose
// precondition did not hold, is reported as (nil, nil) or false, never as an error.

type AccessCodeStore interface {
	Create(ctx context.Context, code *model.AccessCode) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.AccessCode, error)
	GetActiveByCode(ctx context.Context, code string) (*model.AccessCode, error)
	ListActiveTeachers(ctx context.Context, className *string) ([]*model.AccessCode, error)
	List(ctx context.Context) ([]*model.AccessCode, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type SlotStore interface {
	// CreateBatch is all-or-nothing.
	CreateBatch(ctx context.Context, slots []*model.AppointmentSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.AppointmentSlot, error)
	ListByTeacher(ctx context.Context, teacherID uuid.UUID, from time.Time) ([]*model.AppointmentSlot, error)
	ListAvailable(ctx context.Context, teacherID uuid.UUID, from time.Time, on *time.Time) ([]*model.AppointmentSlot, error)
	ListBookedByParent(ctx context.Context, parentID uuid.UUID, from time.Time) ([]*model.AppointmentSlot, error)
	ListRecent(ctx context.Context, limit int) ([]*model.AppointmentSlot, error)
	DeleteIfAvailable(ctx context.Context, id uuid.UUID) (bool, error)

	// Book sets the booking only if the slot is still available and dated
	// on or after notBefore.
	Book(ctx context.Context, id uuid.UUID, booking model.Booking, notBefore time.Time) (*model.AppointmentSlot, error)
	// Release clears the booking only if the slot is booked, and by holder when holder is set.
	Release(ctx context.Context, id uuid.UUID, holder *uuid.UUID) (*model.AppointmentSlot, error)
	Complete(ctx context.Context, id uuid.UUID) (*model.AppointmentSlot, error)
	CompleteEndedBefore(ctx context.Context, date time.Time, clock model.Clock) (int64, error)
}

type MeetingStore interface {
	// CreateWithSlots is all-or-nothing.
	CreateWithSlots(ctx context.Context, meeting *model.Meeting, slots []*model.MeetingSlot) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Meeting, error)
	GetTree(ctx context.Context, id uuid.UUID) (*model.Meeting, error)
	ListTrees(ctx context.Context) ([]*model.Meeting, error)
	GetSlot(ctx context.Context, id uuid.UUID) (*model.MeetingSlot, error)
	UpsertResponse(ctx context.Context, resp *model.MeetingResponse) error
	// Confirm sets the confirmed slot only while the meeting is pending and
	// the slot belongs to it.
	Confirm(ctx context.Context, meetingID, slotID uuid.UUID) (*model.Meeting, error)
}

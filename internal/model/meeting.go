package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type MeetingStatus string

const (
	MeetingStatusPending   MeetingStatus = "pending"
	MeetingStatusConfirmed MeetingStatus = "confirmed"
	MeetingStatusCancelled MeetingStatus = "cancelled"
)

type ResponseStatus string

const (
	ResponseAvailable   ResponseStatus = "available"
	ResponseUnavailable ResponseStatus = "unavailable"
)

// Valid reports whether s is a known response status.
func (s ResponseStatus) Valid() bool {
	return s == ResponseAvailable || s == ResponseUnavailable
}

// Meeting is an availability poll. ConfirmedSlotID is set exactly when
// Status is confirmed and always points at one of the meeting's own slots.
type Meeting struct {
	ID               uuid.UUID     `json:"id"`
	Title            string        `json:"title"`
	Description      *string       `json:"description"`
	CreatorCodeID    uuid.UUID     `json:"creator_code_id"`
	Status           MeetingStatus `json:"status"`
	ConfirmedSlotID  *uuid.UUID    `json:"confirmed_slot_id"`
	ResponseDeadline *time.Time    `json:"response_deadline"`
	CreatedAt        time.Time     `json:"created_at"`

	Creator *AccessCode    `json:"creator,omitempty"`
	Slots   []*MeetingSlot `json:"slots,omitempty"`
}

type MeetingSlot struct {
	ID        uuid.UUID `json:"id"`
	MeetingID uuid.UUID `json:"meeting_id"`
	Date      time.Time `json:"date"`
	StartTime Clock     `json:"start_time"`
	EndTime   Clock     `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`

	Responses []*MeetingResponse `json:"responses,omitempty"`
}

// MeetingResponse is unique per (SlotID, ResponderCodeID).
type MeetingResponse struct {
	ID              uuid.UUID      `json:"id"`
	SlotID          uuid.UUID      `json:"slot_id"`
	ResponderCodeID uuid.UUID      `json:"responder_code_id"`
	Status          ResponseStatus `json:"status"`
	CreatedAt       time.Time      `json:"created_at"`

	Responder *AccessCode `json:"responder,omitempty"`
}

func (m *Meeting) IsPending() bool { return m.Status == MeetingStatusPending }

// DeadlinePassed reports whether responses are closed at now.
func (m *Meeting) DeadlinePassed(now time.Time) bool {
	return m.ResponseDeadline != nil && now.After(*m.ResponseDeadline)
}

// SlotByID finds one of the meeting's slots.
func (m *Meeting) SlotByID(id uuid.UUID) *MeetingSlot {
	slot, ok := lo.Find(m.Slots, func(s *MeetingSlot) bool { return s.ID == id })
	if !ok {
		return nil
	}
	return slot
}

// AvailableCount counts responses marked available.
func (s *MeetingSlot) AvailableCount() int {
	return lo.CountBy(s.Responses, func(r *MeetingResponse) bool {
		return r.Status == ResponseAvailable
	})
}

// ResponseOf returns the response given by responder, if any.
func (s *MeetingSlot) ResponseOf(responder uuid.UUID) *MeetingResponse {
	r, ok := lo.Find(s.Responses, func(r *MeetingResponse) bool {
		return r.ResponderCodeID == responder
	})
	if !ok {
		return nil
	}
	return r
}

// SlotTally is the per-slot aggregation shown to one viewer.
type SlotTally struct {
	Slot             *MeetingSlot
	AvailableCount   int
	UnavailableCount int
	MyResponse       *ResponseStatus
	Confirmed        bool
}

// PollView is a meeting aggregated for a given viewer.
type PollView struct {
	Meeting    *Meeting
	Slots      []SlotTally
	IsCreator  bool
	CanConfirm bool
}

// Tally aggregates responses of every slot from the viewer's perspective.
func Tally(m *Meeting, viewer uuid.UUID) *PollView {
	view := &PollView{
		Meeting:   m,
		IsCreator: m.CreatorCodeID == viewer,
	}

	view.Slots = lo.Map(m.Slots, func(s *MeetingSlot, _ int) SlotTally {
		t := SlotTally{
			Slot:           s,
			AvailableCount: s.AvailableCount(),
			Confirmed:      m.ConfirmedSlotID != nil && *m.ConfirmedSlotID == s.ID,
		}
		t.UnavailableCount = len(s.Responses) - t.AvailableCount
		if r := s.ResponseOf(viewer); r != nil {
			status := r.Status
			t.MyResponse = &status
		}
		return t
	})

	view.CanConfirm = view.IsCreator && m.IsPending() && lo.SomeBy(view.Slots, func(t SlotTally) bool {
		return t.AvailableCount > 0
	})

	return view
}

package model

import (
	"time"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusAvailable SlotStatus = "available"
	SlotStatusBooked    SlotStatus = "booked"
	SlotStatusCompleted SlotStatus = "completed"
	SlotStatusCancelled SlotStatus = "cancelled"
)

// AppointmentSlot is a bookable interval owned by one teacher code.
// ParentCodeID and BookedAt are both set exactly when Status is booked
// (or completed, which keeps the booking for the record).
type AppointmentSlot struct {
	ID            uuid.UUID  `json:"id"`
	TeacherCodeID uuid.UUID  `json:"teacher_code_id"`
	Date          time.Time  `json:"date"`
	StartTime     Clock      `json:"start_time"`
	EndTime       Clock      `json:"end_time"`
	Status        SlotStatus `json:"status"`
	ParentCodeID  *uuid.UUID `json:"parent_code_id"`
	ChildName     *string    `json:"child_name"`
	BookedAt      *time.Time `json:"booked_at"`
	CreatedAt     time.Time  `json:"created_at"`

	// Заполняются join-запросами, в таблице их нет
	Teacher *AccessCode `json:"teacher,omitempty"`
	Parent  *AccessCode `json:"parent,omitempty"`
}

// Booking is the set of fields written by a successful BookSlot.
type Booking struct {
	ParentCodeID uuid.UUID
	ChildName    *string
	BookedAt     time.Time
}

func (s *AppointmentSlot) IsAvailable() bool { return s.Status == SlotStatusAvailable }
func (s *AppointmentSlot) IsBooked() bool    { return s.Status == SlotStatusBooked }

// BookedBy reports whether the slot is currently booked by the given code.
func (s *AppointmentSlot) BookedBy(codeID uuid.UUID) bool {
	return s.IsBooked() && s.ParentCodeID != nil && *s.ParentCodeID == codeID
}

// StartsAt returns the absolute start of the slot in loc.
func (s *AppointmentSlot) StartsAt(loc *time.Location) time.Time {
	return s.StartTime.On(s.Date, loc)
}

// EndsAt returns the absolute end of the slot in loc.
func (s *AppointmentSlot) EndsAt(loc *time.Location) time.Time {
	return s.EndTime.On(s.Date, loc)
}

// Clone returns a deep copy, used by stores that hand out records.
func (s *AppointmentSlot) Clone() *AppointmentSlot {
	if s == nil {
		return nil
	}
	c := *s
	if s.ParentCodeID != nil {
		id := *s.ParentCodeID
		c.ParentCodeID = &id
	}
	if s.ChildName != nil {
		name := *s.ChildName
		c.ChildName = &name
	}
	if s.BookedAt != nil {
		at := *s.BookedAt
		c.BookedAt = &at
	}
	return &c
}

// Interval is a half-open [Start, End) span of a day.
type Interval struct {
	Start Clock
	End   Clock
}

// SplitRange partitions [start, end) into consecutive intervals of the given
// duration. A trailing remainder shorter than duration is dropped.
func SplitRange(start, end Clock, duration time.Duration) []Interval {
	step := Clock(duration / time.Minute)
	if step <= 0 || end <= start {
		return nil
	}

	var intervals []Interval
	for cur := start; cur+step <= end; cur += step {
		intervals = append(intervals, Interval{Start: cur, End: cur + step})
	}
	return intervals
}

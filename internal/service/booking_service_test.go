package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/apperr"
	"github.com/Freeeeeet/school_scheduler/internal/metrics"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCreateSlotsDropsTrailingRemainder(t *testing.T) {
	f := newFixture(t)
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", strPtr("CM1"))

	slots, err := f.booking.CreateSlots(context.Background(), teacher, CreateSlotsInput{
		Date:     dayD,
		Start:    model.MustClock(9, 0),
		End:      model.MustClock(9, 40),
		Duration: 15 * time.Minute,
	})
	require.NoError(t, err)
	require.Len(t, slots, 2)

	assert.Equal(t, "09:00", slots[0].StartTime.String())
	assert.Equal(t, "09:15", slots[0].EndTime.String())
	assert.Equal(t, "09:15", slots[1].StartTime.String())
	assert.Equal(t, "09:30", slots[1].EndTime.String())

	stored, err := f.booking.TeacherSlots(context.Background(), teacher)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	for _, s := range stored {
		assert.Equal(t, model.SlotStatusAvailable, s.Status)
		assert.Nil(t, s.ParentCodeID)
		assert.Nil(t, s.BookedAt)
	}
}

func TestCreateSlotsValidation(t *testing.T) {
	f := newFixture(t)
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	parent := f.actor(t, model.ProfileParent, "M. Durand", nil)

	valid := CreateSlotsInput{
		Date:     dayD,
		Start:    model.MustClock(9, 0),
		End:      model.MustClock(10, 0),
		Duration: 15 * time.Minute,
	}

	tests := []struct {
		name   string
		actor  model.Actor
		mutate func(in *CreateSlotsInput)
		want   error
	}{
		{"end before start", teacher, func(in *CreateSlotsInput) { in.End = model.MustClock(8, 0) }, apperr.ErrValidation},
		{"end equals start", teacher, func(in *CreateSlotsInput) { in.End = in.Start }, apperr.ErrValidation},
		{"zero duration", teacher, func(in *CreateSlotsInput) { in.Duration = 0 }, apperr.ErrValidation},
		{"negative duration", teacher, func(in *CreateSlotsInput) { in.Duration = -time.Minute }, apperr.ErrValidation},
		{"duration with seconds", teacher, func(in *CreateSlotsInput) { in.Duration = 90 * time.Second }, apperr.ErrValidation},
		{"duration under a minute", teacher, func(in *CreateSlotsInput) { in.Duration = 30 * time.Second }, apperr.ErrValidation},
		{"range shorter than duration", teacher, func(in *CreateSlotsInput) { in.Duration = 2 * time.Hour }, apperr.ErrValidation},
		{"missing date", teacher, func(in *CreateSlotsInput) { in.Date = time.Time{} }, apperr.ErrValidation},
		{"parent cannot create", parent, func(*CreateSlotsInput) {}, apperr.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)

			slots, err := f.booking.CreateSlots(context.Background(), tt.actor, in)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, slots)
		})
	}

	stored, err := f.booking.TeacherSlots(context.Background(), teacher)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestBookSlotNoDoubleBooking(t *testing.T) {
	f := newFixture(t)
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	slot := f.slot(t, teacher, dayD, model.MustClock(10, 0), model.MustClock(10, 15))

	const n = 16
	parents := make([]model.Actor, n)
	for i := range parents {
		parents[i] = f.actor(t, model.ProfileParent, fmt.Sprintf("Parent %d", i), nil)
	}

	var (
		wins    atomic.Int32
		winner  atomic.Value
		g       errgroup.Group
		start   = make(chan struct{})
		results = make([]error, n)
	)

	for i := range parents {
		i := i
		g.Go(func() error {
			<-start
			booked, err := f.booking.BookSlot(context.Background(), parents[i], slot.ID, nil)
			results[i] = err
			if err == nil {
				wins.Add(1)
				winner.Store(*booked.ParentCodeID)
			}
			return nil
		})
	}
	close(start)
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), wins.Load())

	for _, err := range results {
		if err == nil {
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrConflict)

		var taken *SlotTakenError
		require.True(t, errors.As(err, &taken))
		assert.Equal(t, model.SlotStatusBooked, taken.Slot.Status)
		assert.Empty(t, taken.Available)
	}

	current, err := f.store.Slots().GetByID(context.Background(), slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBooked, current.Status)
	require.NotNil(t, current.ParentCodeID)
	assert.Equal(t, winner.Load().(uuid.UUID), *current.ParentCodeID)

	expected := fmt.Sprintf(`
# HELP school_scheduler_bookings_total BookSlot calls by outcome.
# TYPE school_scheduler_bookings_total counter
school_scheduler_bookings_total{outcome="%s"} 1
school_scheduler_bookings_total{outcome="%s"} %d
`, metrics.OutcomeBooked, metrics.OutcomeConflict, n-1)
	assert.NoError(t, testutil.GatherAndCompare(f.rec.Gatherer(), strings.NewReader(expected), "school_scheduler_bookings_total"))
}

func TestBookThenReleaseRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	parent := f.actor(t, model.ProfileParent, "M. Durand", nil)
	slot := f.slot(t, teacher, dayD, model.MustClock(10, 0), model.MustClock(10, 15))

	booked, err := f.booking.BookSlot(ctx, parent, slot.ID, strPtr("  Léa  "))
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBooked, booked.Status)
	require.NotNil(t, booked.ChildName)
	assert.Equal(t, "Léa", *booked.ChildName)
	require.NotNil(t, booked.BookedAt)
	assert.True(t, booked.BookedAt.Equal(testNow))

	released, err := f.booking.ReleaseBooking(ctx, parent, slot.ID)
	require.NoError(t, err)

	assert.Equal(t, model.SlotStatusAvailable, released.Status)
	assert.Nil(t, released.ParentCodeID)
	assert.Nil(t, released.ChildName)
	assert.Nil(t, released.BookedAt)
	assert.Equal(t, slot.StartTime, released.StartTime)
	assert.Equal(t, slot.EndTime, released.EndTime)
	assert.True(t, slot.Date.Equal(released.Date))
}

func TestDeleteSlotGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	other := f.actor(t, model.ProfileTeacher, "M. Petit", nil)
	parent := f.actor(t, model.ProfileParent, "M. Durand", nil)

	slot := f.slot(t, teacher, dayD, model.MustClock(10, 0), model.MustClock(10, 15))
	_, err := f.booking.BookSlot(ctx, parent, slot.ID, nil)
	require.NoError(t, err)

	err = f.booking.DeleteSlot(ctx, teacher, slot.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	current, err := f.store.Slots().GetByID(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusBooked, current.Status)
	assert.True(t, current.BookedBy(parent.CodeID))

	free := f.slot(t, teacher, dayD, model.MustClock(11, 0), model.MustClock(11, 15))
	assert.ErrorIs(t, f.booking.DeleteSlot(ctx, other, free.ID), apperr.ErrForbidden)
	assert.ErrorIs(t, f.booking.DeleteSlot(ctx, parent, free.ID), apperr.ErrForbidden)
	require.NoError(t, f.booking.DeleteSlot(ctx, teacher, free.ID))
	assert.ErrorIs(t, f.booking.DeleteSlot(ctx, teacher, free.ID), apperr.ErrNotFound)
}

func TestBookingEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	parentA := f.actor(t, model.ProfileParent, "Parent A", nil)
	parentB := f.actor(t, model.ProfileParent, "Parent B", nil)

	slot := f.slot(t, teacher, dayD, model.MustClock(10, 0), model.MustClock(10, 15))
	assert.Equal(t, model.SlotStatusAvailable, slot.Status)

	booked, err := f.booking.BookSlot(ctx, parentA, slot.ID, nil)
	require.NoError(t, err)
	assert.True(t, booked.BookedBy(parentA.CodeID))

	_, err = f.booking.BookSlot(ctx, parentB, slot.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	released, err := f.booking.ReleaseBooking(ctx, parentA, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusAvailable, released.Status)
	assert.Nil(t, released.ParentCodeID)

	booked, err = f.booking.BookSlot(ctx, parentB, slot.ID, nil)
	require.NoError(t, err)
	assert.True(t, booked.BookedBy(parentB.CodeID))
}

func TestBookSlotRefusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	parent := f.actor(t, model.ProfileParent, "M. Durand", nil)

	past := f.slot(t, teacher, testNow.AddDate(0, 0, -1), model.MustClock(10, 0), model.MustClock(10, 15))
	_, err := f.booking.BookSlot(ctx, parent, past.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.booking.BookSlot(ctx, parent, uuid.New(), nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	future := f.slot(t, teacher, dayD, model.MustClock(10, 0), model.MustClock(10, 15))
	_, err = f.booking.BookSlot(ctx, teacher, future.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	expected := fmt.Sprintf(`
# HELP school_scheduler_bookings_total BookSlot calls by outcome.
# TYPE school_scheduler_bookings_total counter
school_scheduler_bookings_total{outcome="%s"} 2
`, metrics.OutcomeRejected)
	assert.NoError(t, testutil.GatherAndCompare(f.rec.Gatherer(), strings.NewReader(expected), "school_scheduler_bookings_total"))
}

func TestConflictCarriesFreshAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	parentA := f.actor(t, model.ProfileParent, "Parent A", nil)
	parentB := f.actor(t, model.ProfileParent, "Parent B", nil)

	slot := f.slot(t, teacher, dayD, model.MustClock(10, 0), model.MustClock(10, 15))
	other := f.slot(t, teacher, dayD, model.MustClock(10, 15), model.MustClock(10, 30))

	_, err := f.booking.BookSlot(ctx, parentA, slot.ID, nil)
	require.NoError(t, err)

	_, err = f.booking.BookSlot(ctx, parentB, slot.ID, nil)
	var taken *SlotTakenError
	require.ErrorAs(t, err, &taken)
	assert.True(t, taken.Slot.BookedBy(parentA.CodeID))
	require.Len(t, taken.Available, 1)
	assert.Equal(t, other.ID, taken.Available[0].ID)
}

func TestReleaseBookingPermissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	otherTeacher := f.actor(t, model.ProfileTeacher, "M. Petit", nil)
	holder := f.actor(t, model.ProfileParent, "Parent A", nil)
	stranger := f.actor(t, model.ProfileParent, "Parent B", nil)
	partner := f.actor(t, model.ProfilePartner, "Mairie", nil)
	admin := f.actor(t, model.ProfileAdmin, "Direction", nil)

	slot := f.slot(t, teacher, dayD, model.MustClock(10, 0), model.MustClock(10, 15))

	_, err := f.booking.ReleaseBooking(ctx, holder, slot.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState, "not booked yet")

	book := func() {
		t.Helper()
		_, err := f.booking.BookSlot(ctx, holder, slot.ID, nil)
		require.NoError(t, err)
	}

	book()
	for _, denied := range []model.Actor{stranger, partner, otherTeacher} {
		_, err := f.booking.ReleaseBooking(ctx, denied, slot.ID)
		assert.ErrorIs(t, err, apperr.ErrForbidden, denied.DisplayName)
	}

	for _, allowed := range []model.Actor{holder, teacher, admin} {
		released, err := f.booking.ReleaseBooking(ctx, allowed, slot.ID)
		require.NoError(t, err, allowed.DisplayName)
		assert.True(t, released.IsAvailable())
		book()
	}
}

func TestCompleteSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	parent := f.actor(t, model.ProfileParent, "M. Durand", nil)

	slot := f.slot(t, teacher, dayD, model.MustClock(10, 0), model.MustClock(10, 15))

	_, err := f.booking.CompleteSlot(ctx, teacher, slot.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.booking.BookSlot(ctx, parent, slot.ID, nil)
	require.NoError(t, err)

	completed, err := f.booking.CompleteSlot(ctx, teacher, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SlotStatusCompleted, completed.Status)
	assert.True(t, completed.ParentCodeID != nil && *completed.ParentCodeID == parent.CodeID)

	bookings, err := f.booking.ParentBookings(ctx, parent)
	require.NoError(t, err)
	assert.Empty(t, bookings)

	_, err = f.booking.ReleaseBooking(ctx, parent, slot.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCompletePastBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	parent := f.actor(t, model.ProfileParent, "M. Durand", nil)

	today := model.DateOf(testNow)
	early := f.slot(t, teacher, today, model.MustClock(9, 0), model.MustClock(9, 15))
	late := f.slot(t, teacher, today, model.MustClock(11, 0), model.MustClock(11, 15))
	free := f.slot(t, teacher, today, model.MustClock(9, 15), model.MustClock(9, 30))

	for _, s := range []*model.AppointmentSlot{early, late} {
		_, err := f.booking.BookSlot(ctx, parent, s.ID, nil)
		require.NoError(t, err)
	}

	f.setNow(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	n, err := f.booking.CompletePastBookings(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got := func(id uuid.UUID) model.SlotStatus {
		s, err := f.store.Slots().GetByID(ctx, id)
		require.NoError(t, err)
		return s.Status
	}
	assert.Equal(t, model.SlotStatusCompleted, got(early.ID))
	assert.Equal(t, model.SlotStatusBooked, got(late.ID))
	assert.Equal(t, model.SlotStatusAvailable, got(free.ID))
}

func TestSlotQueries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	parent := f.actor(t, model.ProfileParent, "M. Durand", nil)
	admin := f.actor(t, model.ProfileAdmin, "Direction", nil)

	f.slot(t, teacher, testNow.AddDate(0, 0, -2), model.MustClock(9, 0), model.MustClock(9, 15))
	later := f.slot(t, teacher, dayD.AddDate(0, 0, 1), model.MustClock(9, 0), model.MustClock(9, 15))
	second := f.slot(t, teacher, dayD, model.MustClock(14, 0), model.MustClock(14, 15))
	first := f.slot(t, teacher, dayD, model.MustClock(9, 0), model.MustClock(9, 15))

	mine, err := f.booking.TeacherSlots(ctx, teacher)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, later.ID}, []uuid.UUID{mine[0].ID, mine[1].ID, mine[2].ID})

	_, err = f.booking.BookSlot(ctx, parent, second.ID, nil)
	require.NoError(t, err)

	onD, err := f.booking.AvailableSlots(ctx, teacher.CodeID, &dayD)
	require.NoError(t, err)
	require.Len(t, onD, 1)
	assert.Equal(t, first.ID, onD[0].ID)

	all, err := f.booking.AvailableSlots(ctx, teacher.CodeID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = f.booking.AvailableSlots(ctx, parent.CodeID, nil)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	bookings, err := f.booking.ParentBookings(ctx, parent)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, second.ID, bookings[0].ID)
	assert.Equal(t, "Mme Martin", bookings[0].Teacher.DisplayName)

	recent, err := f.booking.RecentSlots(ctx, admin, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, later.ID, recent[0].ID)

	_, err = f.booking.RecentSlots(ctx, teacher, 0)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

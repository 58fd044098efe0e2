package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/apperr"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func twoSlotMeeting(t *testing.T, f *fixture, creator model.Actor) *model.Meeting {
	t.Helper()

	meeting, err := f.meetings.CreateMeeting(context.Background(), creator, CreateMeetingInput{
		Title: "Conseil de classe",
		Candidates: []CandidateSlot{
			{Date: dayD, Start: model.MustClock(17, 0), End: model.MustClock(18, 0)},
			{Date: dayD.AddDate(0, 0, 1), Start: model.MustClock(17, 0), End: model.MustClock(18, 0)},
		},
	})
	require.NoError(t, err)
	require.Len(t, meeting.Slots, 2)

	return meeting
}

func TestCreateMeeting(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)

	meeting, err := f.meetings.CreateMeeting(ctx, teacher, CreateMeetingInput{
		Title:       "  Réunion parents-profs  ",
		Description: strPtr("   "),
		Candidates: []CandidateSlot{
			{Date: dayD, Start: model.MustClock(17, 0), End: model.MustClock(18, 0)},
			{Start: model.MustClock(9, 0), End: model.MustClock(10, 0)},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Réunion parents-profs", meeting.Title)
	assert.Nil(t, meeting.Description)
	assert.Equal(t, model.MeetingStatusPending, meeting.Status)
	assert.Nil(t, meeting.ConfirmedSlotID)
	require.Len(t, meeting.Slots, 1, "candidate without date is dropped")

	view, err := f.meetings.GetMeeting(ctx, teacher, meeting.ID)
	require.NoError(t, err)
	assert.True(t, view.IsCreator)
	assert.False(t, view.CanConfirm)
	require.Len(t, view.Slots, 1)
	assert.Equal(t, meeting.Slots[0].ID, view.Slots[0].Slot.ID)
}

func TestCreateMeetingValidation(t *testing.T) {
	f := newFixture(t)
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	parent := f.actor(t, model.ProfileParent, "M. Durand", nil)

	candidate := CandidateSlot{Date: dayD, Start: model.MustClock(17, 0), End: model.MustClock(18, 0)}

	tests := []struct {
		name  string
		actor model.Actor
		in    CreateMeetingInput
		want  error
	}{
		{"blank title", teacher, CreateMeetingInput{Title: "   ", Candidates: []CandidateSlot{candidate}}, apperr.ErrValidation},
		{"no candidates", teacher, CreateMeetingInput{Title: "Réunion"}, apperr.ErrValidation},
		{
			"only incomplete candidates", teacher,
			CreateMeetingInput{Title: "Réunion", Candidates: []CandidateSlot{{Start: model.MustClock(9, 0), End: model.MustClock(10, 0)}}},
			apperr.ErrValidation,
		},
		{
			"end not after start", teacher,
			CreateMeetingInput{Title: "Réunion", Candidates: []CandidateSlot{{Date: dayD, Start: model.MustClock(10, 0), End: model.MustClock(10, 0)}}},
			apperr.ErrValidation,
		},
		{"parent cannot create", parent, CreateMeetingInput{Title: "Réunion", Candidates: []CandidateSlot{candidate}}, apperr.ErrForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meeting, err := f.meetings.CreateMeeting(context.Background(), tt.actor, tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, meeting)
		})
	}

	meetings, err := f.meetings.ListMeetings(context.Background(), teacher)
	require.NoError(t, err)
	assert.Empty(t, meetings)
}

func TestRespondToSlotUpsert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	partner := f.actor(t, model.ProfilePartner, "Mairie", nil)

	meeting := twoSlotMeeting(t, f, creator)
	slotID := meeting.Slots[0].ID

	first, err := f.meetings.RespondToSlot(ctx, partner, slotID, model.ResponseAvailable)
	require.NoError(t, err)
	second, err := f.meetings.RespondToSlot(ctx, partner, slotID, model.ResponseAvailable)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	view, err := f.meetings.GetMeeting(ctx, partner, meeting.ID)
	require.NoError(t, err)
	require.Len(t, view.Slots[0].Slot.Responses, 1)
	assert.Equal(t, model.ResponseAvailable, view.Slots[0].Slot.Responses[0].Status)
	assert.Equal(t, 1, view.Slots[0].AvailableCount)
	require.NotNil(t, view.Slots[0].MyResponse)
	assert.Equal(t, model.ResponseAvailable, *view.Slots[0].MyResponse)

	_, err = f.meetings.RespondToSlot(ctx, partner, slotID, model.ResponseUnavailable)
	require.NoError(t, err)

	view, err = f.meetings.GetMeeting(ctx, creator, meeting.ID)
	require.NoError(t, err)
	require.Len(t, view.Slots[0].Slot.Responses, 1)
	assert.Equal(t, 0, view.Slots[0].AvailableCount)
	assert.Equal(t, 1, view.Slots[0].UnavailableCount)
	assert.Nil(t, view.Slots[0].MyResponse)
}

func TestRespondToSlotRefusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	parent := f.actor(t, model.ProfileParent, "M. Durand", nil)

	deadline := testNow.Add(time.Hour)
	meeting, err := f.meetings.CreateMeeting(ctx, creator, CreateMeetingInput{
		Title:            "Sortie scolaire",
		ResponseDeadline: &deadline,
		Candidates:       []CandidateSlot{{Date: dayD, Start: model.MustClock(9, 0), End: model.MustClock(10, 0)}},
	})
	require.NoError(t, err)
	slotID := meeting.Slots[0].ID

	_, err = f.meetings.RespondToSlot(ctx, creator, slotID, "maybe")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.meetings.RespondToSlot(ctx, parent, slotID, model.ResponseAvailable)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.meetings.RespondToSlot(ctx, creator, uuid.New(), model.ResponseAvailable)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.meetings.RespondToSlot(ctx, creator, slotID, model.ResponseAvailable)
	require.NoError(t, err)

	f.setNow(deadline.Add(time.Minute))
	_, err = f.meetings.RespondToSlot(ctx, creator, slotID, model.ResponseUnavailable)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestConfirmSlotExclusivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	partner := f.actor(t, model.ProfilePartner, "Mairie", nil)

	meeting := twoSlotMeeting(t, f, creator)
	slotA, slotB := meeting.Slots[0].ID, meeting.Slots[1].ID

	for _, id := range []uuid.UUID{slotA, slotB} {
		_, err := f.meetings.RespondToSlot(ctx, partner, id, model.ResponseAvailable)
		require.NoError(t, err)
	}

	confirmed, err := f.meetings.ConfirmSlot(ctx, creator, meeting.ID, slotA)
	require.NoError(t, err)
	assert.Equal(t, model.MeetingStatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedSlotID)
	assert.Equal(t, slotA, *confirmed.ConfirmedSlotID)

	_, err = f.meetings.ConfirmSlot(ctx, creator, meeting.ID, slotB)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	view, err := f.meetings.GetMeeting(ctx, creator, meeting.ID)
	require.NoError(t, err)
	assert.Equal(t, slotA, *view.Meeting.ConfirmedSlotID)
	assert.True(t, view.Slots[0].Confirmed)
	assert.False(t, view.Slots[1].Confirmed)
	assert.False(t, view.CanConfirm)
}

func TestConfirmSlotPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	partner := f.actor(t, model.ProfilePartner, "Mairie", nil)

	meeting := twoSlotMeeting(t, f, creator)
	other := twoSlotMeeting(t, f, creator)
	slotA := meeting.Slots[0].ID

	_, err := f.meetings.ConfirmSlot(ctx, creator, meeting.ID, slotA)
	assert.ErrorIs(t, err, apperr.ErrInvalidState, "no available response yet")

	_, err = f.meetings.RespondToSlot(ctx, partner, slotA, model.ResponseAvailable)
	require.NoError(t, err)

	_, err = f.meetings.ConfirmSlot(ctx, partner, meeting.ID, slotA)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.meetings.ConfirmSlot(ctx, creator, meeting.ID, other.Slots[0].ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.meetings.ConfirmSlot(ctx, creator, uuid.New(), slotA)
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	view, err := f.meetings.GetMeeting(ctx, creator, meeting.ID)
	require.NoError(t, err)
	assert.True(t, view.CanConfirm)
	assert.Equal(t, model.MeetingStatusPending, view.Meeting.Status)
}

func TestConfirmSlotConcurrent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creator := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	partner := f.actor(t, model.ProfilePartner, "Mairie", nil)

	meeting := twoSlotMeeting(t, f, creator)
	for _, s := range meeting.Slots {
		_, err := f.meetings.RespondToSlot(ctx, partner, s.ID, model.ResponseAvailable)
		require.NoError(t, err)
	}

	var (
		wins  atomic.Int32
		g     errgroup.Group
		start = make(chan struct{})
	)
	for i := 0; i < 8; i++ {
		slotID := meeting.Slots[i%2].ID
		g.Go(func() error {
			<-start
			_, err := f.meetings.ConfirmSlot(ctx, creator, meeting.ID, slotID)
			if err == nil {
				wins.Add(1)
				return nil
			}
			if !assert.ErrorIs(t, err, apperr.ErrInvalidState) {
				return err
			}
			return nil
		})
	}
	close(start)
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), wins.Load())
}

func TestListMeetingsNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	teacher := f.actor(t, model.ProfileTeacher, "Mme Martin", nil)
	admin := f.actor(t, model.ProfileAdmin, "Direction", nil)
	parent := f.actor(t, model.ProfileParent, "M. Durand", nil)

	older := twoSlotMeeting(t, f, teacher)
	newer := twoSlotMeeting(t, f, admin)

	views, err := f.meetings.ListMeetings(ctx, teacher)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, newer.ID, views[0].Meeting.ID)
	assert.Equal(t, older.ID, views[1].Meeting.ID)
	assert.False(t, views[0].IsCreator)
	assert.True(t, views[1].IsCreator)
	assert.Equal(t, "Direction", views[0].Meeting.Creator.DisplayName)

	_, err = f.meetings.ListMeetings(ctx, parent)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

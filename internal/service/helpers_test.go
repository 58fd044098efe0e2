package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/metrics"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	dayD    = time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	store    *memory.Store
	rec      *metrics.Recorder
	access   *AccessService
	booking  *BookingService
	meetings *MeetingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.New()
	rec := metrics.New()
	logger := zap.NewNop()

	f := &fixture{
		store:    store,
		rec:      rec,
		access:   NewAccessService(store.AccessCodes(), logger),
		booking:  NewBookingService(store.Slots(), store.AccessCodes(), rec, time.UTC, logger),
		meetings: NewMeetingService(store.Meetings(), rec, time.UTC, logger),
	}
	f.setNow(testNow)

	return f
}

func (f *fixture) setNow(now time.Time) {
	f.booking.now = func() time.Time { return now }
	f.meetings.now = func() time.Time { return now }
}

func (f *fixture) actor(t *testing.T, profile model.Profile, name string, className *string) model.Actor {
	t.Helper()

	code := &model.AccessCode{
		ID:          uuid.New(),
		Code:        strings.ToUpper(uuid.NewString()[:8]),
		Profile:     profile,
		DisplayName: name,
		ClassName:   className,
		IsActive:    true,
	}
	require.NoError(t, f.store.AccessCodes().Create(context.Background(), code))

	return code.Actor()
}

// slot creates one available slot for teacher on date.
func (f *fixture) slot(t *testing.T, teacher model.Actor, date time.Time, start, end model.Clock) *model.AppointmentSlot {
	t.Helper()

	slot, err := f.booking.CreateSlot(context.Background(), teacher, CreateSlotInput{
		Date:  date,
		Start: start,
		End:   end,
	})
	require.NoError(t, err)

	return slot
}

func strPtr(s string) *string { return &s }

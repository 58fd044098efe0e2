package repository_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/repository"
	"github.com/Freeeeeet/school_scheduler/internal/repository/memory"
	"github.com/Freeeeeet/school_scheduler/internal/service"
	"github.com/Freeeeeet/school_scheduler/migrations"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stores struct {
	codes    service.AccessCodeStore
	slots    service.SlotStore
	meetings service.MeetingStore
}

var (
	day       = time.Date(2099, 3, 5, 0, 0, 0, 0, time.UTC)
	notBefore = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

// backends возвращает memory и, если задан TEST_DB_DSN, PostgreSQL
func backends(t *testing.T) map[string]func(t *testing.T) stores {
	t.Helper()

	out := map[string]func(t *testing.T) stores{
		"memory": func(t *testing.T) stores {
			s := memory.New()
			return stores{codes: s.AccessCodes(), slots: s.Slots(), meetings: s.Meetings()}
		},
	}

	if dsn := os.Getenv("TEST_DB_DSN"); dsn != "" {
		out["postgres"] = func(t *testing.T) stores {
			return postgresStores(t, dsn)
		}
	}
	return out
}

func postgresStores(t *testing.T, dsn string) stores {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	db := stdlib.OpenDBFromPool(pool)
	t.Cleanup(func() { _ = db.Close() })

	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	require.NoError(t, err)
	_, err = provider.Up(ctx)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `TRUNCATE meeting_responses, meeting_slots, meetings, appointment_slots, access_codes CASCADE`)
	require.NoError(t, err)

	return stores{
		codes:    repository.NewAccessCodeRepository(pool),
		slots:    repository.NewSlotRepository(pool),
		meetings: repository.NewMeetingRepository(pool),
	}
}

func newCode(t *testing.T, s stores, profile model.Profile, code, name string, className *string) *model.AccessCode {
	t.Helper()

	ac := &model.AccessCode{
		ID:          uuid.New(),
		Code:        code,
		Profile:     profile,
		DisplayName: name,
		ClassName:   className,
		IsActive:    true,
	}
	require.NoError(t, s.codes.Create(context.Background(), ac))
	return ac
}

func strPtr(s string) *string { return &s }

func TestAccessCodeStore(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			teacher := newCode(t, s, model.ProfileTeacher, "PROF1", "Mme Martin", strPtr("CM1"))
			newCode(t, s, model.ProfileTeacher, "PROF2", "M. Petit", strPtr("CE2"))

			err := s.codes.Create(ctx, &model.AccessCode{
				ID: uuid.New(), Code: "PROF1", Profile: model.ProfileParent, DisplayName: "Doublon", IsActive: true,
			})
			assert.ErrorIs(t, err, repository.ErrUniqueViolation)

			got, err := s.codes.GetActiveByCode(ctx, "PROF1")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, teacher.ID, got.ID)

			cm1, err := s.codes.ListActiveTeachers(ctx, strPtr("CM1"))
			require.NoError(t, err)
			require.Len(t, cm1, 1)
			assert.Equal(t, "Mme Martin", cm1[0].DisplayName)

			all, err := s.codes.ListActiveTeachers(ctx, nil)
			require.NoError(t, err)
			assert.Len(t, all, 2)

			ok, err := s.codes.SetActive(ctx, teacher.ID, false)
			require.NoError(t, err)
			assert.True(t, ok)

			got, err = s.codes.GetActiveByCode(ctx, "PROF1")
			require.NoError(t, err)
			assert.Nil(t, got)

			ok, err = s.codes.SetActive(ctx, uuid.New(), true)
			require.NoError(t, err)
			assert.False(t, ok)

			missing, err := s.codes.GetByID(ctx, uuid.New())
			require.NoError(t, err)
			assert.Nil(t, missing)
		})
	}
}

func TestSlotStore(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			teacher := newCode(t, s, model.ProfileTeacher, "PROF1", "Mme Martin", strPtr("CM1"))
			parent := newCode(t, s, model.ProfileParent, "PAR1", "Famille Dupont", strPtr("CM1"))
			other := newCode(t, s, model.ProfileParent, "PAR2", "Famille Leroy", strPtr("CM1"))

			slots := []*model.AppointmentSlot{
				{ID: uuid.New(), TeacherCodeID: teacher.ID, Date: day, StartTime: model.MustClock(9, 0), EndTime: model.MustClock(9, 15), Status: model.SlotStatusAvailable},
				{ID: uuid.New(), TeacherCodeID: teacher.ID, Date: day, StartTime: model.MustClock(9, 15), EndTime: model.MustClock(9, 30), Status: model.SlotStatusAvailable},
			}
			require.NoError(t, s.slots.CreateBatch(ctx, slots))

			available, err := s.slots.ListAvailable(ctx, teacher.ID, notBefore, &day)
			require.NoError(t, err)
			require.Len(t, available, 2)
			assert.Equal(t, model.MustClock(9, 0), available[0].StartTime)
			assert.Equal(t, "Mme Martin", available[0].Teacher.DisplayName)

			// Ровно одна из конкурирующих броней проходит
			const racers = 8
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				winners int
			)
			for i := 0; i < racers; i++ {
				holder := parent.ID
				if i%2 == 1 {
					holder = other.ID
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					booked, err := s.slots.Book(ctx, slots[0].ID, model.Booking{ParentCodeID: holder, BookedAt: time.Now()}, notBefore)
					assert.NoError(t, err)
					if booked != nil {
						mu.Lock()
						winners++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, 1, winners)

			booked, err := s.slots.GetByID(ctx, slots[0].ID)
			require.NoError(t, err)
			require.NotNil(t, booked.ParentCodeID)
			require.NotNil(t, booked.Parent)
			holder := *booked.ParentCodeID
			stranger := parent.ID
			if holder == parent.ID {
				stranger = other.ID
			}

			// Слот в прошлом не бронируется
			late, err := s.slots.Book(ctx, slots[1].ID, model.Booking{ParentCodeID: parent.ID, BookedAt: time.Now()}, day.AddDate(0, 0, 1))
			require.NoError(t, err)
			assert.Nil(t, late)

			released, err := s.slots.Release(ctx, slots[0].ID, &stranger)
			require.NoError(t, err)
			assert.Nil(t, released)

			_, err = s.codes.Delete(ctx, holder)
			assert.ErrorIs(t, err, repository.ErrForeignKeyViolation)

			released, err = s.slots.Release(ctx, slots[0].ID, &holder)
			require.NoError(t, err)
			require.NotNil(t, released)
			assert.Equal(t, model.SlotStatusAvailable, released.Status)
			assert.Nil(t, released.ParentCodeID)
			assert.Nil(t, released.BookedAt)

			again, err := s.slots.Release(ctx, slots[0].ID, nil)
			require.NoError(t, err)
			assert.Nil(t, again)

			_, err = s.slots.Book(ctx, slots[1].ID, model.Booking{ParentCodeID: parent.ID, ChildName: strPtr("Léa"), BookedAt: time.Now()}, notBefore)
			require.NoError(t, err)

			mine, err := s.slots.ListBookedByParent(ctx, parent.ID, notBefore)
			require.NoError(t, err)
			require.Len(t, mine, 1)
			assert.Equal(t, "Léa", *mine[0].ChildName)

			deleted, err := s.slots.DeleteIfAvailable(ctx, slots[1].ID)
			require.NoError(t, err)
			assert.False(t, deleted)

			n, err := s.slots.CompleteEndedBefore(ctx, day, model.MustClock(9, 30))
			require.NoError(t, err)
			assert.EqualValues(t, 1, n)

			done, err := s.slots.Complete(ctx, slots[1].ID)
			require.NoError(t, err)
			assert.Nil(t, done)

			deleted, err = s.slots.DeleteIfAvailable(ctx, slots[0].ID)
			require.NoError(t, err)
			assert.True(t, deleted)

			recent, err := s.slots.ListRecent(ctx, 10)
			require.NoError(t, err)
			require.Len(t, recent, 1)
			assert.Equal(t, model.SlotStatusCompleted, recent[0].Status)
		})
	}
}

func TestMeetingStore(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			creator := newCode(t, s, model.ProfileTeacher, "PROF1", "Mme Martin", strPtr("CM1"))
			partner := newCode(t, s, model.ProfilePartner, "PART1", "Mairie", nil)

			meeting := &model.Meeting{ID: uuid.New(), Title: "Conseil", CreatorCodeID: creator.ID, Status: model.MeetingStatusPending}
			mslots := []*model.MeetingSlot{
				{ID: uuid.New(), Date: day, StartTime: model.MustClock(17, 0), EndTime: model.MustClock(18, 0)},
				{ID: uuid.New(), Date: day.AddDate(0, 0, 1), StartTime: model.MustClock(17, 0), EndTime: model.MustClock(18, 0)},
			}
			require.NoError(t, s.meetings.CreateWithSlots(ctx, meeting, mslots))

			otherMeeting := &model.Meeting{ID: uuid.New(), Title: "Kermesse", CreatorCodeID: partner.ID, Status: model.MeetingStatusPending}
			foreign := []*model.MeetingSlot{{ID: uuid.New(), Date: day, StartTime: model.MustClock(10, 0), EndTime: model.MustClock(11, 0)}}
			require.NoError(t, s.meetings.CreateWithSlots(ctx, otherMeeting, foreign))

			first := &model.MeetingResponse{ID: uuid.New(), SlotID: mslots[1].ID, ResponderCodeID: partner.ID, Status: model.ResponseUnavailable}
			require.NoError(t, s.meetings.UpsertResponse(ctx, first))

			second := &model.MeetingResponse{ID: uuid.New(), SlotID: mslots[1].ID, ResponderCodeID: partner.ID, Status: model.ResponseAvailable}
			require.NoError(t, s.meetings.UpsertResponse(ctx, second))
			assert.Equal(t, first.ID, second.ID)

			tree, err := s.meetings.GetTree(ctx, meeting.ID)
			require.NoError(t, err)
			require.Len(t, tree.Slots, 2)
			require.Len(t, tree.Slots[1].Responses, 1)
			assert.Equal(t, model.ResponseAvailable, tree.Slots[1].Responses[0].Status)
			assert.Equal(t, "Mairie", tree.Slots[1].Responses[0].Responder.DisplayName)

			confirmed, err := s.meetings.Confirm(ctx, meeting.ID, foreign[0].ID)
			require.NoError(t, err)
			assert.Nil(t, confirmed)

			confirmed, err = s.meetings.Confirm(ctx, meeting.ID, mslots[1].ID)
			require.NoError(t, err)
			require.NotNil(t, confirmed)
			assert.Equal(t, model.MeetingStatusConfirmed, confirmed.Status)
			assert.Equal(t, mslots[1].ID, *confirmed.ConfirmedSlotID)

			confirmed, err = s.meetings.Confirm(ctx, meeting.ID, mslots[0].ID)
			require.NoError(t, err)
			assert.Nil(t, confirmed)

			trees, err := s.meetings.ListTrees(ctx)
			require.NoError(t, err)
			require.Len(t, trees, 2)
			assert.Equal(t, "Kermesse", trees[0].Title)

			slot, err := s.meetings.GetSlot(ctx, uuid.New())
			require.NoError(t, err)
			assert.Nil(t, slot)
		})
	}
}

package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/apperr"
	"github.com/Freeeeeet/school_scheduler/internal/metrics"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultRecentLimit = 50

// SlotTakenError is returned by BookSlot when another booking won the race.
// It carries the state re-read after the failed update so the caller can
// show fresh availability.
type SlotTakenError struct {
	Slot      *model.AppointmentSlot
	Available []*model.AppointmentSlot
	err       *apperr.Error
}

func (e *SlotTakenError) Error() string { return e.err.Error() }
func (e *SlotTakenError) Unwrap() error { return e.err }

type BookingService struct {
	slots   SlotStore
	codes   AccessCodeStore
	metrics *metrics.Recorder
	logger  *zap.Logger
	calendar
}

func NewBookingService(
	slots SlotStore,
	codes AccessCodeStore,
	rec *metrics.Recorder,
	loc *time.Location,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		slots:    slots,
		codes:    codes,
		metrics:  rec,
		logger:   logger,
		calendar: newCalendar(loc),
	}
}

type CreateSlotsInput struct {
	Date     time.Time     `validate:"required"`
	Start    model.Clock   `validate:"min=0,max=1439"`
	End      model.Clock   `validate:"min=0,max=1439,gtfield=Start"`
	Duration time.Duration `validate:"gt=0"`
}

// CreateSlots нарезает диапазон на слоты длиной Duration.
// Хвост короче Duration отбрасывается.
func (s *BookingService) CreateSlots(ctx context.Context, actor model.Actor, in CreateSlotsInput) ([]*model.AppointmentSlot, error) {
	const op = "create slots"

	if err := requireProfile(op, actor, model.ProfileTeacher); err != nil {
		return nil, err
	}
	if err := validateInput(op, in); err != nil {
		return nil, err
	}
	if in.Duration%time.Minute != 0 {
		return nil, apperr.Validation(op, "duration %s is not a whole number of minutes", in.Duration)
	}

	intervals := model.SplitRange(in.Start, in.End, in.Duration)
	if len(intervals) == 0 {
		return nil, apperr.Validation(op, "range %s-%s is shorter than %s", in.Start, in.End, in.Duration)
	}

	date := model.DateOf(in.Date)
	slots := make([]*model.AppointmentSlot, 0, len(intervals))
	for _, iv := range intervals {
		slots = append(slots, newSlot(actor.CodeID, date, iv))
	}

	return s.create(ctx, op, actor, slots)
}

type CreateSlotInput struct {
	Date  time.Time   `validate:"required"`
	Start model.Clock `validate:"min=0,max=1439"`
	End   model.Clock `validate:"min=0,max=1439,gtfield=Start"`
}

// CreateSlot создаёт один слот вручную
func (s *BookingService) CreateSlot(ctx context.Context, actor model.Actor, in CreateSlotInput) (*model.AppointmentSlot, error) {
	const op = "create slot"

	if err := requireProfile(op, actor, model.ProfileTeacher); err != nil {
		return nil, err
	}
	if err := validateInput(op, in); err != nil {
		return nil, err
	}

	slot := newSlot(actor.CodeID, model.DateOf(in.Date), model.Interval{Start: in.Start, End: in.End})
	created, err := s.create(ctx, op, actor, []*model.AppointmentSlot{slot})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func (s *BookingService) create(ctx context.Context, op string, actor model.Actor, slots []*model.AppointmentSlot) ([]*model.AppointmentSlot, error) {
	if err := s.slots.CreateBatch(ctx, slots); err != nil {
		return nil, storeErr(op, err)
	}

	s.metrics.SlotsCreated(len(slots))
	s.logger.Info("Slots created",
		zap.String("teacher_id", actor.CodeID.String()),
		zap.String("date", model.FormatDate(slots[0].Date)),
		zap.Int("count", len(slots)),
	)

	return slots, nil
}

func newSlot(teacherID uuid.UUID, date time.Time, iv model.Interval) *model.AppointmentSlot {
	return &model.AppointmentSlot{
		ID:            uuid.New(),
		TeacherCodeID: teacherID,
		Date:          date,
		StartTime:     iv.Start,
		EndTime:       iv.End,
		Status:        model.SlotStatusAvailable,
	}
}

// DeleteSlot удаляет свободный слот. Занятый слот удалить нельзя.
func (s *BookingService) DeleteSlot(ctx context.Context, actor model.Actor, slotID uuid.UUID) error {
	const op = "delete slot"

	if err := requireProfile(op, actor, model.ProfileTeacher, model.ProfileAdmin); err != nil {
		return err
	}

	slot, err := s.getSlot(ctx, op, slotID)
	if err != nil {
		return err
	}
	if actor.Is(model.ProfileTeacher) && slot.TeacherCodeID != actor.CodeID {
		return apperr.Forbidden(op, "slot belongs to another teacher")
	}
	if !slot.IsAvailable() {
		return apperr.InvalidState(op, "slot is %s", slot.Status)
	}

	deleted, err := s.slots.DeleteIfAvailable(ctx, slotID)
	if err != nil {
		return storeErr(op, err)
	}
	if !deleted {
		// кто-то успел забронировать или удалить между чтением и удалением
		current, err := s.getSlot(ctx, op, slotID)
		if err != nil {
			return err
		}
		return apperr.InvalidState(op, "slot is %s", current.Status)
	}

	s.logger.Info("Slot deleted",
		zap.String("slot_id", slotID.String()),
		zap.String("actor_id", actor.CodeID.String()),
	)

	return nil
}

// BookSlot бронирует слот для родителя. Бронь ставится одним условным
// обновлением, поэтому из параллельных запросов на один слот выигрывает ровно один.
func (s *BookingService) BookSlot(ctx context.Context, actor model.Actor, slotID uuid.UUID, childName *string) (*model.AppointmentSlot, error) {
	const op = "book slot"

	if err := requireProfile(op, actor, model.ProfileParent); err != nil {
		return nil, err
	}

	today := s.today()
	booked, err := s.slots.Book(ctx, slotID, model.Booking{
		ParentCodeID: actor.CodeID,
		ChildName:    trimmed(childName),
		BookedAt:     s.now().UTC(),
	}, today)
	if err != nil {
		s.metrics.Booking(metrics.OutcomeError)
		return nil, storeErr(op, err)
	}

	if booked == nil {
		return nil, s.bookingRejected(ctx, op, slotID, today)
	}

	s.metrics.Booking(metrics.OutcomeBooked)
	s.logger.Info("Slot booked",
		zap.String("slot_id", slotID.String()),
		zap.String("parent_id", actor.CodeID.String()),
		zap.String("teacher_id", booked.TeacherCodeID.String()),
		zap.String("date", model.FormatDate(booked.Date)),
		zap.Stringer("start", booked.StartTime),
	)

	return booked, nil
}

// bookingRejected перечитывает слот после неудачного условного обновления
// и объясняет, почему бронь не прошла.
func (s *BookingService) bookingRejected(ctx context.Context, op string, slotID uuid.UUID, today time.Time) error {
	current, err := s.getSlot(ctx, op, slotID)
	if err != nil {
		s.metrics.Booking(bookingOutcome(err))
		return err
	}
	if current.Date.Before(today) {
		s.metrics.Booking(metrics.OutcomeRejected)
		return apperr.InvalidState(op, "slot date %s is in the past", model.FormatDate(current.Date))
	}

	available, err := s.slots.ListAvailable(ctx, current.TeacherCodeID, today, nil)
	if err != nil {
		s.metrics.Booking(metrics.OutcomeError)
		return storeErr(op, err)
	}

	s.metrics.Booking(metrics.OutcomeConflict)
	return &SlotTakenError{
		Slot:      current,
		Available: available,
		err:       apperr.Conflict(op, "slot is no longer available"),
	}
}

func bookingOutcome(err error) string {
	if apperr.KindOf(err) == apperr.KindStoreUnavailable {
		return metrics.OutcomeError
	}
	return metrics.OutcomeRejected
}

type releaseGrant struct {
	holder *uuid.UUID
	err    error
}

// releasePolicy decides, per profile, who may release a booking.
type releasePolicy struct {
	op    string
	actor model.Actor
	slot  *model.AppointmentSlot
}

func (p releasePolicy) Admin() releaseGrant { return releaseGrant{} }

func (p releasePolicy) Teacher() releaseGrant {
	if p.slot.TeacherCodeID != p.actor.CodeID {
		return releaseGrant{err: apperr.Forbidden(p.op, "slot belongs to another teacher")}
	}
	return releaseGrant{}
}

func (p releasePolicy) Parent() releaseGrant {
	if !p.slot.BookedBy(p.actor.CodeID) {
		return releaseGrant{err: apperr.Forbidden(p.op, "slot is not booked by you")}
	}
	holder := p.actor.CodeID
	return releaseGrant{holder: &holder}
}

func (p releasePolicy) Partner() releaseGrant {
	return releaseGrant{err: apperr.Forbidden(p.op, "not allowed for profile %q", p.actor.Profile)}
}

// ReleaseBooking снимает бронь и возвращает слот в available
func (s *BookingService) ReleaseBooking(ctx context.Context, actor model.Actor, slotID uuid.UUID) (*model.AppointmentSlot, error) {
	const op = "release booking"

	slot, err := s.getSlot(ctx, op, slotID)
	if err != nil {
		return nil, err
	}
	if !slot.IsBooked() {
		return nil, apperr.InvalidState(op, "slot is %s", slot.Status)
	}

	grant, err := model.VisitProfile[releaseGrant](actor.Profile, releasePolicy{op: op, actor: actor, slot: slot})
	if err != nil {
		return nil, apperr.Forbidden(op, "%v", err)
	}
	if grant.err != nil {
		return nil, grant.err
	}

	released, err := s.slots.Release(ctx, slotID, grant.holder)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if released == nil {
		current, err := s.getSlot(ctx, op, slotID)
		if err != nil {
			return nil, err
		}
		return nil, apperr.InvalidState(op, "slot is %s", current.Status)
	}

	s.metrics.Released()
	s.logger.Info("Booking released",
		zap.String("slot_id", slotID.String()),
		zap.String("actor_id", actor.CodeID.String()),
		zap.String("profile", string(actor.Profile)),
	)

	return released, nil
}

// CompleteSlot отмечает состоявшуюся встречу
func (s *BookingService) CompleteSlot(ctx context.Context, actor model.Actor, slotID uuid.UUID) (*model.AppointmentSlot, error) {
	const op = "complete slot"

	if err := requireProfile(op, actor, model.ProfileTeacher, model.ProfileAdmin); err != nil {
		return nil, err
	}

	slot, err := s.getSlot(ctx, op, slotID)
	if err != nil {
		return nil, err
	}
	if actor.Is(model.ProfileTeacher) && slot.TeacherCodeID != actor.CodeID {
		return nil, apperr.Forbidden(op, "slot belongs to another teacher")
	}

	completed, err := s.slots.Complete(ctx, slotID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if completed == nil {
		current, err := s.getSlot(ctx, op, slotID)
		if err != nil {
			return nil, err
		}
		return nil, apperr.InvalidState(op, "slot is %s", current.Status)
	}

	s.metrics.Completed(1)
	s.logger.Info("Slot completed", zap.String("slot_id", slotID.String()))

	return completed, nil
}

// CompletePastBookings переводит в completed все брони, время которых прошло
func (s *BookingService) CompletePastBookings(ctx context.Context) (int64, error) {
	const op = "complete past bookings"

	now := s.now().In(s.loc)
	n, err := s.slots.CompleteEndedBefore(ctx, model.DateOf(now), model.ClockOf(now))
	if err != nil {
		return 0, storeErr(op, err)
	}

	if n > 0 {
		s.metrics.Completed(n)
		s.logger.Info("Past bookings completed", zap.Int64("count", n))
	}

	return n, nil
}

// TeacherSlots слоты учителя с сегодняшнего дня
func (s *BookingService) TeacherSlots(ctx context.Context, actor model.Actor) ([]*model.AppointmentSlot, error) {
	const op = "list teacher slots"

	if err := requireProfile(op, actor, model.ProfileTeacher); err != nil {
		return nil, err
	}

	slots, err := s.slots.ListByTeacher(ctx, actor.CodeID, s.today())
	if err != nil {
		return nil, storeErr(op, err)
	}
	return slots, nil
}

// AvailableSlots свободные слоты учителя, опционально на одну дату
func (s *BookingService) AvailableSlots(ctx context.Context, teacherID uuid.UUID, on *time.Time) ([]*model.AppointmentSlot, error) {
	const op = "list available slots"

	teacher, err := s.codes.GetByID(ctx, teacherID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if teacher == nil || !teacher.IsActive || teacher.Profile != model.ProfileTeacher {
		return nil, apperr.NotFound(op, "teacher %s not found", teacherID)
	}

	if on != nil {
		d := model.DateOf(*on)
		on = &d
	}

	slots, err := s.slots.ListAvailable(ctx, teacherID, s.today(), on)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return slots, nil
}

// ParentBookings текущие брони родителя
func (s *BookingService) ParentBookings(ctx context.Context, actor model.Actor) ([]*model.AppointmentSlot, error) {
	const op = "list parent bookings"

	if err := requireProfile(op, actor, model.ProfileParent); err != nil {
		return nil, err
	}

	slots, err := s.slots.ListBookedByParent(ctx, actor.CodeID, s.today())
	if err != nil {
		return nil, storeErr(op, err)
	}
	return slots, nil
}

// RecentSlots последние слоты для администратора
func (s *BookingService) RecentSlots(ctx context.Context, actor model.Actor, limit int) ([]*model.AppointmentSlot, error) {
	const op = "list recent slots"

	if err := requireProfile(op, actor, model.ProfileAdmin); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	slots, err := s.slots.ListRecent(ctx, limit)
	if err != nil {
		return nil, storeErr(op, err)
	}
	return slots, nil
}

func (s *BookingService) getSlot(ctx context.Context, op string, id uuid.UUID) (*model.AppointmentSlot, error) {
	slot, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if slot == nil {
		return nil, apperr.NotFound(op, "slot %s not found", id)
	}
	return slot, nil
}

package service

import (
	"context"
	"strings"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/apperr"
	"github.com/Freeeeeet/school_scheduler/internal/metrics"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Profiles that take part in meeting polls.
var meetingProfiles = []model.Profile{model.ProfileTeacher, model.ProfilePartner, model.ProfileAdmin}

type MeetingService struct {
	meetings MeetingStore
	metrics  *metrics.Recorder
	logger   *zap.Logger
	calendar
}

func NewMeetingService(
	meetings MeetingStore,
	rec *metrics.Recorder,
	loc *time.Location,
	logger *zap.Logger,
) *MeetingService {
	return &MeetingService{
		meetings: meetings,
		metrics:  rec,
		logger:   logger,
		calendar: newCalendar(loc),
	}
}

// CandidateSlot is one proposed time. Entries with a zero Date are dropped.
type CandidateSlot struct {
	Date  time.Time   `validate:"required"`
	Start model.Clock `validate:"min=0,max=1439"`
	End   model.Clock `validate:"min=0,max=1439,gtfield=Start"`
}

type CreateMeetingInput struct {
	Title            string          `validate:"required,max=200"`
	Description      *string         `validate:"omitempty,max=2000"`
	ResponseDeadline *time.Time      `validate:"omitempty"`
	Candidates       []CandidateSlot `validate:"min=1,dive"`
}

// CreateMeeting создаёт опрос со всеми вариантами времени за одну транзакцию
func (s *MeetingService) CreateMeeting(ctx context.Context, actor model.Actor, in CreateMeetingInput) (*model.Meeting, error) {
	const op = "create meeting"

	if err := requireProfile(op, actor, meetingProfiles...); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Description = trimmed(in.Description)
	in.Candidates = lo.Filter(in.Candidates, func(c CandidateSlot, _ int) bool {
		return !c.Date.IsZero()
	})

	if err := validateInput(op, in); err != nil {
		return nil, err
	}

	meeting := &model.Meeting{
		ID:               uuid.New(),
		Title:            in.Title,
		Description:      in.Description,
		CreatorCodeID:    actor.CodeID,
		Status:           model.MeetingStatusPending,
		ResponseDeadline: in.ResponseDeadline,
	}

	slots := lo.Map(in.Candidates, func(c CandidateSlot, _ int) *model.MeetingSlot {
		return &model.MeetingSlot{
			ID:        uuid.New(),
			MeetingID: meeting.ID,
			Date:      model.DateOf(c.Date),
			StartTime: c.Start,
			EndTime:   c.End,
		}
	})

	if err := s.meetings.CreateWithSlots(ctx, meeting, slots); err != nil {
		return nil, storeErr(op, err)
	}
	meeting.Slots = slots

	s.logger.Info("Meeting created",
		zap.String("meeting_id", meeting.ID.String()),
		zap.String("creator_id", actor.CodeID.String()),
		zap.Int("slots", len(slots)),
	)

	return meeting, nil
}

// RespondToSlot записывает доступность участника. Повторный ответ
// перезаписывает предыдущий.
func (s *MeetingService) RespondToSlot(ctx context.Context, actor model.Actor, slotID uuid.UUID, status model.ResponseStatus) (*model.MeetingResponse, error) {
	const op = "respond to slot"

	if err := requireProfile(op, actor, meetingProfiles...); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.Validation(op, "unknown response %q", status)
	}

	slot, err := s.meetings.GetSlot(ctx, slotID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if slot == nil {
		return nil, apperr.NotFound(op, "meeting slot %s not found", slotID)
	}

	meeting, err := s.getMeeting(ctx, op, slot.MeetingID)
	if err != nil {
		return nil, err
	}
	if meeting.DeadlinePassed(s.now()) {
		return nil, apperr.InvalidState(op, "responses closed at %s", meeting.ResponseDeadline.In(s.loc).Format(time.DateTime))
	}

	resp := &model.MeetingResponse{
		ID:              uuid.New(),
		SlotID:          slotID,
		ResponderCodeID: actor.CodeID,
		Status:          status,
	}
	if err := s.meetings.UpsertResponse(ctx, resp); err != nil {
		return nil, storeErr(op, err)
	}

	s.logger.Info("Meeting response saved",
		zap.String("meeting_id", meeting.ID.String()),
		zap.String("slot_id", slotID.String()),
		zap.String("responder_id", actor.CodeID.String()),
		zap.String("status", string(status)),
	)

	return resp, nil
}

// ConfirmSlot фиксирует выбранный вариант. Подтвердить может только автор,
// только pending встречу и только слот хотя бы с одним "available".
func (s *MeetingService) ConfirmSlot(ctx context.Context, actor model.Actor, meetingID, slotID uuid.UUID) (*model.Meeting, error) {
	const op = "confirm slot"

	if err := requireProfile(op, actor, meetingProfiles...); err != nil {
		return nil, err
	}

	tree, err := s.meetings.GetTree(ctx, meetingID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if tree == nil {
		return nil, apperr.NotFound(op, "meeting %s not found", meetingID)
	}
	if tree.CreatorCodeID != actor.CodeID {
		return nil, apperr.Forbidden(op, "only the creator can confirm")
	}
	if !tree.IsPending() {
		s.metrics.Confirmation(metrics.OutcomeRejected)
		return nil, apperr.InvalidState(op, "meeting is %s", tree.Status)
	}

	slot := tree.SlotByID(slotID)
	if slot == nil {
		return nil, apperr.NotFound(op, "slot %s is not part of meeting %s", slotID, meetingID)
	}
	if slot.AvailableCount() == 0 {
		s.metrics.Confirmation(metrics.OutcomeRejected)
		return nil, apperr.InvalidState(op, "nobody is available for this slot")
	}

	confirmed, err := s.meetings.Confirm(ctx, meetingID, slotID)
	if err != nil {
		s.metrics.Confirmation(metrics.OutcomeError)
		return nil, storeErr(op, err)
	}
	if confirmed == nil {
		// другой запрос подтвердил встречу раньше
		s.metrics.Confirmation(metrics.OutcomeConflict)
		return nil, apperr.InvalidState(op, "meeting is no longer pending")
	}

	s.metrics.Confirmation(metrics.OutcomeConfirmed)
	s.logger.Info("Meeting confirmed",
		zap.String("meeting_id", meetingID.String()),
		zap.String("slot_id", slotID.String()),
	)

	return confirmed, nil
}

// ListMeetings все встречи, новые первыми, с агрегатами для actor
func (s *MeetingService) ListMeetings(ctx context.Context, actor model.Actor) ([]*model.PollView, error) {
	const op = "list meetings"

	if err := requireProfile(op, actor, meetingProfiles...); err != nil {
		return nil, err
	}

	meetings, err := s.meetings.ListTrees(ctx)
	if err != nil {
		return nil, storeErr(op, err)
	}

	return lo.Map(meetings, func(m *model.Meeting, _ int) *model.PollView {
		return model.Tally(m, actor.CodeID)
	}), nil
}

// GetMeeting одна встреча с агрегатами для actor
func (s *MeetingService) GetMeeting(ctx context.Context, actor model.Actor, meetingID uuid.UUID) (*model.PollView, error) {
	const op = "get meeting"

	if err := requireProfile(op, actor, meetingProfiles...); err != nil {
		return nil, err
	}

	tree, err := s.meetings.GetTree(ctx, meetingID)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if tree == nil {
		return nil, apperr.NotFound(op, "meeting %s not found", meetingID)
	}

	return model.Tally(tree, actor.CodeID), nil
}

func (s *MeetingService) getMeeting(ctx context.Context, op string, id uuid.UUID) (*model.Meeting, error) {
	meeting, err := s.meetings.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(op, err)
	}
	if meeting == nil {
		return nil, apperr.NotFound(op, "meeting %s not found", id)
	}
	return meeting, nil
}

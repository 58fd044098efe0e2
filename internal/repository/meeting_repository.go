package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/lo"
)

const (
	meetingColumns = `
		m.id, m.title, m.description, m.creator_code_id, m.status,
		m.confirmed_slot_id, m.response_deadline, m.created_at,
		c.profile, c.display_name`

	meetingJoins = `JOIN access_codes c ON c.id = m.creator_code_id`
)

type MeetingRepository struct {
	*base.Repository
}

func NewMeetingRepository(pool *pgxpool.Pool) *MeetingRepository {
	return &MeetingRepository{Repository: base.NewRepository(pool)}
}

// CreateWithSlots создаёт встречу и её варианты времени в одной транзакции
func (r *MeetingRepository) CreateWithSlots(ctx context.Context, meeting *model.Meeting, slots []*model.MeetingSlot) error {
	meetingQuery := `
		INSERT INTO meetings (id, title, description, creator_code_id, status, response_deadline)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	slotQuery := `
		INSERT INTO meeting_slots (id, meeting_id, date, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	return r.InTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(
			ctx, meetingQuery,
			meeting.ID,
			meeting.Title,
			meeting.Description,
			meeting.CreatorCodeID,
			meeting.Status,
			meeting.ResponseDeadline,
		).Scan(&meeting.CreatedAt)
		if err != nil {
			return classify("create meeting", err)
		}

		for _, slot := range slots {
			err := tx.QueryRow(
				ctx, slotQuery,
				slot.ID,
				meeting.ID,
				slot.Date,
				pgClock(slot.StartTime),
				pgClock(slot.EndTime),
			).Scan(&slot.CreatedAt)
			if err != nil {
				return classify("create meeting slot", err)
			}
		}

		meeting.Slots = slots
		return nil
	})
}

// GetByID получает только саму встречу, без слотов
func (r *MeetingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings m ` + meetingJoins + ` WHERE m.id = $1`

	meeting, err := scanMeeting(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get meeting by id: %w", err)
	}

	return meeting, nil
}

// GetTree получает встречу вместе со слотами и ответами
func (r *MeetingRepository) GetTree(ctx context.Context, id uuid.UUID) (*model.Meeting, error) {
	meeting, err := r.GetByID(ctx, id)
	if err != nil || meeting == nil {
		return meeting, err
	}

	if err := r.loadSlots(ctx, []*model.Meeting{meeting}); err != nil {
		return nil, err
	}

	return meeting, nil
}

// ListTrees получает все встречи (новые первыми) со слотами и ответами
func (r *MeetingRepository) ListTrees(ctx context.Context) ([]*model.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings m ` + meetingJoins + ` ORDER BY m.created_at DESC`

	rows, err := r.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	var meetings []*model.Meeting
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, meeting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}

	if err := r.loadSlots(ctx, meetings); err != nil {
		return nil, err
	}

	return meetings, nil
}

// GetSlot получает вариант времени по ID
func (r *MeetingRepository) GetSlot(ctx context.Context, id uuid.UUID) (*model.MeetingSlot, error) {
	query := `
		SELECT id, meeting_id, date, start_time, end_time, created_at
		FROM meeting_slots
		WHERE id = $1
	`

	slot, err := scanMeetingSlot(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get meeting slot: %w", err)
	}

	return slot, nil
}

// UpsertResponse создаёт ответ или перезаписывает статус существующего
// для пары (slot_id, responder_code_id)
func (r *MeetingRepository) UpsertResponse(ctx context.Context, resp *model.MeetingResponse) error {
	query := `
		INSERT INTO meeting_responses (id, slot_id, responder_code_id, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (slot_id, responder_code_id) DO UPDATE SET status = EXCLUDED.status
		RETURNING id, created_at
	`

	err := r.Pool().QueryRow(
		ctx, query,
		resp.ID,
		resp.SlotID,
		resp.ResponderCodeID,
		resp.Status,
	).Scan(&resp.ID, &resp.CreatedAt)

	if err != nil {
		return classify("upsert meeting response", err)
	}

	return nil
}

// Confirm подтверждает встречу: compare-and-set по статусу pending.
// nil, nil если встреча уже не pending или слот ей не принадлежит.
func (r *MeetingRepository) Confirm(ctx context.Context, meetingID, slotID uuid.UUID) (*model.Meeting, error) {
	query := `
		WITH m AS (
			UPDATE meetings
			SET status = 'confirmed', confirmed_slot_id = $2
			WHERE id = $1
			  AND status = 'pending'
			  AND EXISTS (SELECT 1 FROM meeting_slots WHERE id = $2 AND meeting_id = $1)
			RETURNING *
		)
		SELECT ` + meetingColumns + ` FROM m ` + meetingJoins

	meeting, err := scanMeeting(r.Pool().QueryRow(ctx, query, meetingID, slotID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("confirm meeting: %w", err)
	}

	return meeting, nil
}

// loadSlots подгружает два уровня: слоты встреч и ответы на слоты
func (r *MeetingRepository) loadSlots(ctx context.Context, meetings []*model.Meeting) error {
	if len(meetings) == 0 {
		return nil
	}

	meetingIDs := lo.Map(meetings, func(m *model.Meeting, _ int) uuid.UUID { return m.ID })

	rows, err := r.Pool().Query(ctx, `
		SELECT id, meeting_id, date, start_time, end_time, created_at
		FROM meeting_slots
		WHERE meeting_id = ANY($1)
		ORDER BY date, start_time
	`, meetingIDs)
	if err != nil {
		return fmt.Errorf("list meeting slots: %w", err)
	}

	var slots []*model.MeetingSlot
	for rows.Next() {
		slot, err := scanMeetingSlot(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan meeting slot: %w", err)
		}
		slots = append(slots, slot)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list meeting slots: %w", err)
	}

	if err := r.loadResponses(ctx, slots); err != nil {
		return err
	}

	byMeeting := lo.GroupBy(slots, func(s *model.MeetingSlot) uuid.UUID { return s.MeetingID })
	for _, m := range meetings {
		m.Slots = byMeeting[m.ID]
	}

	return nil
}

func (r *MeetingRepository) loadResponses(ctx context.Context, slots []*model.MeetingSlot) error {
	if len(slots) == 0 {
		return nil
	}

	slotIDs := lo.Map(slots, func(s *model.MeetingSlot, _ int) uuid.UUID { return s.ID })

	rows, err := r.Pool().Query(ctx, `
		SELECT r.id, r.slot_id, r.responder_code_id, r.status, r.created_at,
		       a.profile, a.display_name
		FROM meeting_responses r
		JOIN access_codes a ON a.id = r.responder_code_id
		WHERE r.slot_id = ANY($1)
		ORDER BY r.created_at
	`, slotIDs)
	if err != nil {
		return fmt.Errorf("list meeting responses: %w", err)
	}
	defer rows.Close()

	bySlot := make(map[uuid.UUID][]*model.MeetingResponse, len(slots))
	for rows.Next() {
		var (
			resp      model.MeetingResponse
			responder model.AccessCode
		)
		err := rows.Scan(
			&resp.ID,
			&resp.SlotID,
			&resp.ResponderCodeID,
			&resp.Status,
			&resp.CreatedAt,
			&responder.Profile,
			&responder.DisplayName,
		)
		if err != nil {
			return fmt.Errorf("scan meeting response: %w", err)
		}
		responder.ID = resp.ResponderCodeID
		resp.Responder = &responder
		bySlot[resp.SlotID] = append(bySlot[resp.SlotID], &resp)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list meeting responses: %w", err)
	}

	for _, s := range slots {
		s.Responses = bySlot[s.ID]
	}

	return nil
}

func scanMeeting(row pgx.Row) (*model.Meeting, error) {
	var (
		meeting model.Meeting
		creator model.AccessCode
	)

	err := row.Scan(
		&meeting.ID,
		&meeting.Title,
		&meeting.Description,
		&meeting.CreatorCodeID,
		&meeting.Status,
		&meeting.ConfirmedSlotID,
		&meeting.ResponseDeadline,
		&meeting.CreatedAt,
		&creator.Profile,
		&creator.DisplayName,
	)
	if err != nil {
		return nil, err
	}

	creator.ID = meeting.CreatorCodeID
	meeting.Creator = &creator

	return &meeting, nil
}

func scanMeetingSlot(row pgx.Row) (*model.MeetingSlot, error) {
	var (
		slot       model.MeetingSlot
		start, end pgtype.Time
	)

	err := row.Scan(
		&slot.ID,
		&slot.MeetingID,
		&slot.Date,
		&start,
		&end,
		&slot.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	slot.StartTime = fromPgClock(start)
	slot.EndTime = fromPgClock(end)

	return &slot, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	slotColumns = `
		s.id, s.teacher_code_id, s.date, s.start_time, s.end_time, s.status,
		s.parent_code_id, s.child_name, s.booked_at, s.created_at,
		t.display_name, t.class_name, p.display_name, p.class_name`

	slotJoins = `
		JOIN access_codes t ON t.id = s.teacher_code_id
		LEFT JOIN access_codes p ON p.id = s.parent_code_id`
)

type SlotRepository struct {
	*base.Repository
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{Repository: base.NewRepository(pool)}
}

// CreateBatch создаёт все слоты в одной транзакции: либо все, либо ни одного
func (r *SlotRepository) CreateBatch(ctx context.Context, slots []*model.AppointmentSlot) error {
	query := `
		INSERT INTO appointment_slots (id, teacher_code_id, date, start_time, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`

	return r.InTx(ctx, func(tx pgx.Tx) error {
		for _, slot := range slots {
			err := tx.QueryRow(
				ctx, query,
				slot.ID,
				slot.TeacherCodeID,
				slot.Date,
				pgClock(slot.StartTime),
				pgClock(slot.EndTime),
				slot.Status,
			).Scan(&slot.CreatedAt)
			if err != nil {
				return classify("create slot", err)
			}
		}
		return nil
	})
}

// GetByID получает слот по ID вместе с учителем и родителем
func (r *SlotRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.AppointmentSlot, error) {
	query := `SELECT ` + slotColumns + ` FROM appointment_slots s ` + slotJoins + ` WHERE s.id = $1`

	slot, err := scanSlot(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get slot by id: %w", err)
	}

	return slot, nil
}

// ListByTeacher получает слоты учителя начиная с даты from
func (r *SlotRepository) ListByTeacher(ctx context.Context, teacherID uuid.UUID, from time.Time) ([]*model.AppointmentSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM appointment_slots s ` + slotJoins + `
		WHERE s.teacher_code_id = $1
		  AND s.date >= $2
		ORDER BY s.date, s.start_time
	`

	return r.list(ctx, "list slots by teacher", query, teacherID, from)
}

// ListAvailable получает свободные слоты учителя, при on != nil только на эту дату
func (r *SlotRepository) ListAvailable(ctx context.Context, teacherID uuid.UUID, from time.Time, on *time.Time) ([]*model.AppointmentSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM appointment_slots s ` + slotJoins + `
		WHERE s.teacher_code_id = $1
		  AND s.status = 'available'
		  AND s.date >= $2
		  AND ($3::date IS NULL OR s.date = $3)
		ORDER BY s.date, s.start_time
	`

	return r.list(ctx, "list available slots", query, teacherID, from, on)
}

// ListBookedByParent получает активные записи родителя
func (r *SlotRepository) ListBookedByParent(ctx context.Context, parentID uuid.UUID, from time.Time) ([]*model.AppointmentSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM appointment_slots s ` + slotJoins + `
		WHERE s.parent_code_id = $1
		  AND s.status = 'booked'
		  AND s.date >= $2
		ORDER BY s.date, s.start_time
	`

	return r.list(ctx, "list parent bookings", query, parentID, from)
}

// ListRecent последние слоты для админки
func (r *SlotRepository) ListRecent(ctx context.Context, limit int) ([]*model.AppointmentSlot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM appointment_slots s ` + slotJoins + `
		ORDER BY s.date DESC, s.start_time DESC
		LIMIT $1
	`

	return r.list(ctx, "list recent slots", query, limit)
}

// DeleteIfAvailable удаляет слот только если он свободен.
// false означает что слота нет или он уже не свободен.
func (r *SlotRepository) DeleteIfAvailable(ctx context.Context, id uuid.UUID) (bool, error) {
	affected, err := r.ExecAffected(ctx, `DELETE FROM appointment_slots WHERE id = $1 AND status = 'available'`, id)
	if err != nil {
		return false, fmt.Errorf("delete slot: %w", err)
	}
	return affected > 0, nil
}

// Book атомарно бронирует слот (compare-and-set по статусу).
// Возвращает nil, nil если слот уже занят, в прошлом или не существует.
func (r *SlotRepository) Book(ctx context.Context, id uuid.UUID, booking model.Booking, notBefore time.Time) (*model.AppointmentSlot, error) {
	query := `
		WITH s AS (
			UPDATE appointment_slots
			SET status = 'booked', parent_code_id = $2, child_name = $3, booked_at = $4
			WHERE id = $1 AND status = 'available' AND date >= $5
			RETURNING *
		)
		SELECT ` + slotColumns + ` FROM s ` + slotJoins

	slot, err := scanSlot(r.Pool().QueryRow(
		ctx, query,
		id,
		booking.ParentCodeID,
		booking.ChildName,
		booking.BookedAt,
		notBefore,
	))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, classify("book slot", err)
	}

	return slot, nil
}

// Release снимает бронь и возвращает слот в available. При holder != nil
// бронь снимается только если она принадлежит этому родителю.
// nil, nil если условие не выполнено.
func (r *SlotRepository) Release(ctx context.Context, id uuid.UUID, holder *uuid.UUID) (*model.AppointmentSlot, error) {
	query := `
		WITH s AS (
			UPDATE appointment_slots
			SET status = 'available', parent_code_id = NULL, child_name = NULL, booked_at = NULL
			WHERE id = $1 AND status = 'booked' AND ($2::uuid IS NULL OR parent_code_id = $2)
			RETURNING *
		)
		SELECT ` + slotColumns + ` FROM s ` + slotJoins

	slot, err := scanSlot(r.Pool().QueryRow(ctx, query, id, holder))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("release slot: %w", err)
	}

	return slot, nil
}

// Complete переводит booked -> completed. nil, nil если слот не в booked.
func (r *SlotRepository) Complete(ctx context.Context, id uuid.UUID) (*model.AppointmentSlot, error) {
	query := `
		WITH s AS (
			UPDATE appointment_slots
			SET status = 'completed'
			WHERE id = $1 AND status = 'booked'
			RETURNING *
		)
		SELECT ` + slotColumns + ` FROM s ` + slotJoins

	slot, err := scanSlot(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("complete slot: %w", err)
	}

	return slot, nil
}

// CompleteEndedBefore завершает все брони, закончившиеся до date+clock
func (r *SlotRepository) CompleteEndedBefore(ctx context.Context, date time.Time, clock model.Clock) (int64, error) {
	query := `
		UPDATE appointment_slots
		SET status = 'completed'
		WHERE status = 'booked'
		  AND (date < $1 OR (date = $1 AND end_time <= $2))
	`

	affected, err := r.ExecAffected(ctx, query, date, pgClock(clock))
	if err != nil {
		return 0, fmt.Errorf("complete past bookings: %w", err)
	}
	return affected, nil
}

func (r *SlotRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.AppointmentSlot, error) {
	rows, err := r.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var slots []*model.AppointmentSlot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, slot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return slots, nil
}

func scanSlot(row pgx.Row) (*model.AppointmentSlot, error) {
	var (
		slot        model.AppointmentSlot
		start, end  pgtype.Time
		teacher     model.AccessCode
		parentName  *string
		parentClass *string
	)

	err := row.Scan(
		&slot.ID,
		&slot.TeacherCodeID,
		&slot.Date,
		&start,
		&end,
		&slot.Status,
		&slot.ParentCodeID,
		&slot.ChildName,
		&slot.BookedAt,
		&slot.CreatedAt,
		&teacher.DisplayName,
		&teacher.ClassName,
		&parentName,
		&parentClass,
	)
	if err != nil {
		return nil, err
	}

	slot.StartTime = fromPgClock(start)
	slot.EndTime = fromPgClock(end)

	teacher.ID = slot.TeacherCodeID
	teacher.Profile = model.ProfileTeacher
	slot.Teacher = &teacher

	if slot.ParentCodeID != nil && parentName != nil {
		slot.Parent = &model.AccessCode{
			ID:          *slot.ParentCodeID,
			Profile:     model.ProfileParent,
			DisplayName: *parentName,
			ClassName:   parentClass,
		}
	}

	return &slot, nil
}

func pgClock(c model.Clock) pgtype.Time {
	return pgtype.Time{Microseconds: c.Micros(), Valid: true}
}

func fromPgClock(t pgtype.Time) model.Clock {
	return model.ClockFromMicros(t.Microseconds)
}

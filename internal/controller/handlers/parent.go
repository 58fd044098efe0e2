package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/controller/keyboard"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/session"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// handleTeachers /teachers
func (h *Handlers) handleTeachers(ctx context.Context, req *request) (string, error) {
	teachers, err := h.accessService.ListTeachers(ctx, req.session.Actor)
	if err != nil {
		return "", err
	}

	if len(teachers) == 0 {
		return "📭 Aucun enseignant disponible pour le moment.", nil
	}

	req.remember(session.RefTeacher, lo.Map(teachers, func(t *model.AccessCode, _ int) uuid.UUID {
		return t.ID
	}))

	var sb strings.Builder
	sb.WriteString("🎓 Enseignants :\n\n")
	for i, t := range teachers {
		sb.WriteString(fmt.Sprintf("%d. %s", i+1, t.Label()))
		if t.ClassName != nil {
			sb.WriteString(fmt.Sprintf(" (%s)", *t.ClassName))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\nVoir les créneaux : /slots N")
	return sb.String(), nil
}

// handleSlots /slots N [YYYY-MM-DD]
func (h *Handlers) handleSlots(ctx context.Context, req *request) (string, error) {
	args := req.args()
	if len(args) < 1 || len(args) > 2 {
		return "", usageError("numéro d'enseignant attendu")
	}

	teacherID, err := resolve(req, session.RefTeacher, args[0])
	if err != nil {
		return "", err
	}

	var on *time.Time
	if len(args) == 2 {
		d, err := model.ParseDate(args[1])
		if err != nil {
			return "", usageError("%v", err)
		}
		on = &d
	}

	return h.renderAvailable(ctx, req, teacherID, on)
}

func (h *Handlers) renderAvailable(ctx context.Context, req *request, teacherID uuid.UUID, on *time.Time) (string, error) {
	slots, err := h.bookingService.AvailableSlots(ctx, teacherID, on)
	if err != nil {
		return "", err
	}

	req.remember(session.RefSlot, slotIDs(slots))

	req.bookButtons(slots)

	text := formatAvailableSlots(slots)
	if len(slots) > 0 {
		text += "\n\nRéserver : /book N [prénom de l'enfant]"
	}
	return text, nil
}

// handleBook /book SLOT [child name]
func (h *Handlers) handleBook(ctx context.Context, req *request) (string, error) {
	ref, childName, _ := strings.Cut(req.rest, " ")
	if ref == "" {
		return "", usageError("numéro de créneau attendu")
	}

	slotID, err := resolve(req, session.RefSlot, ref)
	if err != nil {
		return "", err
	}

	var child *string
	if name := strings.TrimSpace(childName); name != "" {
		child = &name
	}

	booked, err := h.bookingService.BookSlot(ctx, req.session.Actor, slotID, child)
	if err != nil {
		// Номера из списка свежих слотов должны работать в следующей /book
		req.rememberTaken(err)
		return "", err
	}

	list, err := h.renderMyBookings(ctx, req)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("✅ Rendez-vous réservé : %s\n\n%s",
		formatSlotWhen(booked), list), nil
}

// handleMyBookings /mybookings
func (h *Handlers) handleMyBookings(ctx context.Context, req *request) (string, error) {
	return h.renderMyBookings(ctx, req)
}

func (h *Handlers) renderMyBookings(ctx context.Context, req *request) (string, error) {
	slots, err := h.bookingService.ParentBookings(ctx, req.session.Actor)
	if err != nil {
		return "", err
	}

	req.remember(session.RefSlot, slotIDs(slots))

	if len(slots) == 0 {
		return "📭 Vous n'avez aucun rendez-vous à venir.", nil
	}

	var (
		sb      strings.Builder
		buttons []models.InlineKeyboardButton
	)
	sb.WriteString("📅 Mes rendez-vous :\n\n")
	for i, s := range slots {
		sb.WriteString(formatSlotDetailed(i+1, s, true))
		sb.WriteString("\n")
		buttons = append(buttons, keyboard.Button(fmt.Sprintf("❌ Annuler #%d", i+1), fmt.Sprintf("/cancel %d", i+1)))
	}
	req.buttons(2, buttons...)
	sb.WriteString("\nAnnuler : /cancel N")
	return sb.String(), nil
}

// handleCancel /cancel SLOT освобождает бронь, доступно родителю, учителю и админу
func (h *Handlers) handleCancel(ctx context.Context, req *request) (string, error) {
	args := req.args()
	if len(args) != 1 {
		return "", usageError("numéro de créneau attendu")
	}

	slotID, err := resolve(req, session.RefSlot, args[0])
	if err != nil {
		return "", err
	}

	released, err := h.bookingService.ReleaseBooking(ctx, req.session.Actor, slotID)
	if err != nil {
		return "", err
	}

	var list string
	switch req.session.Actor.Profile {
	case model.ProfileParent:
		list, err = h.renderMyBookings(ctx, req)
	case model.ProfileTeacher:
		list, err = h.renderMySlots(ctx, req)
	default:
		list, err = h.renderRecent(ctx, req)
	}
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("🗑 Rendez-vous annulé, le créneau %s est de nouveau libre.\n\n%s",
		formatSlotWhen(released), list), nil
}

package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/controller/formatting"
	"github.com/Freeeeeet/school_scheduler/internal/controller/keyboard"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/service"
	"github.com/Freeeeeet/school_scheduler/internal/session"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
)

// handleMeetings /meetings
func (h *Handlers) handleMeetings(ctx context.Context, req *request) (string, error) {
	return h.renderMeetings(ctx, req)
}

// renderMeetings нумерует встречи и все их варианты сквозной нумерацией
func (h *Handlers) renderMeetings(ctx context.Context, req *request) (string, error) {
	polls, err := h.meetingService.ListMeetings(ctx, req.session.Actor)
	if err != nil {
		return "", err
	}

	if len(polls) == 0 {
		return "📭 Aucune réunion.\n\nProposer : " + usages["newmeeting"], nil
	}

	var (
		meetingIDs []uuid.UUID
		slotRefs   []uuid.UUID
		sb         strings.Builder
	)

	for i, poll := range polls {
		m := poll.Meeting
		meetingIDs = append(meetingIDs, m.ID)
		status := formatting.GetMeetingStatusDisplay(m.Status)

		sb.WriteString(fmt.Sprintf("%s M%d. %s (%s)\n", status.Emoji, i+1, m.Title, status.Text))
		if m.Creator != nil {
			sb.WriteString(fmt.Sprintf("   👤 %s\n", m.Creator.Label()))
		}
		if m.Description != nil {
			sb.WriteString(fmt.Sprintf("   📝 %s\n", *m.Description))
		}
		if m.ResponseDeadline != nil {
			sb.WriteString(fmt.Sprintf("   ⏰ Réponses jusqu'au %s\n", formatting.FormatDateTime(*m.ResponseDeadline, h.loc)))
		}

		for _, t := range poll.Slots {
			slotRefs = append(slotRefs, t.Slot.ID)
			sb.WriteString("   ")
			sb.WriteString(formatTally(len(slotRefs), t))
			sb.WriteString("\n")
		}

		if poll.CanConfirm {
			sb.WriteString(fmt.Sprintf("   👉 Confirmer : /confirm %d N\n", i+1))
			req.buttons(3, confirmButtons(i+1, len(slotRefs)-len(poll.Slots), poll.Slots)...)
		}
		sb.WriteString("\n")
	}

	req.remember(session.RefMeeting, meetingIDs)
	req.remember(session.RefMeetingSlot, slotRefs)

	sb.WriteString("Répondre : /respond N oui|non")
	return sb.String(), nil
}

// confirmButtons кнопки подтверждения для вариантов, где кто-то свободен
func confirmButtons(meetingRef, offset int, slots []model.SlotTally) []models.InlineKeyboardButton {
	var buttons []models.InlineKeyboardButton
	for j, t := range slots {
		if t.AvailableCount == 0 {
			continue
		}
		n := offset + j + 1
		buttons = append(buttons, keyboard.Button(
			fmt.Sprintf("📌 M%d [%d] %s", meetingRef, n, formatting.FormatDayMonth(t.Slot.Date)),
			fmt.Sprintf("/confirm %d %d", meetingRef, n),
		))
	}
	return buttons
}

func formatTally(n int, t model.SlotTally) string {
	line := fmt.Sprintf("[%d] %s %s · %s",
		n,
		formatting.FormatDateWithWeekday(t.Slot.Date),
		formatting.FormatTimeRange(t.Slot.StartTime, t.Slot.EndTime),
		formatting.PluralizeAnswers(t.AvailableCount),
	)
	if t.UnavailableCount > 0 {
		line += fmt.Sprintf(", %d indisponible(s)", t.UnavailableCount)
	}
	if t.MyResponse != nil {
		if *t.MyResponse == model.ResponseAvailable {
			line += " · vous : ✅"
		} else {
			line += " · vous : ❌"
		}
	}
	if t.Confirmed {
		line += " · 📌 retenu"
	}
	return line
}

// handleNewMeeting /newmeeting Title | DATE HH:MM HH:MM; ... [| DATE HH:MM]
func (h *Handlers) handleNewMeeting(ctx context.Context, req *request) (string, error) {
	parts := strings.Split(req.rest, "|")
	if len(parts) < 2 || len(parts) > 3 {
		return "", usageError("titre et créneaux séparés par |")
	}

	in := service.CreateMeetingInput{Title: strings.TrimSpace(parts[0])}

	for _, raw := range strings.Split(parts[1], ";") {
		fields := strings.Fields(raw)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return "", usageError("créneau %q : date, début et fin attendus", strings.TrimSpace(raw))
		}
		date, start, end, err := slotRange(fields)
		if err != nil {
			return "", err
		}
		in.Candidates = append(in.Candidates, service.CandidateSlot{Date: date, Start: start, End: end})
	}

	if len(parts) == 3 {
		deadline, err := time.ParseInLocation("2006-01-02 15:04", strings.TrimSpace(parts[2]), h.loc)
		if err != nil {
			return "", usageError("date limite invalide %q", strings.TrimSpace(parts[2]))
		}
		in.ResponseDeadline = &deadline
	}

	meeting, err := h.meetingService.CreateMeeting(ctx, req.session.Actor, in)
	if err != nil {
		return "", err
	}

	list, err := h.renderMeetings(ctx, req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Réunion « %s » proposée avec %s.\n\n%s",
		meeting.Title, formatting.PluralizeSlots(len(meeting.Slots)), list), nil
}

// handleRespond /respond SLOT yes|no
func (h *Handlers) handleRespond(ctx context.Context, req *request) (string, error) {
	args := req.args()
	if len(args) != 2 {
		return "", usageError("numéro de créneau et réponse attendus")
	}

	slotID, err := resolve(req, session.RefMeetingSlot, args[0])
	if err != nil {
		return "", err
	}

	var status model.ResponseStatus
	switch strings.ToLower(args[1]) {
	case "oui", "yes", "y", "o":
		status = model.ResponseAvailable
	case "non", "no", "n":
		status = model.ResponseUnavailable
	default:
		return "", usageError("réponse %q : oui ou non", args[1])
	}

	if _, err := h.meetingService.RespondToSlot(ctx, req.session.Actor, slotID, status); err != nil {
		return "", err
	}

	list, err := h.renderMeetings(ctx, req)
	if err != nil {
		return "", err
	}
	return "🗳 Réponse enregistrée.\n\n" + list, nil
}

// handleConfirm /confirm MEETING SLOT
func (h *Handlers) handleConfirm(ctx context.Context, req *request) (string, error) {
	args := req.args()
	if len(args) != 2 {
		return "", usageError("numéro de réunion et de créneau attendus")
	}

	meetingID, err := resolve(req, session.RefMeeting, strings.TrimPrefix(strings.ToUpper(args[0]), "M"))
	if err != nil {
		return "", err
	}
	slotID, err := resolve(req, session.RefMeetingSlot, args[1])
	if err != nil {
		return "", err
	}

	meeting, err := h.meetingService.ConfirmSlot(ctx, req.session.Actor, meetingID, slotID)
	if err != nil {
		return "", err
	}

	list, err := h.renderMeetings(ctx, req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("📌 Réunion « %s » confirmée.\n\n%s", meeting.Title, list), nil
}

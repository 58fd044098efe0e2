package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/controller/formatting"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/service"
	"github.com/Freeeeeet/school_scheduler/internal/session"
	"github.com/spf13/cast"
)

// handleMySlots /myslots
func (h *Handlers) handleMySlots(ctx context.Context, req *request) (string, error) {
	return h.renderMySlots(ctx, req)
}

func (h *Handlers) renderMySlots(ctx context.Context, req *request) (string, error) {
	slots, err := h.bookingService.TeacherSlots(ctx, req.session.Actor)
	if err != nil {
		return "", err
	}

	req.remember(session.RefSlot, slotIDs(slots))

	if len(slots) == 0 {
		return "📭 Aucun créneau à venir.\n\nAjouter : /addslot AAAA-MM-JJ HH:MM HH:MM", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🗓 Mes créneaux (%s) :\n\n", formatting.PluralizeSlots(len(slots))))
	for i, s := range slots {
		sb.WriteString(formatSlotDetailed(i+1, s, false))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// slotRange разбирает "YYYY-MM-DD HH:MM HH:MM"
func slotRange(args []string) (time.Time, model.Clock, model.Clock, error) {
	date, err := model.ParseDate(args[0])
	if err != nil {
		return time.Time{}, 0, 0, usageError("%v", err)
	}
	start, err := model.ParseClock(args[1])
	if err != nil {
		return time.Time{}, 0, 0, usageError("%v", err)
	}
	end, err := model.ParseClock(args[2])
	if err != nil {
		return time.Time{}, 0, 0, usageError("%v", err)
	}
	return date, start, end, nil
}

// handleAddSlot /addslot DATE HH:MM HH:MM
func (h *Handlers) handleAddSlot(ctx context.Context, req *request) (string, error) {
	args := req.args()
	if len(args) != 3 {
		return "", usageError("date, début et fin attendus")
	}

	date, start, end, err := slotRange(args)
	if err != nil {
		return "", err
	}

	slot, err := h.bookingService.CreateSlot(ctx, req.session.Actor, service.CreateSlotInput{
		Date:  date,
		Start: start,
		End:   end,
	})
	if err != nil {
		return "", err
	}

	list, err := h.renderMySlots(ctx, req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Créneau ajouté : %s\n\n%s", formatSlotWhen(slot), list), nil
}

// handleAddSlots /addslots DATE HH:MM HH:MM MINUTES
func (h *Handlers) handleAddSlots(ctx context.Context, req *request) (string, error) {
	args := req.args()
	if len(args) != 4 {
		return "", usageError("date, début, fin et durée attendus")
	}

	date, start, end, err := slotRange(args)
	if err != nil {
		return "", err
	}
	minutes, err := cast.ToIntE(args[3])
	if err != nil {
		return "", usageError("durée invalide %q", args[3])
	}

	slots, err := h.bookingService.CreateSlots(ctx, req.session.Actor, service.CreateSlotsInput{
		Date:     date,
		Start:    start,
		End:      end,
		Duration: time.Duration(minutes) * time.Minute,
	})
	if err != nil {
		return "", err
	}

	list, err := h.renderMySlots(ctx, req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ %s de %s ajoutés.\n\n%s",
		formatting.PluralizeSlots(len(slots)), formatting.FormatDuration(minutes), list), nil
}

// handleDeleteSlot /delslot SLOT
func (h *Handlers) handleDeleteSlot(ctx context.Context, req *request) (string, error) {
	args := req.args()
	if len(args) != 1 {
		return "", usageError("numéro de créneau attendu")
	}

	slotID, err := resolve(req, session.RefSlot, args[0])
	if err != nil {
		return "", err
	}

	if err := h.bookingService.DeleteSlot(ctx, req.session.Actor, slotID); err != nil {
		return "", err
	}

	list, err := h.renderMySlots(ctx, req)
	if err != nil {
		return "", err
	}
	return "🗑 Créneau supprimé.\n\n" + list, nil
}

// handleDone /done SLOT
func (h *Handlers) handleDone(ctx context.Context, req *request) (string, error) {
	args := req.args()
	if len(args) != 1 {
		return "", usageError("numéro de créneau attendu")
	}

	slotID, err := resolve(req, session.RefSlot, args[0])
	if err != nil {
		return "", err
	}

	slot, err := h.bookingService.CompleteSlot(ctx, req.session.Actor, slotID)
	if err != nil {
		return "", err
	}

	list, err := h.renderMySlots(ctx, req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✔️ Rendez-vous du %s terminé.\n\n%s", formatSlotWhen(slot), list), nil
}

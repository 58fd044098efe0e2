package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/school_scheduler/internal/controller/formatting"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/service"
	"github.com/Freeeeeet/school_scheduler/internal/session"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

const recentLimit = 30

// handleCodes /codes
func (h *Handlers) handleCodes(ctx context.Context, req *request) (string, error) {
	return h.renderCodes(ctx, req)
}

func (h *Handlers) renderCodes(ctx context.Context, req *request) (string, error) {
	codes, err := h.accessService.ListCodes(ctx, req.session.Actor)
	if err != nil {
		return "", err
	}

	req.remember(session.RefCode, lo.Map(codes, func(c *model.AccessCode, _ int) uuid.UUID {
		return c.ID
	}))

	var sb strings.Builder
	sb.WriteString("🔑 Codes d'accès :\n\n")
	for i, c := range codes {
		active := "🟢"
		if !c.IsActive {
			active = "🔴"
		}
		sb.WriteString(fmt.Sprintf("%s %d. %s · %s · %s", active, i+1, c.Code, formatting.GetProfileDisplay(c.Profile), c.DisplayName))
		if c.ClassName != nil {
			sb.WriteString(fmt.Sprintf(" (%s)", *c.ClassName))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// handleAddCode /addcode CODE PROFILE [CLASS] [Display name]
// Класс указывается только для teacher и parent.
func (h *Handlers) handleAddCode(ctx context.Context, req *request) (string, error) {
	args := req.args()
	if len(args) < 2 {
		return "", usageError("code et profil attendus")
	}

	profile, err := model.ParseProfile(args[1])
	if err != nil {
		return "", usageError("profil %q : admin, teacher, parent ou partner", args[1])
	}

	in := service.CreateCodeInput{
		Code:    args[0],
		Profile: profile,
	}

	rest := args[2:]
	if len(rest) > 0 && (profile == model.ProfileTeacher || profile == model.ProfileParent) {
		className := rest[0]
		in.ClassName = &className
		rest = rest[1:]
	}

	in.DisplayName = strings.Join(rest, " ")
	if in.DisplayName == "" {
		in.DisplayName = model.NormalizeCode(in.Code)
	}

	created, err := h.accessService.CreateCode(ctx, req.session.Actor, in)
	if err != nil {
		return "", err
	}

	list, err := h.renderCodes(ctx, req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Code %s créé.\n\n%s", created.Code, list), nil
}

// handleToggleCode /togglecode CODE
func (h *Handlers) handleToggleCode(ctx context.Context, req *request) (string, error) {
	args := req.args()
	if len(args) != 1 {
		return "", usageError("numéro de code attendu")
	}

	id, err := resolve(req, session.RefCode, args[0])
	if err != nil {
		return "", err
	}

	code, err := h.accessService.ToggleActive(ctx, req.session.Actor, id)
	if err != nil {
		return "", err
	}

	state := "désactivé 🔴"
	if code.IsActive {
		state = "activé 🟢"
	}

	list, err := h.renderCodes(ctx, req)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Code %s %s.\n\n%s", code.Code, state, list), nil
}

// handleDeleteCode /delcode CODE
func (h *Handlers) handleDeleteCode(ctx context.Context, req *request) (string, error) {
	args := req.args()
	if len(args) != 1 {
		return "", usageError("numéro de code attendu")
	}

	id, err := resolve(req, session.RefCode, args[0])
	if err != nil {
		return "", err
	}

	if err := h.accessService.DeleteCode(ctx, req.session.Actor, id); err != nil {
		return "", err
	}

	list, err := h.renderCodes(ctx, req)
	if err != nil {
		return "", err
	}
	return "🗑 Code supprimé.\n\n" + list, nil
}

// handleRecent /recent
func (h *Handlers) handleRecent(ctx context.Context, req *request) (string, error) {
	return h.renderRecent(ctx, req)
}

func (h *Handlers) renderRecent(ctx context.Context, req *request) (string, error) {
	slots, err := h.bookingService.RecentSlots(ctx, req.session.Actor, recentLimit)
	if err != nil {
		return "", err
	}

	req.remember(session.RefSlot, slotIDs(slots))

	if len(slots) == 0 {
		return "📭 Aucun créneau.", nil
	}

	var sb strings.Builder
	sb.WriteString("🗂 Derniers créneaux :\n\n")
	for i, s := range slots {
		sb.WriteString(formatSlotDetailed(i+1, s, true))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

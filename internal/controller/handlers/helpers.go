package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/school_scheduler/internal/apperr"
	"github.com/Freeeeeet/school_scheduler/internal/controller/formatting"
	"github.com/Freeeeeet/school_scheduler/internal/controller/keyboard"
	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/Freeeeeet/school_scheduler/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgInternalError  = "❌ Une erreur est survenue. Réessayez plus tard."
	slotButtonsPerRow = 3

	// op ошибок разбора команды, их текст показывается пользователю
	inputOp = "input"
)

// sendReply отправляет ответ и логирует если не удалось
func (h *Handlers) sendReply(ctx context.Context, b *bot.Bot, chatID int64, reply Reply) {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   reply.Text,
	}
	if reply.Keyboard != nil {
		params.ReplyMarkup = reply.Keyboard
	}

	_, err := b.SendMessage(ctx, params)
	if err != nil {
		h.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// renderError превращает ошибку сервиса в сообщение пользователю
func (h *Handlers) renderError(req *request, err error) string {
	var taken *service.SlotTakenError
	if errors.As(err, &taken) {
		req.bookButtons(taken.Available)
		return "😔 Ce créneau n'est plus disponible.\n\n" + formatAvailableSlots(taken.Available)
	}

	detail := ""
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.Op == inputOp {
		detail = "\n" + appErr.Msg
	}

	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return "⚠️ Données invalides." + detail + "\n\n" + usage(req.name)
	case apperr.KindInvalidState:
		return "🚫 Action impossible dans l'état actuel." + detail
	case apperr.KindConflict:
		return "⚠️ Conflit : la donnée existe déjà ou a changé." + detail
	case apperr.KindNotFound:
		return "🔍 Introuvable." + detail
	case apperr.KindForbidden:
		return "⛔ Cette commande n'est pas disponible pour votre profil."
	}

	h.logger.Error("Command failed",
		zap.String("command", req.name),
		zap.Int64("chat_id", req.chatID),
		zap.Error(err),
	)
	return msgInternalError
}

// usageError ошибка разбора аргументов команды
func usageError(format string, args ...any) error {
	return apperr.Validation(inputOp, format, args...)
}

// resolve разбирает номер из последнего списка или полный UUID
func resolve(req *request, kind, ref string) (uuid.UUID, error) {
	id, ok := req.session.Resolve(kind, ref)
	if !ok {
		return uuid.Nil, apperr.NotFound(inputOp, "numéro %q inconnu, affichez d'abord la liste", ref)
	}
	return id, nil
}

func slotIDs(slots []*model.AppointmentSlot) []uuid.UUID {
	ids := make([]uuid.UUID, len(slots))
	for i, s := range slots {
		ids[i] = s.ID
	}
	return ids
}

// formatSlotWhen "jeu. 05/03/2026 09:00-09:15"
func formatSlotWhen(s *model.AppointmentSlot) string {
	return formatting.FormatDateWithWeekday(s.Date) + " " + formatting.FormatTimeRange(s.StartTime, s.EndTime)
}

func formatSlotLine(n int, s *model.AppointmentSlot) string {
	return fmt.Sprintf("#%d %s", n, formatSlotWhen(s))
}

func formatAvailableSlots(slots []*model.AppointmentSlot) string {
	if len(slots) == 0 {
		return "📭 Aucun créneau disponible."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🟢 %s disponible(s) :\n", formatting.PluralizeSlots(len(slots))))
	for i, s := range slots {
		sb.WriteString(formatSlotLine(i+1, s))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// formatSlotDetailed строка слота со статусом, учителем и родителем
func formatSlotDetailed(n int, s *model.AppointmentSlot, withTeacher bool) string {
	display := formatting.GetSlotStatusDisplay(s.Status)
	line := fmt.Sprintf("%s %s", display.Emoji, formatSlotLine(n, s))

	if withTeacher && s.Teacher != nil {
		line += " · " + s.Teacher.Label()
	}
	if s.Parent != nil {
		line += " · 👪 " + s.Parent.Label()
	}
	if s.ChildName != nil {
		line += " (" + *s.ChildName + ")"
	}
	return line
}

// bookButtons кнопка "/book N" на каждый свободный слот
func (r *request) bookButtons(slots []*model.AppointmentSlot) {
	var buttons []models.InlineKeyboardButton
	for i, s := range slots {
		buttons = append(buttons, keyboard.Button(
			fmt.Sprintf("📅 %s %s", formatting.FormatDayMonth(s.Date), s.StartTime),
			fmt.Sprintf("/book %d", i+1),
		))
	}
	r.buttons(slotButtonsPerRow, buttons...)
}

func usage(name string) string {
	if u, ok := usages[name]; ok {
		return "Usage : " + u
	}
	return "Tapez /help pour la liste des commandes."
}

var usages = map[string]string{
	"login":      "/login CODE",
	"slots":      "/slots N [AAAA-MM-JJ]",
	"book":       "/book N [prénom de l'enfant]",
	"cancel":     "/cancel N",
	"addslot":    "/addslot AAAA-MM-JJ HH:MM HH:MM",
	"addslots":   "/addslots AAAA-MM-JJ HH:MM HH:MM MINUTES",
	"delslot":    "/delslot N",
	"done":       "/done N",
	"newmeeting": "/newmeeting Titre | AAAA-MM-JJ HH:MM HH:MM; ... [| AAAA-MM-JJ HH:MM]",
	"respond":    "/respond N oui|non",
	"confirm":    "/confirm MEETING CRÉNEAU",
	"addcode":    "/addcode CODE PROFIL [CLASSE] [Nom affiché]",
	"togglecode": "/togglecode N",
	"delcode":    "/delcode N",
}

package handlers

import (
	"context"
	"strings"

	"github.com/Freeeeeet/school_scheduler/internal/apperr"
	"github.com/Freeeeeet/school_scheduler/internal/controller/keyboard"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// HandleUpdate обрабатывает любое текстовое сообщение
func (h *Handlers) HandleUpdate(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	chatID := update.Message.Chat.ID
	h.sendReply(ctx, b, chatID, h.Dispatch(ctx, chatID, update.Message.Text))
}

// HandleCallbackQuery нажатие inline-кнопки. Callback data это текст команды.
func (h *Handlers) HandleCallbackQuery(ctx context.Context, b *bot.Bot, update *models.Update) {
	callback := update.CallbackQuery
	if callback == nil {
		return
	}

	if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callback.ID,
	}); err != nil {
		h.logger.Warn("Failed to answer callback", zap.Error(err))
	}

	if callback.Message.Message == nil {
		return
	}

	chatID := callback.Message.Message.Chat.ID
	h.logger.Debug("Routing callback",
		zap.String("data", callback.Data),
		zap.Int64("chat_id", chatID),
	)

	h.sendReply(ctx, b, chatID, h.Dispatch(ctx, chatID, callback.Data))
}

// Dispatch выполняет команду и возвращает ответ
func (h *Handlers) Dispatch(ctx context.Context, chatID int64, text string) Reply {
	name, rest := parseCommand(text)
	if name == "" {
		return Reply{Text: "🤖 Je ne comprends que les commandes. Tapez /help pour la liste."}
	}

	cmd, ok := h.commands[name]
	if !ok {
		return Reply{Text: "❓ Commande inconnue. Tapez /help pour la liste."}
	}

	req := &request{chatID: chatID, name: name, rest: rest, kb: keyboard.NewBuilder()}

	if cmd.auth {
		sess, err := h.sessions.Get(ctx, chatID)
		if err != nil {
			h.logger.Error("Failed to load session", zap.Int64("chat_id", chatID), zap.Error(err))
			return Reply{Text: msgInternalError}
		}
		if sess == nil {
			return Reply{Text: "🔒 Connectez-vous d'abord : /login CODE"}
		}

		actor, err := h.accessService.Actor(ctx, sess.Actor.CodeID)
		if err != nil {
			if apperr.KindOf(err) != apperr.KindNotFound {
				h.logger.Error("Failed to check session code", zap.Int64("chat_id", chatID), zap.Error(err))
				return Reply{Text: msgInternalError}
			}
			if delErr := h.sessions.Delete(ctx, chatID); delErr != nil {
				h.logger.Warn("Failed to drop session", zap.Int64("chat_id", chatID), zap.Error(delErr))
			}
			h.logger.Info("Session code revoked",
				zap.Int64("chat_id", chatID),
				zap.String("code_id", sess.Actor.CodeID.String()),
			)
			return Reply{Text: "🔒 Votre code n'est plus actif. Connectez-vous à nouveau : /login CODE"}
		}
		sess.Actor = actor
		req.session = sess
	}

	reply, err := cmd.run(ctx, req)

	if req.dirty {
		if saveErr := h.sessions.Set(ctx, chatID, req.session); saveErr != nil {
			h.logger.Warn("Failed to save session refs", zap.Int64("chat_id", chatID), zap.Error(saveErr))
		}
	}

	if err != nil {
		reply = h.renderError(req, err)
	}
	return Reply{Text: reply, Keyboard: req.kb.Build()}
}

// parseCommand "/book@school_bot 3 Léa" -> ("book", "3 Léa")
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}

	name, rest, _ := strings.Cut(text[1:], " ")
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}

	return strings.ToLower(name), strings.TrimSpace(rest)
}

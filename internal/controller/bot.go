package controller

import (
	"context"

	"github.com/Freeeeeet/school_scheduler/internal/controller/handlers"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type BotController struct {
	bot      *bot.Bot
	handlers *handlers.Handlers
	logger   *zap.Logger
}

func NewBotController(botInstance *bot.Bot, cmdHandlers *handlers.Handlers, logger *zap.Logger) *BotController {
	return &BotController{
		bot:      botInstance,
		handlers: cmdHandlers,
		logger:   logger,
	}
}

// RegisterHandlers регистрирует обработчик команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	// Все текстовые сообщения разбирает Dispatch по таблице команд
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "", bot.MatchTypePrefix, c.handlers.HandleUpdate)

	// Обработчик нажатий на inline кнопки, в callback data лежит команда
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, "/", bot.MatchTypePrefix, c.handlers.HandleCallbackQuery)

	// Устанавливаем меню команд
	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Démarrer"},
		{Command: "help", Description: "❓ Aide sur les commandes"},
		{Command: "login", Description: "🔑 Se connecter avec un code"},
		{Command: "teachers", Description: "🎓 Enseignants (parents)"},
		{Command: "mybookings", Description: "📅 Mes rendez-vous (parents)"},
		{Command: "myslots", Description: "🗓 Mes créneaux (enseignants)"},
		{Command: "meetings", Description: "🗳 Réunions"},
		{Command: "codes", Description: "🔐 Codes d'accès (admin)"},
		{Command: "whoami", Description: "👤 Mon profil"},
		{Command: "logout", Description: "👋 Se déconnecter"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})

	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("✅ Bot commands menu set")
	return nil
}

// Start запускает бота и блокируется до отмены ctx
func (c *BotController) Start(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}

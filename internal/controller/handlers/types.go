package handlers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/controller/keyboard"
	"github.com/Freeeeeet/school_scheduler/internal/service"
	"github.com/Freeeeeet/school_scheduler/internal/session"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	accessService  *service.AccessService
	bookingService *service.BookingService
	meetingService *service.MeetingService
	sessions       session.Store
	loc            *time.Location
	logger         *zap.Logger

	commands map[string]command
}

// NewHandlers создаёт новый обработчик команд
func NewHandlers(
	accessService *service.AccessService,
	bookingService *service.BookingService,
	meetingService *service.MeetingService,
	sessions session.Store,
	loc *time.Location,
	logger *zap.Logger,
) *Handlers {
	h := &Handlers{
		accessService:  accessService,
		bookingService: bookingService,
		meetingService: meetingService,
		sessions:       sessions,
		loc:            loc,
		logger:         logger,
	}
	h.commands = h.commandTable()
	return h
}

// command одна команда бота. auth требует активной сессии.
type command struct {
	run  func(ctx context.Context, req *request) (string, error)
	auth bool
}

// Reply ответ на команду: текст и, возможно, inline-кнопки
type Reply struct {
	Text     string
	Keyboard *models.InlineKeyboardMarkup
}

// request разобранное сообщение пользователя
type request struct {
	chatID  int64
	name    string
	rest    string
	session *session.Session
	dirty   bool
	kb      *keyboard.Builder
}

// buttons добавляет кнопки, каждая из которых повторяет команду
func (r *request) buttons(perRow int, buttons ...models.InlineKeyboardButton) {
	r.kb.Grid(buttons, perRow)
}

func (r *request) args() []string {
	return strings.Fields(r.rest)
}

// remember сохраняет короткие номера для следующих команд
func (r *request) remember(kind string, ids []uuid.UUID) {
	r.session.Remember(kind, ids)
	r.dirty = true
}

// rememberTaken запоминает свежие свободные слоты после проигранной гонки
func (r *request) rememberTaken(err error) {
	var taken *service.SlotTakenError
	if errors.As(err, &taken) {
		r.remember(session.RefSlot, slotIDs(taken.Available))
	}
}

func (h *Handlers) commandTable() map[string]command {
	return map[string]command{
		"start":  {run: h.handleStart},
		"help":   {run: h.handleHelp},
		"login":  {run: h.handleLogin},
		"logout": {run: h.handleLogout},
		"whoami": {run: h.handleWhoAmI, auth: true},

		// Родители
		"teachers":   {run: h.handleTeachers, auth: true},
		"slots":      {run: h.handleSlots, auth: true},
		"book":       {run: h.handleBook, auth: true},
		"mybookings": {run: h.handleMyBookings, auth: true},
		"cancel":     {run: h.handleCancel, auth: true},

		// Учителя
		"myslots":  {run: h.handleMySlots, auth: true},
		"addslot":  {run: h.handleAddSlot, auth: true},
		"addslots": {run: h.handleAddSlots, auth: true},
		"delslot":  {run: h.handleDeleteSlot, auth: true},
		"done":     {run: h.handleDone, auth: true},

		// Встречи
		"meetings":   {run: h.handleMeetings, auth: true},
		"newmeeting": {run: h.handleNewMeeting, auth: true},
		"respond":    {run: h.handleRespond, auth: true},
		"confirm":    {run: h.handleConfirm, auth: true},

		// Администратор
		"codes":      {run: h.handleCodes, auth: true},
		"addcode":    {run: h.handleAddCode, auth: true},
		"togglecode": {run: h.handleToggleCode, auth: true},
		"delcode":    {run: h.handleDeleteCode, auth: true},
		"recent":     {run: h.handleRecent, auth: true},
	}
}

package keyboard

import "github.com/go-telegram/bot/models"

// Builder упрощает создание inline клавиатур
type Builder struct {
	rows [][]models.InlineKeyboardButton
}

// NewBuilder создаёт новый builder клавиатуры
func NewBuilder() *Builder {
	return &Builder{
		rows: make([][]models.InlineKeyboardButton, 0),
	}
}

// Row добавляет новый ряд кнопок
func (b *Builder) Row(buttons ...models.InlineKeyboardButton) *Builder {
	if len(buttons) > 0 {
		b.rows = append(b.rows, buttons)
	}
	return b
}

// Grid раскладывает кнопки по рядам не длиннее perRow
func (b *Builder) Grid(buttons []models.InlineKeyboardButton, perRow int) *Builder {
	if perRow <= 0 {
		perRow = 1
	}
	for start := 0; start < len(buttons); start += perRow {
		end := min(start+perRow, len(buttons))
		b.Row(buttons[start:end]...)
	}
	return b
}

// Button создаёт кнопку. Callback data у нас всегда текст команды.
func Button(text, command string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: command,
	}
}

// IsEmpty true если не добавлено ни одного ряда
func (b *Builder) IsEmpty() bool {
	return len(b.rows) == 0
}

// Build создаёт финальную клавиатуру, nil если кнопок нет
func (b *Builder) Build() *models.InlineKeyboardMarkup {
	if b.IsEmpty() {
		return nil
	}
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: b.rows,
	}
}

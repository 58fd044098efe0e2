package keyboard

import (
	"fmt"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrid(t *testing.T) {
	var buttons []models.InlineKeyboardButton
	for i := 1; i <= 7; i++ {
		buttons = append(buttons, Button(fmt.Sprintf("#%d", i), fmt.Sprintf("/book %d", i)))
	}

	kb := NewBuilder().Grid(buttons, 3).Build()
	require.NotNil(t, kb)
	require.Len(t, kb.InlineKeyboard, 3)
	assert.Len(t, kb.InlineKeyboard[0], 3)
	assert.Len(t, kb.InlineKeyboard[2], 1)
	assert.Equal(t, "/book 7", kb.InlineKeyboard[2][0].CallbackData)
}

func TestBuildEmpty(t *testing.T) {
	b := NewBuilder().Row()
	assert.True(t, b.IsEmpty())
	assert.Nil(t, b.Build())
}

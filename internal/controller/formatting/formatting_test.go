package formatting

import (
	"testing"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestFormatDateWithWeekday(t *testing.T) {
	d := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "jeu. 05/03/2026", FormatDateWithWeekday(d))
}

func TestFormatTimeRange(t *testing.T) {
	assert.Equal(t, "09:00-09:15", FormatTimeRange(model.MustClock(9, 0), model.MustClock(9, 15)))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "15 min", FormatDuration(15))
	assert.Equal(t, "1 h", FormatDuration(60))
	assert.Equal(t, "1 h 30", FormatDuration(90))
}

func TestPluralize(t *testing.T) {
	assert.Equal(t, "1 créneau", PluralizeSlots(1))
	assert.Equal(t, "0 créneau", PluralizeSlots(0))
	assert.Equal(t, "4 créneaux", PluralizeSlots(4))
	assert.Equal(t, "2 disponibles", PluralizeAnswers(2))
}

func TestGetProfileDisplay(t *testing.T) {
	for _, p := range model.Profiles {
		assert.NotContains(t, GetProfileDisplay(p), "❓")
	}
	assert.Contains(t, GetProfileDisplay("student"), "❓")
}

func TestStatusDisplays(t *testing.T) {
	assert.Equal(t, "Réservé", GetSlotStatusDisplay(model.SlotStatusBooked).Text)
	assert.Equal(t, "❓", GetSlotStatusDisplay("weird").Emoji)
	assert.Equal(t, "Confirmé", GetMeetingStatusDisplay(model.MeetingStatusConfirmed).Text)
}

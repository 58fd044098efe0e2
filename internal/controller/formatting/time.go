package formatting

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/school_scheduler/internal/model"
)

// FormatDate форматирует только дату
func FormatDate(t time.Time) string {
	return t.Format("02/01/2006")
}

// FormatDayMonth короткая дата для кнопок: "05/03"
func FormatDayMonth(t time.Time) string {
	return t.Format("02/01")
}

// FormatDateWithWeekday форматирует дату с днём недели: "jeu. 05/03/2026"
func FormatDateWithWeekday(t time.Time) string {
	return fmt.Sprintf("%s %s", GetWeekdayShortName(int(t.Weekday())), FormatDate(t))
}

// FormatDateTime форматирует момент времени в часовом поясе школы
func FormatDateTime(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02/01/2006 15:04")
}

// FormatTimeRange форматирует диапазон времени
func FormatTimeRange(start, end model.Clock) string {
	return fmt.Sprintf("%s-%s", start, end)
}

// FormatDuration форматирует длительность в минутах
func FormatDuration(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%d h", hours)
	}
	return fmt.Sprintf("%d h %02d", hours, mins)
}

// GetWeekdayShortName возвращает краткое название дня недели на французском
func GetWeekdayShortName(weekday int) string {
	names := []string{"dim.", "lun.", "mar.", "mer.", "jeu.", "ven.", "sam."}
	if weekday >= 0 && weekday < len(names) {
		return names[weekday]
	}
	return "?"
}

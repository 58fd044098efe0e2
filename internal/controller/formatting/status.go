package formatting

import "github.com/Freeeeeet/school_scheduler/internal/model"

// StatusDisplay emoji и текст для статуса
type StatusDisplay struct {
	Emoji string
	Text  string
}

// GetSlotStatusDisplay возвращает emoji и текст для статуса слота
func GetSlotStatusDisplay(status model.SlotStatus) StatusDisplay {
	displays := map[model.SlotStatus]StatusDisplay{
		model.SlotStatusAvailable: {"🟢", "Disponible"},
		model.SlotStatusBooked:    {"🔵", "Réservé"},
		model.SlotStatusCompleted: {"✔️", "Terminé"},
		model.SlotStatusCancelled: {"⚫️", "Annulé"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Inconnu"}
}

// GetMeetingStatusDisplay возвращает emoji и текст для статуса встречи
func GetMeetingStatusDisplay(status model.MeetingStatus) StatusDisplay {
	displays := map[model.MeetingStatus]StatusDisplay{
		model.MeetingStatusPending:   {"⏳", "En attente"},
		model.MeetingStatusConfirmed: {"✅", "Confirmé"},
		model.MeetingStatusCancelled: {"❌", "Annulé"},
	}

	if display, ok := displays[status]; ok {
		return display
	}

	return StatusDisplay{"❓", "Inconnu"}
}

// profileLabel реализует model.ProfileVisitor: новый профиль не скомпилируется без подписи
type profileLabel struct{}

func (profileLabel) Admin() string   { return "👑 Administrateur" }
func (profileLabel) Teacher() string { return "🎓 Enseignant" }
func (profileLabel) Parent() string  { return "👪 Parent" }
func (profileLabel) Partner() string { return "🤝 Partenaire" }

// GetProfileDisplay возвращает подпись профиля
func GetProfileDisplay(p model.Profile) string {
	label, err := model.VisitProfile[string](p, profileLabel{})
	if err != nil {
		return "❓ " + string(p)
	}
	return label
}

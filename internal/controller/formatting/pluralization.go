package formatting

import "fmt"

func plural(count int, one, many string) string {
	if count <= 1 {
		return fmt.Sprintf("%d %s", count, one)
	}
	return fmt.Sprintf("%d %s", count, many)
}

// PluralizeSlots "1 créneau", "3 créneaux"
func PluralizeSlots(count int) string {
	return plural(count, "créneau", "créneaux")
}

// PluralizeAnswers "1 disponible", "2 disponibles"
func PluralizeAnswers(count int) string {
	return plural(count, "disponible", "disponibles")
}

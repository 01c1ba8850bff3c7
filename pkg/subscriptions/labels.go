package subscriptions

import (
	"fmt"
	"time"

	"github.com/go-playground/locales/fr"
)

// French period labels for invoices: "janvier 2025", "15 janvier 2025",
// "en cours" for an open end.
var translator = fr.New()

// OpenEndLabel marks a period that has not closed yet.
const OpenEndLabel = "en cours"

func monthLabel(t time.Time) string {
	return fmt.Sprintf("%s %d", translator.MonthWide(t.Month()), t.Year())
}

func dateLabel(t time.Time) string {
	if t.IsZero() {
		return OpenEndLabel
	}
	return translator.FmtDateLong(t)
}

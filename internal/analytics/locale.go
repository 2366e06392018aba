package analytics

import (
	"fmt"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Locale carries the calendar conventions used for bucket labels.
type Locale struct {
	Tag       language.Tag
	WeekStart time.Weekday
	// Days holds day abbreviations indexed by time.Weekday.
	Days          [7]string
	ShortMonths   [12]string
	Months        [12]string
	Uncategorized string
}

var Spanish = Locale{
	Tag:       language.Spanish,
	WeekStart: time.Monday,
	Days:      [7]string{"dom", "lun", "mar", "mié", "jue", "vie", "sáb"},
	ShortMonths: [12]string{
		"ene", "feb", "mar", "abr", "may", "jun",
		"jul", "ago", "sept", "oct", "nov", "dic",
	},
	Months: [12]string{
		"enero", "febrero", "marzo", "abril", "mayo", "junio",
		"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
	},
	Uncategorized: "Sin categoría",
}

var English = Locale{
	Tag:       language.English,
	WeekStart: time.Monday,
	Days:      [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"},
	ShortMonths: [12]string{
		"Jan", "Feb", "Mar", "Apr", "May", "Jun",
		"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
	},
	Months: [12]string{
		"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December",
	},
	Uncategorized: "Uncategorized",
}

var (
	supportedLocales = []Locale{Spanish, English}
	localeMatcher    = language.NewMatcher([]language.Tag{language.Spanish, language.English})
)

// LocaleFor resolves a BCP 47 tag such as "es-AR" or "en-GB" to the closest
// supported locale. Unknown tags resolve to Spanish.
func LocaleFor(tag string) Locale {
	_, idx := language.MatchStrings(localeMatcher, tag)
	if idx < 0 || idx >= len(supportedLocales) {
		return Spanish
	}
	return supportedLocales[idx]
}

// WithWeekStart returns a copy of l using a different first day of the week.
func (l Locale) WithWeekStart(d time.Weekday) Locale {
	l.WeekStart = d
	return l
}

// MonthName returns the full month name in title case.
func (l Locale) MonthName(m time.Month) string {
	return cases.Title(l.Tag).String(l.Months[m-1])
}

// dayMonth formats t as "dd MMM".
func (l Locale) dayMonth(t time.Time) string {
	return fmt.Sprintf("%02d %s", t.Day(), l.ShortMonths[t.Month()-1])
}

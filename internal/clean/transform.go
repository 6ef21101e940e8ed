package clean

import (
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DateLayouts are tried in order by ParseDate. Day comes before month in the
// slash forms.
var DateLayouts = []string{
	"2006-1-2",
	"2/1/06",
	"2/1/2006",
	"Jan 2, 2006",
	"2006.1.2",
}

// DateOutputLayout is the ISO form dates are rewritten to.
const DateOutputLayout = "2006-01-02"

// InvalidEmail replaces addresses that fail ValidEmail.
const InvalidEmail = "invalid@example.com"

var emailRe = regexp.MustCompile(`^[^@]+@[^@]+\.[^@]+`)

// ValidEmail reports whether s starts with something shaped like
// local@domain.tld.
func ValidEmail(s string) bool { return emailRe.MatchString(s) }

// ParseDate rewrites s in ISO form using the first layout in DateLayouts that
// parses it.
func ParseDate(s string) (string, bool) {
	for _, layout := range DateLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.Format(DateOutputLayout), true
		}
	}
	return s, false
}

// TitleCase trims s, lowercases it and capitalizes the first letter of each
// word.
func TitleCase(s string) string {
	s = cases.Lower(language.Und).String(strings.TrimSpace(s))
	return cases.Title(language.Und).String(s)
}

// StandardizeName trims and lowercases a column name and replaces spaces
// with underscores.
func StandardizeName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

func isEmailColumn(name string) bool { return strings.Contains(strings.ToLower(name), "email") }

func isDateColumn(name string) bool { return strings.Contains(strings.ToLower(name), "date") }

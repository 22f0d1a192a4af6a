// Package locale resolves localized text variants and renders in-fiction
// dates for a user's preferred language.
package locale

import (
	"fmt"
	"sort"
	"strings"
	"time"

	ptime "github.com/yaa110/go-persian-calendar"
	"golang.org/x/text/language"
)

// Fallback is the language used when nothing better matches.
const Fallback = "en"

// Supported lists the UI languages a profile may select.
var Supported = []language.Tag{
	language.English,
	language.French,
	language.German,
	language.Persian,
}

var supportedMatcher = language.NewMatcher(Supported)

// Localized maps a base language code to text in that language.
type Localized map[string]string

// Resolve picks the variant best matching lang: exact or regional match
// first, then Fallback, then the first variant in key order.
func (l Localized) Resolve(lang string) string {
	if len(l) == 0 {
		return ""
	}

	keys := make([]string, 0, len(l))
	tags := make([]language.Tag, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		tags = append(tags, language.Make(k))
	}

	if lang != "" {
		_, idx, conf := language.NewMatcher(tags).Match(language.Make(lang))
		if conf != language.No {
			return l[keys[idx]]
		}
	}
	if v, ok := l[Fallback]; ok {
		return v
	}
	return l[keys[0]]
}

// Normalize maps a free-form language preference ("fr-CA", "FA") onto the
// base code of the closest supported language.
func Normalize(pref string) (string, error) {
	pref = strings.TrimSpace(pref)
	if pref == "" {
		return Fallback, nil
	}
	tag, err := language.Parse(pref)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", pref, err)
	}
	_, idx, conf := supportedMatcher.Match(tag)
	if conf == language.No {
		return Fallback, nil
	}
	base, _ := Supported[idx].Base()
	return base.String(), nil
}

// FormatDate renders an in-fiction date. Persian users get the Solar Hijri
// calendar; everyone else a Gregorian long date.
func FormatDate(t time.Time, lang string) string {
	switch lang {
	case "fa":
		return ptime.New(t.UTC()).Format("d MMM yyyy")
	case "fr":
		return fmt.Sprintf("%d %s %d", t.Day(), frenchMonths[t.Month()-1], t.Year())
	case "de":
		return fmt.Sprintf("%d. %s %d", t.Day(), germanMonths[t.Month()-1], t.Year())
	default:
		return t.UTC().Format("January 2, 2006")
	}
}

var frenchMonths = [12]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

var germanMonths = [12]string{
	"Januar", "Februar", "März", "April", "Mai", "Juni",
	"Juli", "August", "September", "Oktober", "November", "Dezember",
}

package guard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDate     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDate   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	monthDayRef = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sept?(?:ember)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\.? (\d{1,2})(?:st|nd|rd|th)?\b(?:,? (\d{4}))?`)
)

var monthPrefixes = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// WindowGuard checks that every date the answer mentions falls inside the
// active time window, inclusive. A zero window disables the check.
type WindowGuard struct{}

// Name implements Guard.
func (WindowGuard) Name() string { return "window" }

// Check implements Guard.
func (WindowGuard) Check(in Input) Report {
	if in.Window.IsZero() {
		return newReport(WindowGuard{}.Name(), nil)
	}

	var failures []Failure
	for _, d := range mentionedDates(in.Answer, in.Window.End.Year(), in.Window.End.Location()) {
		if in.Window.Contains(d.when) {
			continue
		}
		failures = append(failures, Failure{
			Code: CodeDateOutOfRange,
			Detail: fmt.Sprintf("%q is outside %s to %s", d.text,
				in.Window.Start.Format("2006-01-02"), in.Window.End.Format("2006-01-02")),
		})
	}
	return newReport(WindowGuard{}.Name(), failures)
}

type mention struct {
	when time.Time
	text string
}

// mentionedDates finds dates in text. A month and day with no year takes
// defaultYear.
func mentionedDates(text string, defaultYear int, loc *time.Location) []mention {
	var out []mention
	add := func(raw string, y int, m time.Month, d int) {
		t := time.Date(y, m, d, 0, 0, 0, 0, loc)
		// Reject rollovers such as February 30.
		if t.Month() != m || t.Day() != d {
			return
		}
		out = append(out, mention{when: t, text: raw})
	}

	for _, m := range isoDate.FindAllStringSubmatch(text, -1) {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if mo >= 1 && mo <= 12 {
			add(m[0], y, time.Month(mo), d)
		}
	}
	for _, m := range slashDate.FindAllStringSubmatch(text, -1) {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		y, _ := strconv.Atoi(m[3])
		if mo >= 1 && mo <= 12 {
			add(m[0], y, time.Month(mo), d)
		}
	}
	for _, m := range monthDayRef.FindAllStringSubmatch(text, -1) {
		month, ok := monthPrefixes[strings.ToLower(m[1])[:3]]
		if !ok {
			continue
		}
		d, _ := strconv.Atoi(m[2])
		y := defaultYear
		if m[3] != "" {
			y, _ = strconv.Atoi(m[3])
		}
		add(m[0], y, month, d)
	}
	return out
}

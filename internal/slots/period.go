package slots

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/fincoach/internal/model"
)

type periodRule struct {
	re         *regexp.Regexp
	build      func(m []string, now time.Time) (model.Period, bool)
	confidence float64
}

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
}

var periodRules = []periodRule{
	{re: regexp.MustCompile(`(?i)\btoday\b`), confidence: 0.95, build: func(_ []string, now time.Time) (model.Period, bool) {
		return dayPeriod(now, "today"), true
	}},
	{re: regexp.MustCompile(`(?i)\byesterday\b`), confidence: 0.95, build: func(_ []string, now time.Time) (model.Period, bool) {
		return dayPeriod(now.AddDate(0, 0, -1), "yesterday"), true
	}},
	{re: regexp.MustCompile(`(?i)\b(this|last|previous|next) week\b`), confidence: 0.9, build: func(m []string, now time.Time) (model.Period, bool) {
		start := startOfWeek(now)
		switch strings.ToLower(m[1]) {
		case "last", "previous":
			start = start.AddDate(0, 0, -7)
		case "next":
			start = start.AddDate(0, 0, 7)
		}
		return model.Period{Start: start, End: start.AddDate(0, 0, 6), Label: strings.ToLower(m[1]) + " week"}, true
	}},
	{re: regexp.MustCompile(`(?i)\b(this|last|previous|next) month\b`), confidence: 0.95, build: func(m []string, now time.Time) (model.Period, bool) {
		switch strings.ToLower(m[1]) {
		case "last", "previous":
			return model.MonthOf(firstOfMonth(now).AddDate(0, -1, 0)), true
		case "next":
			return model.MonthOf(firstOfMonth(now).AddDate(0, 1, 0)), true
		}
		return model.MonthOf(now), true
	}},
	{re: regexp.MustCompile(`(?i)\b(this|last|previous) quarter\b`), confidence: 0.9, build: func(m []string, now time.Time) (model.Period, bool) {
		q := (int(now.Month()) - 1) / 3
		start := time.Date(now.Year(), time.Month(q*3+1), 1, 0, 0, 0, 0, now.Location())
		if strings.ToLower(m[1]) != "this" {
			start = start.AddDate(0, -3, 0)
		}
		return model.Period{Start: start, End: start.AddDate(0, 3, -1), Label: strings.ToLower(m[1]) + " quarter"}, true
	}},
	{re: regexp.MustCompile(`(?i)\b(this|last|previous) year\b`), confidence: 0.9, build: func(m []string, now time.Time) (model.Period, bool) {
		year := now.Year()
		if strings.ToLower(m[1]) != "this" {
			year--
		}
		start := time.Date(year, time.January, 1, 0, 0, 0, 0, now.Location())
		return model.Period{Start: start, End: start.AddDate(1, 0, -1), Label: strconv.Itoa(year)}, true
	}},
	{re: regexp.MustCompile(`(?i)\b(?:year to date|ytd)\b`), confidence: 0.9, build: func(_ []string, now time.Time) (model.Period, bool) {
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location())
		return model.Period{Start: start, End: truncate(now), Label: "year to date"}, true
	}},
	{re: regexp.MustCompile(`(?i)\b(?:last|past|previous) (\d{1,3}) (days?|weeks?|months?)\b`), confidence: 0.95, build: func(m []string, now time.Time) (model.Period, bool) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return model.Period{}, false
		}
		end := truncate(now)
		var start time.Time
		switch strings.TrimSuffix(strings.ToLower(m[2]), "s") {
		case "day":
			start = end.AddDate(0, 0, -(n - 1))
		case "week":
			start = end.AddDate(0, 0, -(7*n - 1))
		default:
			start = end.AddDate(0, -n, 1)
		}
		return model.Period{Start: start, End: end, Label: "last " + m[1] + " " + strings.ToLower(m[2])}, true
	}},
	// "may" only counts after a preposition, since it is also a verb.
	{re: regexp.MustCompile(`(?i)\b(?:(?:in|for|during|since|of) (may)|(january|february|march|april|june|july|august|september|october|november|december))(?: (\d{4}))?\b`), confidence: 0.9, build: func(m []string, now time.Time) (model.Period, bool) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		month, ok := months[strings.ToLower(name)]
		if !ok {
			return model.Period{}, false
		}
		year := now.Year()
		if m[3] != "" {
			y, err := strconv.Atoi(m[3])
			if err != nil {
				return model.Period{}, false
			}
			year = y
		} else if month > now.Month() {
			// A bare month name means the most recent one.
			year--
		}
		return model.MonthOf(time.Date(year, month, 1, 0, 0, 0, 0, now.Location())), true
	}},
}

func timeCandidates(text string, rc Context) []ResolvedSlot {
	var out []ResolvedSlot
	for _, rule := range periodRules {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		p, ok := rule.build(m, rc.Now)
		if !ok {
			continue
		}
		out = append(out, ResolvedSlot{
			Type:        TypeTimePeriod,
			Value:       p,
			Confidence:  rule.confidence,
			Provenance:  ProvenanceExplicit,
			MatchedText: m[0],
		})
	}
	return out
}

func defaultPeriod(now time.Time) ResolvedSlot {
	return ResolvedSlot{
		Type:       TypeTimePeriod,
		Value:      model.MonthOf(now),
		Confidence: 0.5,
		Provenance: ProvenanceDefault,
	}
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func dayPeriod(t time.Time, label string) model.Period {
	d := truncate(t)
	return model.Period{Start: d, End: d, Label: label}
}

// startOfWeek returns the Monday on or before t.
func startOfWeek(t time.Time) time.Time {
	d := truncate(t)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// Package wmotime resolves the partial date and time strings found in WMO
// text products against a format string and a context instant. Bulletins
// routinely encode only a day and a time; the context instant supplies the
// missing year and month, and a date resolved earlier in a bulletin
// becomes the context for dates resolved later.
package wmotime

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// zoneOffsets maps time-zone abbreviations to fixed offsets in seconds
// east of UTC. Abbreviations are rewritten to these offsets before
// parsing; no daylight-saving calendar logic is consulted.
var zoneOffsets = map[string]int{
	"UTC":  0,
	"GMT":  0,
	"Z":    0,
	"AST":  -4 * 3600,
	"EDT":  -4 * 3600,
	"EST":  -5 * 3600,
	"CDT":  -5 * 3600,
	"CST":  -6 * 3600,
	"MDT":  -6 * 3600,
	"MST":  -7 * 3600,
	"PDT":  -7 * 3600,
	"PST":  -8 * 3600,
	"AKDT": -8 * 3600,
	"AKST": -9 * 3600,
	"HST":  -10 * 3600,
	"HDT":  -9 * 3600,
	"SST":  -11 * 3600,
	"CHST": 10 * 3600,
}

// tokens is the placeholder vocabulary accepted in format strings.
// Adjacent numeric tokens (e.g. "%I%M" against "1100") resolve by regex
// backtracking.
var tokens = [...]struct{ tok, re string }{
	{"%I", `(?P<hour12>\d{1,2})`},
	{"%H", `(?P<hour>\d{1,2})`},
	{"%M", `(?P<minute>\d{2})`},
	{"%p", `(?P<ampm>[AP]M)`},
	{"%Z", `(?P<zone>[A-Z]{1,5})`},
	{"%a", `(?P<weekday>[A-Za-z]{3,9})`},
	{"%d", `(?P<day>\d{1,2})`},
	{"%B", `(?P<month>[A-Za-z]{3,9})`},
	{"%Y", `(?P<year>\d{4})`},
	{"%y", `(?P<year2>\d{2})`},
}

var monthsByPrefix = map[string]time.Month{
	"JAN": time.January, "FEB": time.February, "MAR": time.March,
	"APR": time.April, "MAY": time.May, "JUN": time.June,
	"JUL": time.July, "AUG": time.August, "SEP": time.September,
	"OCT": time.October, "NOV": time.November, "DEC": time.December,
}

var (
	formatMu    sync.Mutex
	formatCache = map[string]*regexp.Regexp{}
)

func compileFormat(format string) *regexp.Regexp {
	formatMu.Lock()
	defer formatMu.Unlock()
	if re, ok := formatCache[format]; ok {
		return re
	}
	expanded := regexp.QuoteMeta(format)
	for _, t := range tokens {
		expanded = strings.ReplaceAll(expanded, t.tok, t.re)
	}
	// Whitespace in formats matches any run of spaces.
	expanded = strings.ReplaceAll(expanded, ` `, `\s+`)
	re := regexp.MustCompile(`(?i)^` + expanded + `$`)
	formatCache[format] = re
	return re
}

// Value is a resolved absolute instant together with the raw text and
// format it was derived from.
type Value struct {
	Time   time.Time
	Raw    string
	Format string
}

// Resolve parses raw against format and fills components the format does
// not cover from ctx. It fails when the text cannot satisfy the format,
// when a missing component has no context to fall back on, or when the
// result is calendar-invalid. The returned instant is in UTC.
func Resolve(raw, format string, ctx time.Time) (Value, error) {
	v := Value{Raw: raw, Format: format}
	re := compileFormat(format)
	trimmed := strings.TrimSpace(raw)
	m := re.FindStringSubmatch(trimmed)
	if m == nil {
		return v, fmt.Errorf("cannot parse %q as %q", raw, format)
	}

	caps := map[string]string{}
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		caps[name] = m[i]
	}

	hour, err := resolveHour(caps)
	if err != nil {
		return v, err
	}
	minute := 0
	if s, ok := caps["minute"]; ok {
		minute, _ = strconv.Atoi(s)
		if minute > 59 {
			return v, fmt.Errorf("minute %d out of range in %q", minute, raw)
		}
	}

	offset := 0
	if abbr, ok := caps["zone"]; ok {
		off, known := zoneOffsets[strings.ToUpper(abbr)]
		if !known {
			return v, fmt.Errorf("unknown time zone abbreviation %q", abbr)
		}
		offset = off
	}

	year := 0
	switch {
	case caps["year"] != "":
		year, _ = strconv.Atoi(caps["year"])
	case caps["year2"] != "":
		y2, _ := strconv.Atoi(caps["year2"])
		year = 2000 + y2
	default:
		if ctx.IsZero() {
			return v, fmt.Errorf("no year in %q and no context to supply one", raw)
		}
		year = ctx.Year()
	}

	var month time.Month
	if name, ok := caps["month"]; ok {
		mo, err := monthByName(name)
		if err != nil {
			return v, err
		}
		month = mo
	} else {
		if ctx.IsZero() {
			return v, fmt.Errorf("no month in %q and no context to supply one", raw)
		}
		month = ctx.Month()
	}

	day := 0
	if s, ok := caps["day"]; ok {
		day, _ = strconv.Atoi(s)
	} else {
		if ctx.IsZero() {
			return v, fmt.Errorf("no day in %q and no context to supply one", raw)
		}
		day = ctx.Day()
	}

	loc := time.UTC
	if offset != 0 {
		loc = time.FixedZone(fmt.Sprintf("UTC%+d", offset/3600), offset)
	}
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if t.Day() != day || t.Month() != month {
		return v, fmt.Errorf("calendar-invalid date %04d-%02d-%02d from %q", year, month, day, raw)
	}
	v.Time = t.UTC()
	return v, nil
}

// resolveHour combines the 12/24-hour tokens. A literal "0" 12-hour value
// is read as 12 before the AM/PM conversion.
func resolveHour(caps map[string]string) (int, error) {
	if s, ok := caps["hour12"]; ok {
		h, _ := strconv.Atoi(s)
		if h == 0 {
			h = 12
		}
		if h > 12 {
			return 0, fmt.Errorf("12-hour value %d out of range", h)
		}
		switch caps["ampm"] {
		case "AM", "am":
			if h == 12 {
				h = 0
			}
		case "PM", "pm":
			if h != 12 {
				h += 12
			}
		}
		return h, nil
	}
	if s, ok := caps["hour"]; ok {
		h, _ := strconv.Atoi(s)
		if h > 23 {
			return 0, fmt.Errorf("hour %d out of range", h)
		}
		return h, nil
	}
	return 0, nil
}

func monthByName(name string) (time.Month, error) {
	up := strings.ToUpper(name)
	if len(up) < 3 {
		return 0, fmt.Errorf("unknown month %q", name)
	}
	mo, ok := monthsByPrefix[up[:3]]
	if !ok {
		return 0, fmt.Errorf("unknown month %q", name)
	}
	return mo, nil
}

// ResolveDayHourMinute resolves a 6-digit DDHHMM group, the nominal
// datetime form used in abbreviated headings, against ctx.
func ResolveDayHourMinute(s string, ctx time.Time) (time.Time, error) {
	if len(s) != 6 {
		return time.Time{}, fmt.Errorf("DDHHMM group %q is not 6 digits", s)
	}
	day, err1 := strconv.Atoi(s[0:2])
	hour, err2 := strconv.Atoi(s[2:4])
	minute, err3 := strconv.Atoi(s[4:6])
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, fmt.Errorf("DDHHMM group %q is not numeric", s)
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("DDHHMM group %q has out-of-range time", s)
	}
	if ctx.IsZero() {
		return time.Time{}, fmt.Errorf("no context to resolve DDHHMM group %q", s)
	}
	t := time.Date(ctx.Year(), ctx.Month(), day, hour, minute, 0, 0, time.UTC)
	if t.Day() != day {
		return time.Time{}, fmt.Errorf("calendar-invalid day %d in %q", day, s)
	}
	return t, nil
}

// ResolveBefore resolves raw/format against ctx on the assumption that the
// result lies at or before ctx. When straight resolution lands after ctx,
// or is calendar-invalid in ctx's month, the previous month supplies the
// context instead. Ranges written end-first (a VALID window crossing a
// month boundary) resolve their start this way.
func ResolveBefore(raw, format string, ctx time.Time) (Value, error) {
	v, err := Resolve(raw, format, ctx)
	if err == nil && !v.Time.After(ctx) {
		return v, nil
	}
	prev := time.Date(ctx.Year(), ctx.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	v2, err2 := Resolve(raw, format, prev)
	if err2 != nil {
		if err != nil {
			return v, err
		}
		return v, err2
	}
	return v2, nil
}

// ResolveAfter is the mirror of ResolveBefore: the result is assumed to
// lie at or after ctx, rolling into the next month when needed. Window
// ends resolve against their starts this way.
func ResolveAfter(raw, format string, ctx time.Time) (Value, error) {
	v, err := Resolve(raw, format, ctx)
	if err == nil && !v.Time.Before(ctx) {
		return v, nil
	}
	next := time.Date(ctx.Year(), ctx.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	v2, err2 := Resolve(raw, format, next)
	if err2 != nil {
		if err != nil {
			return v, err
		}
		return v, err2
	}
	return v2, nil
}

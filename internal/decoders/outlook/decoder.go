// Package outlook decodes the Tropical Weather Outlook: a mixed-case
// bulletin listing zero or more areas of interest, each with two
// formation-chance statements.
package outlook

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"recon_parser/internal/bulletin"
	"recon_parser/internal/cursor"
	"recon_parser/internal/patterns"
	"recon_parser/internal/registry"
	"recon_parser/internal/wmotime"
)

// Record is one decoded outlook bulletin.
type Record struct {
	Issuer        string    `json:"issuer"`
	IssuedBy      *string   `json:"issued_by"` // secondary issuing office
	Issued        time.Time `json:"issued"`
	Region        string    `json:"region"`
	ActiveSystems *string   `json:"active_systems"`
	Remark        *string   `json:"remark"`
	Areas         []Area    `json:"areas"`
}

func (r *Record) Kind() string { return "two" }

// Area is one numbered area of interest.
type Area struct {
	Number   int             `json:"number"`
	Title    string          `json:"title"`
	ID       *string         `json:"id"` // parenthesized invest id, e.g. AL94
	Text     string          `json:"text"`
	TwoDay   FormationChance `json:"two_day"`
	Extended FormationChance `json:"extended"`
}

// FormationChance is one formation-chance statement.
type FormationChance struct {
	Horizon string `json:"horizon"` // "48 hours" or "N days"
	Level   string `json:"level"`
	Percent int    `json:"percent"`
	Near    bool   `json:"near"`
}

var (
	anyLineRE  = regexp.MustCompile(`^.*$`)
	blankRE    = regexp.MustCompile(`^$`)
	sentinelRE = regexp.MustCompile(`^\$\$$`)

	issuanceRE = regexp.MustCompile(`(?i)^\d{1,4} [AP]M [A-Z]{2,5} [A-Z]{3} [A-Z]{3} \d{1,2} \d{4}$`)
	issuedByRE = regexp.MustCompile(`(?i)^Issued by (.+)$`)
	regionRE   = regexp.MustCompile(`(?i)^For (?:the )?(.+?):?$`)
	activeRE   = regexp.MustCompile(`(?i)^Active Systems:$`)
	areaRE     = regexp.MustCompile(`(?i)^(\d+)\. (.+?)(?: \(([A-Z]{2}\d{2})\))?:?$`)
	chanceRE   = regexp.MustCompile(`(?i)^\*?\s*Formation chance`)
)

var (
	chanceOnce     sync.Once
	chanceCompiler *patterns.Compiler
	chanceErr      error
)

var chanceFormats = []patterns.Format{
	{
		Name: "chance",
		Pattern: `(?i)^\*?\s*Formation chance through (?P<horizon>48 hours|\d+ days)` +
			`\.+(?P<level>{CHANCELEVEL})\.+(?:(?P<near>near)\s+)?(?P<pct>{PERCENT}) percent\.?$`,
	},
}

func getChanceCompiler() (*patterns.Compiler, error) {
	chanceOnce.Do(func() {
		chanceCompiler = patterns.NewCompiler(chanceFormats, nil)
		chanceErr = chanceCompiler.Compile()
	})
	return chanceCompiler, chanceErr
}

var (
	stopArea     = cursor.StopAt(areaRE)
	stopChance   = cursor.StopAt(chanceRE)
	stopBlank    = cursor.StopAt(blankRE)
	stopSentinel = cursor.Sentinel
)

func init() { registry.Register(&Decoder{}) }

// Decoder decodes Tropical Weather Outlook bulletins.
type Decoder struct{}

func (d *Decoder) Name() string { return "two" }

func (d *Decoder) Designators() []string {
	return []string{"ABNT20", "ABPZ20", "ACPN50", "TTAA00"}
}

func (d *Decoder) Decode(cur *cursor.Cursor, hdr *bulletin.Header) (registry.Record, error) {
	rec := &Record{Areas: []Area{}}

	// Title and issuer lines run up to the issuance date; the issuer is
	// the last of them, except for an "Issued by" override line.
	var seen []string
	var issuedLine string
	for {
		if m := cur.TryConsume(issuanceRE); m != nil {
			issuedLine = m[0]
			break
		}
		line, ok := cur.Peek(0)
		if !ok || cursor.Sentinel(line) {
			return nil, cur.Errorf("missing issuance date line")
		}
		cur.TryConsume(anyLineRE)
		if t := strings.TrimSpace(line); t != "" {
			seen = append(seen, t)
		}
	}
	for _, line := range seen {
		if m := issuedByRE.FindStringSubmatch(line); m != nil {
			by := m[1]
			rec.IssuedBy = &by
			continue
		}
		rec.Issuer = line
	}
	iv, err := wmotime.Resolve(issuedLine, "%I%M %p %Z %a %B %d %Y", hdr.Issued)
	if err != nil {
		return nil, cur.Wrap(err)
	}
	rec.Issued = iv.Time

	if err := d.decodeRegion(cur, rec); err != nil {
		return nil, err
	}

	if cur.TryConsume(activeRE) != nil {
		lines := cur.ConsumeUntil(stopBlank, stopArea, stopSentinel)
		text := joinText(lines)
		if text != "" {
			rec.ActiveSystems = &text
		}
		skipBlanks(cur)
	}

	// Preface remark before the first numbered area.
	remark := joinText(cur.ConsumeUntil(stopArea, stopSentinel))

	for {
		m := cur.TryConsume(areaRE)
		if m == nil {
			break
		}
		area, err := d.decodeArea(cur, m)
		if err != nil {
			return nil, err
		}
		rec.Areas = append(rec.Areas, area)
	}

	// Whatever precedes the sentinel is a trailing remark, appended to
	// the preface.
	if trailing := joinText(cur.ConsumeUntil(stopSentinel)); trailing != "" {
		if remark != "" {
			remark += " "
		}
		remark += trailing
	}
	if remark != "" {
		rec.Remark = &remark
	}
	cur.TryConsume(sentinelRE)
	return rec, nil
}

// decodeRegion consumes the "For the <region>:" statement. The
// statement may be preceded by wrapped lead-in lines and may itself
// wrap across lines until the closing colon.
func (d *Decoder) decodeRegion(cur *cursor.Cursor, rec *Record) error {
	var line string
	for {
		l, ok := cur.Peek(0)
		if !ok || cursor.Sentinel(l) {
			return cur.Errorf("expected region statement")
		}
		cur.TryConsume(anyLineRE)
		if regionRE.MatchString(strings.TrimSpace(l)) {
			line = l
			break
		}
	}
	parts := []string{strings.TrimSpace(line)}
	for !strings.HasSuffix(parts[len(parts)-1], ":") {
		next, ok := cur.Peek(0)
		if !ok || cursor.Sentinel(next) {
			break
		}
		parts = append(parts, strings.TrimSpace(next))
		cur.TryConsume(anyLineRE)
	}
	m := regionRE.FindStringSubmatch(strings.Join(parts, " "))
	if m == nil {
		return cur.Errorf("malformed region statement")
	}
	rec.Region = m[1]
	return nil
}

func (d *Decoder) decodeArea(cur *cursor.Cursor, m []string) (Area, error) {
	number, _ := strconv.Atoi(m[1])
	area := Area{Number: number, Title: m[2]}
	if m[3] != "" {
		id := m[3]
		area.ID = &id
	}

	area.Text = joinText(cur.ConsumeUntil(stopChance, stopArea, stopSentinel))

	twoDay, err := d.decodeChance(cur)
	if err != nil {
		return area, err
	}
	extended, err := d.decodeChance(cur)
	if err != nil {
		return area, err
	}
	if !strings.EqualFold(twoDay.Horizon, "48 hours") {
		return area, cur.Errorf("first formation chance of area %d must use 48-hour phrasing, got %q",
			number, twoDay.Horizon)
	}
	if strings.EqualFold(extended.Horizon, "48 hours") {
		return area, cur.Errorf("second formation chance of area %d must use day phrasing", number)
	}
	area.TwoDay = twoDay
	area.Extended = extended
	return area, nil
}

func (d *Decoder) decodeChance(cur *cursor.Cursor) (FormationChance, error) {
	line, ok := cur.Peek(0)
	if !ok || !chanceRE.MatchString(strings.TrimSpace(line)) {
		return FormationChance{}, cur.Errorf("expected formation chance statement")
	}
	cur.TryConsume(anyLineRE)
	c, err := getChanceCompiler()
	if err != nil {
		return FormationChance{}, cur.Wrap(err)
	}
	line = strings.TrimSpace(line)
	match := c.Parse(line)
	if match == nil {
		return FormationChance{}, cur.Errorf("malformed formation chance statement %q", line)
	}
	pct, _ := strconv.Atoi(match.Get("pct", "0"))
	return FormationChance{
		Horizon: strings.ToLower(match.Get("horizon", "")),
		Level:   strings.ToLower(match.Get("level", "")),
		Percent: pct,
		Near:    match.Get("near", "") != "",
	}, nil
}

func skipBlanks(cur *cursor.Cursor) {
	for {
		line, ok := cur.Peek(0)
		if !ok || strings.TrimSpace(line) != "" {
			return
		}
		cur.TryConsume(anyLineRE)
	}
}

func joinText(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

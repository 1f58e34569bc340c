// Package tcpod decodes the Tropical Cyclone Plan of the Day (and its
// winter-storm sibling, the WSPOD): a multi-basin, multi-storm tasking
// bulletin with lettered mission fields, outlook statements, free-text
// remarks and natural-language cancellations.
package tcpod

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"recon_parser/internal/bulletin"
	"recon_parser/internal/cursor"
	"recon_parser/internal/registry"
	"recon_parser/internal/wmotime"
)

// Record is the decoded plan of the day.
type Record struct {
	Subject   string    `json:"subject"`
	Issued    time.Time `json:"issued"`
	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
	Plan      Plan      `json:"plan"`
	Remark    *string   `json:"remark"` // free text before the first basin
	Primary   Basin     `json:"primary"`
	Secondary Basin     `json:"secondary"`
	Note      *string   `json:"note"`
}

func (r *Record) Kind() string { return "tcpod" }

// Plan is the plan identifier line.
type Plan struct {
	ID        string `json:"id"` // e.g. TCPOD-25-148
	TC        bool   `json:"tc"` // false for winter-storm (WSPOD) plans
	Year      int    `json:"year"`
	Sequence  int    `json:"sequence"`
	Corrected bool   `json:"corrected"`
	Amended   bool   `json:"amended"`
}

// Basin is one of the two basin sections. A bulletin may omit a basin
// entirely; Name is nil in that case and every list is empty.
type Basin struct {
	Name           *string        `json:"name"`
	Changed        bool           `json:"changed"`
	Negative       bool           `json:"negative"` // explicit NEGATIVE RECONNAISSANCE REQUIREMENTS
	Storms         []Storm        `json:"storms"`
	Outlooks       []Outlook      `json:"outlooks"`
	Remarks        []string       `json:"remarks"`
	RemarksChanged bool           `json:"remarks_changed"`
	Cancellations  []Cancellation `json:"cancellations"`
}

// Storm is a named storm with its missions, or a training container
// holding raw flight text when the apparent name line is itself a
// flight line.
type Storm struct {
	Name     string    `json:"name"`
	Training bool      `json:"training"`
	Text     *string   `json:"text"` // raw mission text for training containers
	Missions []Mission `json:"missions"`
}

// Window is a start/end pair of instants.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LatLon is a decimal-degree coordinate; south and west are negative.
type LatLon struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Mission binds the lettered sub-fields A-I of one tasked flight.
type Mission struct {
	Flight             string    `json:"flight"`
	Required           Window    `json:"required"`  // A
	ID                 string    `json:"id"`        // B
	Departure          time.Time `json:"departure"` // C
	Target             *LatLon   `json:"target"`    // D, nil when not applicable
	FixWindow          *Window   `json:"fix_window"` // E, nil when not applicable
	Altitude           string    `json:"altitude"`  // F
	Profile            string    `json:"profile"`   // G
	ActivationRequired bool      `json:"activation_required"` // H
	Remark             *string   `json:"remark"`    // I, optional
}

// Outlook is one outlook statement.
type Outlook struct {
	Negative   bool   `json:"negative"`
	Additional bool   `json:"additional"` // additional / succeeding-day outlook
	Text       string `json:"text"`
}

var (
	productTagRE = regexp.MustCompile(`^REP[A-Z0-9]{3}$`)
	anyLineRE    = regexp.MustCompile(`^.*$`)
	issuanceRE   = regexp.MustCompile(`^(\d{1,4} [AP]M [A-Z]{3,4} [A-Z]{3,9} \d{1,2} [A-Z]{3,9} \d{4})$`)
	subjectRE    = regexp.MustCompile(`^SUBJECT: *(.+)$`)
	validRE      = regexp.MustCompile(`^VALID (\d{1,2}/\d{4}Z) TO (\d{1,2}/\d{4}Z) ([A-Z]{3,9}) (\d{4})\.?$`)
	planRE       = regexp.MustCompile(`^((?:TC|WS)POD) NUMBER\.+(\d{2})-(\d{3})(?: (CORRECTION|AMENDMENT))?\.?$`)
	basinRE      = regexp.MustCompile(`^(I{1,2})\. +(.+?) REQUIREMENTS( \(CHANGED\))?$`)
	numberedRE   = regexp.MustCompile(`^(\d+)\. +(.*)$`)
	letteredRE   = regexp.MustCompile(`^([A-Z])\. +(.*)$`)
	noteRE       = regexp.MustCompile(`^NOTE: *(.*)$`)
	sentinelRE   = regexp.MustCompile(`^\$\$$`)

	negativeReconRE = regexp.MustCompile(`^NEGATIVE RECONNAISSANCE REQUIREMENTS\.?$`)
	outlookHeadRE   = regexp.MustCompile(`^OUTLOOK[A-Z ]*\.*\s*(.*)$`)
	remarksHeadRE   = regexp.MustCompile(`^REMARKS:?\.*( \(CHANGED\))?\.*\s*(.*)$`)

	suspectRE = regexp.MustCompile(`^SUSPECT AREA \((.+?)\)\.?$`)
	classRE   = regexp.MustCompile(`^(?:HURRICANE|TYPHOON|SUPER TYPHOON|TROPICAL STORM|TROPICAL DEPRESSION|SUBTROPICAL STORM|SUBTROPICAL DEPRESSION|POTENTIAL TROPICAL CYCLONE|REMNANTS OF) +(.+?)\.?$`)

	// A numbered line that is actually a flight line rather than a storm
	// name. Decided by lookahead before the line is treated as a name.
	flightLikeRE = regexp.MustCompile(`^(?:FLIGHT\b|(?:TEAL|NOAA|AF\d{3}|KERMIT|MISS PIGGY|GONZO)\b)`)

	flightRE = regexp.MustCompile(`(?m)^\s*FLIGHT [A-Z]+(?: [A-Z]+)? *- *(.+?)(?:  |$)`)

	windowRE = regexp.MustCompile(`^(\d{1,2}/\d{4}Z)[, ]+(\d{1,2}/\d{4}Z)$`)
	rangeRE  = regexp.MustCompile(`^(\d{1,2}/\d{4}Z) TO (\d{1,2}/\d{4}Z)$`)
	coordRE  = regexp.MustCompile(`^(\d{1,3}\.\d)([NS]) +(\d{1,3}\.\d)([EW])$`)
	naRE     = regexp.MustCompile(`^(?:NA|N/A|NOT APPLICABLE)\.?$`)
)

// letterREs matches one lettered field per key, in repeat-match mode
// across a storm block. Values terminate at a double space or end of
// line.
var letterREs = map[byte]*regexp.Regexp{}

func init() {
	for l := byte('A'); l <= 'I'; l++ {
		letterREs[l] = regexp.MustCompile(fmt.Sprintf(`(?m)^\s*%c\. +(.*?)(?:  |$)`, l))
	}
	registry.Register(&Decoder{})
}

var (
	stopNumbered = cursor.StopAt(numberedRE)
	stopLettered = cursor.StopAt(letteredRE)
	stopBasin    = cursor.StopAt(basinRE)
	stopNote     = cursor.StopAt(noteRE)
)

// Decoder decodes TCPOD/WSPOD bulletins.
type Decoder struct{}

func (d *Decoder) Name() string { return "tcpod" }

func (d *Decoder) Designators() []string { return []string{"NOUS42"} }

func (d *Decoder) Decode(cur *cursor.Cursor, hdr *bulletin.Header) (registry.Record, error) {
	rec := &Record{}

	// Product tag and boilerplate run up to the issuance time line.
	cur.TryConsume(productTagRE)
	var issuedLine string
	for {
		if m := cur.TryConsume(issuanceRE); m != nil {
			issuedLine = m[1]
			break
		}
		line, ok := cur.Peek(0)
		if !ok || cursor.Sentinel(line) {
			return nil, cur.Errorf("missing issuance time line")
		}
		cur.TryConsume(anyLineRE)
	}
	iv, err := wmotime.Resolve(issuedLine, "%I%M %p %Z %a %d %B %Y", hdr.Issued)
	if err != nil {
		return nil, cur.Wrap(err)
	}
	rec.Issued = iv.Time

	m, err := cur.RequireConsume(subjectRE, "expected SUBJECT line")
	if err != nil {
		return nil, err
	}
	rec.Subject = m[1]

	m, err = cur.RequireConsume(validRE, "expected VALID range line")
	if err != nil {
		return nil, err
	}
	// The month and year attach to the end of the range; the start
	// resolves against the end so an end-of-month rollover carries the
	// start back into the previous month.
	end, err := wmotime.Resolve(m[2]+" "+m[3]+" "+m[4], "%d/%H%MZ %B %Y", rec.Issued)
	if err != nil {
		return nil, cur.Wrap(err)
	}
	start, err := wmotime.ResolveBefore(m[1], "%d/%H%MZ", end.Time)
	if err != nil {
		return nil, cur.Wrap(err)
	}
	rec.ValidFrom = start.Time
	rec.ValidTo = end.Time

	m, err = cur.RequireConsume(planRE, "expected plan identifier line")
	if err != nil {
		return nil, err
	}
	year, _ := strconv.Atoi(m[2])
	seq, _ := strconv.Atoi(m[3])
	rec.Plan = Plan{
		ID:        fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3]),
		TC:        m[1] == "TCPOD",
		Year:      year,
		Sequence:  seq,
		Corrected: m[4] == "CORRECTION",
		Amended:   m[4] == "AMENDMENT",
	}

	// Optional free-text remark before the first basin.
	if lines := cur.ConsumeUntil(stopBasin, stopNote, cursor.Sentinel); len(lines) > 0 {
		remark := joinText(lines)
		if remark != "" {
			rec.Remark = &remark
		}
	}

	primary, err := d.decodeBasin(cur, rec, "I")
	if err != nil {
		return nil, err
	}
	rec.Primary = primary

	secondary, err := d.decodeBasin(cur, rec, "II")
	if err != nil {
		return nil, err
	}
	rec.Secondary = secondary

	if m := cur.TryConsume(noteRE); m != nil {
		lines := cur.ConsumeUntil(cursor.Sentinel)
		note := joinText(append([]string{m[1]}, lines...))
		rec.Note = &note
	}
	cur.TryConsume(sentinelRE)

	return rec, nil
}

// emptyBasin is the shape of an omitted basin section: name absent,
// every list present but empty.
func emptyBasin() Basin {
	return Basin{
		Storms:        []Storm{},
		Outlooks:      []Outlook{},
		Remarks:       []string{},
		Cancellations: []Cancellation{},
	}
}

func (d *Decoder) decodeBasin(cur *cursor.Cursor, rec *Record, numeral string) (Basin, error) {
	b := emptyBasin()

	line, ok := cur.Peek(0)
	if !ok {
		return b, nil
	}
	head := basinRE.FindStringSubmatch(strings.TrimSpace(line))
	if head == nil || head[1] != numeral {
		// Null basin: the bulletin omits this section entirely.
		return b, nil
	}
	cur.TryConsume(basinRE)
	name := head[2]
	b.Name = &name
	b.Changed = head[3] != ""

	for {
		line, ok := cur.Peek(0)
		if !ok {
			return b, nil
		}
		t := strings.TrimSpace(line)
		if cursor.Sentinel(line) || noteRE.MatchString(t) || basinRE.MatchString(t) {
			return b, nil
		}

		m := cur.TryConsume(numberedRE)
		if m == nil {
			return b, cur.Errorf("expected numbered section in %s basin", name)
		}
		sect := m[2]
		switch {
		case negativeReconRE.MatchString(sect):
			b.Negative = true
		case strings.HasPrefix(sect, "OUTLOOK"):
			if err := d.decodeOutlook(cur, &b, sect); err != nil {
				return b, err
			}
		case strings.HasPrefix(sect, "REMARKS"):
			if err := d.decodeRemarks(cur, &b, rec, sect); err != nil {
				return b, err
			}
		default:
			storm, err := d.decodeStorm(cur, rec, sect)
			if err != nil {
				return b, err
			}
			b.Storms = append(b.Storms, storm)
		}
	}
}

func (d *Decoder) decodeStorm(cur *cursor.Cursor, rec *Record, nameLine string) (Storm, error) {
	if flightLikeRE.MatchString(nameLine) {
		// The apparent name line is a flight line: a training or
		// non-storm tasking. Its missions stay as raw text.
		lines := cur.ConsumeUntil(stopNumbered, stopBasin, stopNote, cursor.Sentinel)
		text := joinText(append([]string{nameLine}, lines...))
		return Storm{Training: true, Text: &text, Missions: []Mission{}}, nil
	}

	name := strings.TrimSuffix(nameLine, ".")
	if m := suspectRE.FindStringSubmatch(nameLine); m != nil {
		name = m[1]
	} else if m := classRE.FindStringSubmatch(nameLine); m != nil {
		name = m[1]
	}

	block := strings.Join(cur.ConsumeUntil(stopNumbered, stopBasin, stopNote, cursor.Sentinel), "\n")
	flights := flightRE.FindAllStringSubmatch(block, -1)
	if len(flights) == 0 {
		return Storm{}, cur.Errorf("storm %s has no flight lines", name)
	}

	values := map[byte][][]string{}
	for l := byte('A'); l <= 'I'; l++ {
		values[l] = letterREs[l].FindAllStringSubmatch(block, -1)
	}
	for l := byte('A'); l <= 'H'; l++ {
		if len(values[l]) != len(flights) {
			return Storm{}, cur.Errorf(
				"storm %s: lettered field %c occurs %d times for %d flights",
				name, l, len(values[l]), len(flights))
		}
	}
	if n := len(values['I']); n != 0 && n != len(flights) {
		return Storm{}, cur.Errorf(
			"storm %s: optional field I occurs %d times for %d flights",
			name, n, len(flights))
	}

	storm := Storm{Name: name, Missions: make([]Mission, 0, len(flights))}
	for i, fm := range flights {
		vals := map[byte]string{}
		for l := byte('A'); l <= 'H'; l++ {
			vals[l] = strings.TrimSpace(values[l][i][1])
		}
		if len(values['I']) > 0 {
			vals['I'] = strings.TrimSpace(values['I'][i][1])
		}
		mission, err := d.decodeMission(cur, rec, strings.TrimSpace(fm[1]), vals)
		if err != nil {
			return Storm{}, err
		}
		storm.Missions = append(storm.Missions, mission)
	}
	return storm, nil
}

func (d *Decoder) decodeMission(cur *cursor.Cursor, rec *Record, flight string, vals map[byte]string) (Mission, error) {
	mi := Mission{Flight: flight}

	m := windowRE.FindStringSubmatch(vals['A'])
	if m == nil {
		return mi, cur.Errorf("mission %s: malformed required window %q", flight, vals['A'])
	}
	start, err := wmotime.ResolveAfter(m[1], "%d/%H%MZ", rec.Issued)
	if err != nil {
		return mi, cur.Wrap(err)
	}
	end, err := wmotime.ResolveAfter(m[2], "%d/%H%MZ", start.Time)
	if err != nil {
		return mi, cur.Wrap(err)
	}
	mi.Required = Window{Start: start.Time, End: end.Time}

	mi.ID = vals['B']

	dep, err := wmotime.ResolveBefore(vals['C'], "%d/%H%MZ", mi.Required.Start)
	if err != nil {
		return mi, cur.Wrap(err)
	}
	mi.Departure = dep.Time

	if !naRE.MatchString(vals['D']) {
		c := coordRE.FindStringSubmatch(vals['D'])
		if c == nil {
			return mi, cur.Errorf("mission %s: malformed target %q", flight, vals['D'])
		}
		lat, _ := strconv.ParseFloat(c[1], 64)
		lon, _ := strconv.ParseFloat(c[3], 64)
		if c[2] == "S" {
			lat = -lat
		}
		if c[4] == "W" {
			lon = -lon
		}
		mi.Target = &LatLon{Lat: lat, Lon: lon}
	}

	if !naRE.MatchString(vals['E']) {
		r := rangeRE.FindStringSubmatch(vals['E'])
		if r == nil {
			return mi, cur.Errorf("mission %s: malformed fix window %q", flight, vals['E'])
		}
		fs, err := wmotime.ResolveAfter(r[1], "%d/%H%MZ", mi.Required.Start)
		if err != nil {
			return mi, cur.Wrap(err)
		}
		fe, err := wmotime.ResolveAfter(r[2], "%d/%H%MZ", fs.Time)
		if err != nil {
			return mi, cur.Wrap(err)
		}
		mi.FixWindow = &Window{Start: fs.Time, End: fe.Time}
	}

	mi.Altitude = vals['F']
	mi.Profile = vals['G']
	h := vals['H']
	mi.ActivationRequired = !(h == "NO" || strings.HasPrefix(h, "NO ") || strings.HasPrefix(h, "NEGATIVE"))
	if v, ok := vals['I']; ok && v != "" {
		mi.Remark = &v
	}
	return mi, nil
}

func (d *Decoder) decodeOutlook(cur *cursor.Cursor, b *Basin, head string) error {
	additional := len(b.Outlooks) > 0 || strings.Contains(head, "ADDITIONAL")

	first := head
	if m := outlookHeadRE.FindStringSubmatch(head); m != nil && m[1] != "" {
		first = m[1]
	}
	if strings.Contains(head, "NEGATIVE") {
		b.Outlooks = append(b.Outlooks, Outlook{Negative: true, Additional: additional, Text: strings.TrimSuffix(first, ".")})
		return nil
	}

	// First statement: head remainder plus continuation lines.
	cont := cur.ConsumeUntil(stopLettered, stopNumbered, stopBasin, stopNote, cursor.Sentinel)
	if first == head {
		// The label line carried no inline text.
		first = ""
	}
	if text := joinText(append([]string{first}, cont...)); text != "" {
		b.Outlooks = append(b.Outlooks, Outlook{
			Negative:   strings.Contains(text, "NEGATIVE"),
			Additional: additional,
			Text:       text,
		})
	}

	// Lettered sub-points, each its own statement.
	for {
		line, ok := cur.Peek(0)
		if !ok {
			return nil
		}
		t := strings.TrimSpace(line)
		if basinRE.MatchString(t) || numberedRE.MatchString(t) || noteRE.MatchString(t) || cursor.Sentinel(line) {
			return nil
		}
		m := cur.TryConsume(letteredRE)
		if m == nil {
			return cur.Errorf("expected lettered outlook statement")
		}
		cont := cur.ConsumeUntil(stopLettered, stopNumbered, stopBasin, stopNote, cursor.Sentinel)
		text := joinText(append([]string{m[2]}, cont...))
		b.Outlooks = append(b.Outlooks, Outlook{
			Negative:   strings.Contains(text, "NEGATIVE"),
			Additional: additional,
			Text:       text,
		})
	}
}

func (d *Decoder) decodeRemarks(cur *cursor.Cursor, b *Basin, rec *Record, head string) error {
	hm := remarksHeadRE.FindStringSubmatch(head)
	if hm == nil {
		return cur.Errorf("malformed REMARKS section head %q", head)
	}
	b.RemarksChanged = hm[1] != ""

	appendRemark := func(text string) error {
		if text == "" {
			return nil
		}
		b.Remarks = append(b.Remarks, text)
		cancels, err := scanCancellations(text, rec.Issued)
		if err != nil {
			return cur.Wrap(err)
		}
		b.Cancellations = append(b.Cancellations, cancels...)
		return nil
	}

	cont := cur.ConsumeUntil(stopLettered, stopNumbered, stopBasin, stopNote, cursor.Sentinel)
	if err := appendRemark(joinText(append([]string{hm[2]}, cont...))); err != nil {
		return err
	}

	for {
		line, ok := cur.Peek(0)
		if !ok {
			return nil
		}
		t := strings.TrimSpace(line)
		if basinRE.MatchString(t) || numberedRE.MatchString(t) || noteRE.MatchString(t) || cursor.Sentinel(line) {
			return nil
		}
		m := cur.TryConsume(letteredRE)
		if m == nil {
			return cur.Errorf("expected lettered remark")
		}
		cont := cur.ConsumeUntil(stopLettered, stopNumbered, stopBasin, stopNote, cursor.Sentinel)
		if err := appendRemark(joinText(append([]string{m[2]}, cont...))); err != nil {
			return err
		}
	}
}

// joinText trims, drops blanks, and joins accumulated lines with single
// spaces.
func joinText(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Package recco decodes raw aircraft reconnaissance observation
// bulletins (URNT10/URNT11): one fixed-width encoded observation line,
// a RMK mission-identifier line, and a free-form remarks block.
package recco

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"recon_parser/internal/bulletin"
	"recon_parser/internal/cursor"
	"recon_parser/internal/fields"
	"recon_parser/internal/patterns"
	"recon_parser/internal/registry"
	"recon_parser/internal/wmotime"
)

// Record is one decoded reconnaissance observation. Every measured
// field is independently nullable; a nil value means the group was a
// missing-value sentinel, not zero.
type Record struct {
	RadarCapability  *int       `json:"radar_capability"` // -1 / 0 / +1
	Time             *time.Time `json:"time"`
	Quadrant         int        `json:"quadrant"`
	Lat              *float64   `json:"lat"`
	Lon              *float64   `json:"lon"`
	Turbulence       *int       `json:"turbulence"`
	FlightCondition  *int       `json:"flight_condition"`
	PressureAltitude *int       `json:"pressure_altitude"` // meters
	WindDirection    *int       `json:"wind_direction"`    // degrees true
	WindSpeed        *int       `json:"wind_speed"`        // knots
	Temperature      *int       `json:"temperature"`       // whole degrees C
	StaticPressure   *float64   `json:"static_pressure"`   // hPa
	SurfacePressure  *float64   `json:"surface_pressure"`  // hPa, extrapolated
	Mission          Mission    `json:"mission"`
	Remarks          Remarks    `json:"remarks"`
}

func (r *Record) Kind() string { return "recco" }

// Mission is the RMK identifier line.
type Mission struct {
	Agency      string `json:"agency"`
	Aircraft    string `json:"aircraft"`
	MissionSeq  int    `json:"mission_seq"`
	StormID     int    `json:"storm_id"`
	Basin       string `json:"basin"`
	StormName   string `json:"storm_name"`
	Observation int    `json:"observation"`
}

// Remarks is the accumulated free text plus the sub-patterns recognized
// inside it.
type Remarks struct {
	Text          *string `json:"text"`
	SurfaceWind   *int    `json:"surface_wind"` // SWS = N KTS override
	Inbound       bool    `json:"inbound"`
	Outbound      bool    `json:"outbound"`
	Overland      bool    `json:"overland"`
	EstimatedArea bool    `json:"estimated_area"`
	LastReport    bool    `json:"last_report"`
}

// Observation line template, space-separated groups:
//
//	9rrr 9hhmm qLLLL LLLL tc PPPP ddd fff sTT pppp ssss
//
// rrr radar capability code, hhmm observation time, q quadrant,
// LLLL/LLLL latitude and longitude in degrees+minutes (longitude's
// leading hundreds digit inferred from the quadrant), t turbulence,
// c flight condition, PPPP pressure altitude in meters, ddd/fff wind
// direction and speed (fff 999 means not reported), sTT sign-digit
// temperature, pppp static pressure, ssss extrapolated surface
// pressure (both with the leading 1 dropped above 1000 hPa).
var obsRE = regexp.MustCompile(
	`^9(\d{3}|/{3}) 9(\d{4}|/{4}) (\d)(\d{4}|/{4}) (\d{4}|/{4}) (\d|/)(\d|/)` +
		` (\d{4}|/{4}) (\d{3}|/{3}) (\d{3}|/{3}) (\d{3}|/{3}) (\d{4}|/{4}) (\d{4}|/{4})$`)

var missionRE = regexp.MustCompile(
	`^RMK (AF|NOAA|NASA)([A-Z0-9]*) (\d{2})(\d{2})([ACELW]) (.+?) OB (\d{1,2})$`)

var anyLineRE = regexp.MustCompile(`^.*$`)

var (
	remarkOnce     sync.Once
	remarkCompiler *patterns.Compiler
	remarkErr      error
)

var remarkFormats = []patterns.Format{
	{Name: "sws", Pattern: `(?i)\bSWS\s*=\s*(?P<kts>\d{1,3})\s*KTS`},
	{Name: "estimated", Pattern: `(?i)\bESTIMATED[A-Z ]*\bAREA\b`},
}

func getRemarkCompiler() (*patterns.Compiler, error) {
	remarkOnce.Do(func() {
		remarkCompiler = patterns.NewCompiler(remarkFormats, nil)
		remarkErr = remarkCompiler.Compile()
	})
	return remarkCompiler, remarkErr
}

func init() { registry.Register(&Decoder{}) }

// Decoder decodes reconnaissance observation bulletins.
type Decoder struct{}

func (d *Decoder) Name() string { return "recco" }

func (d *Decoder) Designators() []string { return []string{"URNT10", "URNT11"} }

func (d *Decoder) Decode(cur *cursor.Cursor, hdr *bulletin.Header) (registry.Record, error) {
	m, err := cur.RequireConsume(obsRE, "expected fixed-width observation line")
	if err != nil {
		return nil, err
	}

	rec := &Record{}
	rec.RadarCapability = radarCapability(m[1])
	if !fields.Missing(m[2]) {
		v, err := wmotime.Resolve(m[2], "%H%M", hdr.Issued)
		if err != nil {
			return nil, cur.Wrap(err)
		}
		rec.Time = &v.Time
	}
	rec.Quadrant, _ = strconv.Atoi(m[3])
	rec.Lat, rec.Lon = quadrantCoordinates(rec.Quadrant, m[4], m[5])
	rec.Turbulence = fields.Int(m[6])
	rec.FlightCondition = fields.Int(m[7])
	rec.PressureAltitude = fields.Int(m[8])
	rec.WindDirection = fields.Int(m[9])
	rec.WindSpeed = fields.IntSentinel(m[10], "999")
	rec.Temperature = fields.SignDegrees(m[11])
	rec.StaticPressure = fields.Pressure(m[12])
	rec.SurfacePressure = fields.Pressure(m[13])

	mm, err := cur.RequireConsume(missionRE, "expected RMK mission identifier line")
	if err != nil {
		return nil, err
	}
	seq, _ := strconv.Atoi(mm[3])
	storm, _ := strconv.Atoi(mm[4])
	ob, _ := strconv.Atoi(mm[7])
	rec.Mission = Mission{
		Agency:      mm[1],
		Aircraft:    mm[2],
		MissionSeq:  seq,
		StormID:     storm,
		Basin:       mm[5],
		StormName:   mm[6],
		Observation: ob,
	}

	if err := d.decodeRemarks(cur, rec); err != nil {
		return nil, err
	}

	cur.TryConsume(sentinelRE)
	if !cur.Exhausted() {
		return nil, cur.Errorf("unconsumed trailing input after observation message")
	}
	return rec, nil
}

var sentinelRE = regexp.MustCompile(`^\$\$$`)

// decodeRemarks accumulates free text until a ";" terminator, the
// sentinel, or end of input. Recognized sub-patterns are extracted from
// the accumulated text without stopping accumulation; LAST REPORT stops
// the loop and eats a following terminator.
func (d *Decoder) decodeRemarks(cur *cursor.Cursor, rec *Record) error {
	var lines []string
	for {
		line, ok := cur.Peek(0)
		if !ok || cursor.Sentinel(line) {
			break
		}
		cur.TryConsume(anyLineRE)
		t := strings.TrimSpace(line)

		if strings.Contains(t, "LAST REPORT") {
			rec.Remarks.LastReport = true
			lines = append(lines, strings.TrimSuffix(t, ";"))
			if next, ok := cur.Peek(0); ok && strings.TrimSpace(next) == ";" {
				cur.TryConsume(anyLineRE)
			}
			break
		}
		if t == ";" {
			break
		}
		if strings.HasSuffix(t, ";") {
			lines = append(lines, strings.TrimSuffix(t, ";"))
			break
		}
		lines = append(lines, t)
	}

	text := strings.TrimSpace(strings.Join(lines, " "))
	if text == "" {
		return nil
	}
	rec.Remarks.Text = &text

	c, err := getRemarkCompiler()
	if err != nil {
		return cur.Wrap(err)
	}
	if sws := c.FindAll(text, "sws"); len(sws) > 0 {
		kts, _ := strconv.Atoi(sws[0]["kts"])
		rec.Remarks.SurfaceWind = &kts
	}
	if len(c.FindAll(text, "estimated")) > 0 {
		rec.Remarks.EstimatedArea = true
	}
	up := strings.ToUpper(text)
	rec.Remarks.Inbound = strings.Contains(up, "INBOUND")
	rec.Remarks.Outbound = strings.Contains(up, "OUTBOUND")
	rec.Remarks.Overland = strings.Contains(up, "OVERLAND")
	return nil
}

// radarCapability maps the 3-digit radar code to a tri-state: 111 means
// fully operative, 222 inoperative, anything else partial.
func radarCapability(code string) *int {
	if fields.Missing(code) {
		return nil
	}
	v := 0
	switch code {
	case "111":
		v = 1
	case "222":
		v = -1
	}
	return &v
}

// quadrantCoordinates applies the quadrant sign conventions: quadrants
// 4 and above are southern hemisphere; quadrants {0,1,5,6} negate the
// longitude (west); quadrants {1,2,6,7} add the truncated leading 100
// degrees back to the longitude.
func quadrantCoordinates(q int, latRaw, lonRaw string) (*float64, *float64) {
	lat := fields.DegreesMinutes(latRaw)
	if lat != nil && q >= 4 {
		*lat = -*lat
	}
	lon := fields.DegreesMinutes(lonRaw)
	if lon != nil {
		switch q {
		case 1, 2, 6, 7:
			*lon += 100
		}
		switch q {
		case 0, 1, 5, 6:
			*lon = -*lon
		}
	}
	return lat, lon
}

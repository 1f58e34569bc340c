// Package hdob decodes High-Density Observation Bulletins: one mission
// header line followed by repeated fixed-width telemetry records, each
// carrying two table-driven quality codes.
package hdob

import (
	"regexp"
	"strconv"
	"time"

	"recon_parser/internal/bulletin"
	"recon_parser/internal/cursor"
	"recon_parser/internal/fields"
	"recon_parser/internal/registry"
)

// Record is one decoded HDOB bulletin.
type Record struct {
	Mission      Mission       `json:"mission"`
	Observations []Observation `json:"observations"`
}

func (r *Record) Kind() string { return "hdob" }

// Mission is the HDOB header line.
type Mission struct {
	Agency      string    `json:"agency"`
	Aircraft    string    `json:"aircraft"`
	MissionSeq  int       `json:"mission_seq"`
	StormID     int       `json:"storm_id"`
	Basin       string    `json:"basin"`
	StormName   string    `json:"storm_name"`
	Observation int       `json:"observation"`
	Date        time.Time `json:"date"` // product date, midnight UTC
}

// Observation is one telemetry record. The extrapolated field decodes
// as a surface pressure when the craft's static pressure is above
// 550.0 hPa and as a D-value otherwise; exactly one of the two is set
// when the group is present.
type Observation struct {
	Time               time.Time       `json:"time"`
	Lat                *float64        `json:"lat"`
	Lon                *float64        `json:"lon"`
	StaticPressure     *float64        `json:"static_pressure"`     // hPa
	GeopotentialHeight *int            `json:"geopotential_height"` // m
	SurfacePressure    *float64        `json:"surface_pressure"`    // hPa
	DValue             *int            `json:"d_value"`             // m
	AirTemp            *float64        `json:"air_temp"`            // deg C
	DewPoint           *float64        `json:"dew_point"`           // deg C
	WindDirection      *int            `json:"wind_direction"`      // degrees true
	WindSpeed          *int            `json:"wind_speed"`          // knots
	PeakWind           *int            `json:"peak_wind"`           // knots
	SFMRWind           *int            `json:"sfmr_wind"`           // knots
	RainRate           *int            `json:"rain_rate"`           // mm/hr
	PositionQuality    PositionQuality `json:"position_quality"`
	MetQuality         MetQuality      `json:"met_quality"`
}

// PositionQuality is the first quality digit with its derived validity
// flags.
type PositionQuality struct {
	Code             int  `json:"code"`
	Position         bool `json:"position"`
	PressureAltitude bool `json:"pressure_altitude"`
}

// MetQuality is the second quality digit with its derived validity
// flags.
type MetQuality struct {
	Code        int  `json:"code"`
	Temperature bool `json:"temperature"`
	Wind        bool `json:"wind"`
	SFMR        bool `json:"sfmr"`
}

// surfacePressureFloor is the craft static pressure, hPa, above which
// the extrapolated group is a surface pressure rather than a D-value.
const surfacePressureFloor = 550.0

var headerRE = regexp.MustCompile(
	`^(AF|NOAA|NASA)([A-Z0-9]+) (\d{2})(\d{2})([ACELW]) (\S+) HDOB (\d{2}) (\d{8})$`)

var recordRE = regexp.MustCompile(
	`^(\d{6}) (\d{4}[NS]|/{5}) (\d{5}[EW]|/{6}) (\d{4}|/{4}) (\d{5}|/{5}) (\d{4}|/{4})` +
		` ([+-]\d{3}|/{4}) ([+-]\d{3}|/{4}) (\d{6}|/{6}) (\d{3}|/{3}) (\d{3}|/{3}) (\d{3}|/{3}) (\d)(\d)$`)

var sentinelRE = regexp.MustCompile(`^\$\$$`)

func init() { registry.Register(&Decoder{}) }

// Decoder decodes HDOB bulletins.
type Decoder struct{}

func (d *Decoder) Name() string { return "hdob" }

func (d *Decoder) Designators() []string { return []string{"URNT15", "URPN15", "URPA15"} }

func (d *Decoder) Decode(cur *cursor.Cursor, hdr *bulletin.Header) (registry.Record, error) {
	m, err := cur.RequireConsume(headerRE, "expected HDOB mission header line")
	if err != nil {
		return nil, err
	}
	seq, _ := strconv.Atoi(m[3])
	storm, _ := strconv.Atoi(m[4])
	ob, _ := strconv.Atoi(m[7])
	date, err := productDate(m[8])
	if err != nil {
		return nil, cur.Wrap(err)
	}

	rec := &Record{
		Mission: Mission{
			Agency:      m[1],
			Aircraft:    m[2],
			MissionSeq:  seq,
			StormID:     storm,
			Basin:       m[5],
			StormName:   m[6],
			Observation: ob,
			Date:        date,
		},
		Observations: []Observation{},
	}

	for {
		line, ok := cur.Peek(0)
		if !ok || cursor.Sentinel(line) {
			break
		}
		rm := cur.TryConsume(recordRE)
		if rm == nil {
			return nil, cur.Errorf("malformed HDOB data record")
		}
		obs, err := decodeObservation(cur, rm, date)
		if err != nil {
			return nil, err
		}
		rec.Observations = append(rec.Observations, obs)
	}
	cur.TryConsume(sentinelRE)
	return rec, nil
}

func productDate(s string) (time.Time, error) {
	return time.Parse("20060102", s)
}

func decodeObservation(cur *cursor.Cursor, m []string, date time.Time) (Observation, error) {
	obs := Observation{}

	hh, _ := strconv.Atoi(m[1][0:2])
	mi, _ := strconv.Atoi(m[1][2:4])
	ss, _ := strconv.Atoi(m[1][4:6])
	if hh > 23 || mi > 59 || ss > 59 {
		return obs, cur.Errorf("out-of-range record time %q", m[1])
	}
	obs.Time = date.Add(time.Duration(hh)*time.Hour + time.Duration(mi)*time.Minute + time.Duration(ss)*time.Second)

	obs.Lat = hemisphere(m[2], 'S')
	obs.Lon = hemisphere(m[3], 'W')
	obs.StaticPressure = fields.Pressure(m[4])
	obs.GeopotentialHeight = fields.Int(m[5])

	// Surface pressure vs D-value split on the craft pressure.
	if !fields.Missing(m[6]) {
		if obs.StaticPressure != nil && *obs.StaticPressure > surfacePressureFloor {
			obs.SurfacePressure = fields.Pressure(m[6])
		} else if n := fields.Int(m[6]); n != nil {
			// Negative D-values are encoded offset by 5000.
			v := *n
			if v >= 5000 {
				v = -(v - 5000)
			}
			obs.DValue = &v
		}
	}

	obs.AirTemp = fields.SignedTenths(m[7])
	obs.DewPoint = fields.SignedTenths(m[8])
	if !fields.Missing(m[9]) {
		obs.WindDirection = fields.IntSentinel(m[9][0:3], "999")
		obs.WindSpeed = fields.IntSentinel(m[9][3:6], "999")
	}
	obs.PeakWind = fields.IntSentinel(m[10], "999")
	obs.SFMRWind = fields.Int(m[11])
	obs.RainRate = fields.Int(m[12])

	pos, _ := strconv.Atoi(m[13])
	met, _ := strconv.Atoi(m[14])
	obs.PositionQuality = positionQuality(pos)
	obs.MetQuality = metQuality(met)
	return obs, nil
}

// hemisphere decodes a degree+minute group with a trailing hemisphere
// letter; neg is the letter that flips the sign.
func hemisphere(s string, neg byte) *float64 {
	if fields.Missing(s) {
		return nil
	}
	v := fields.DegreesMinutes(s[:len(s)-1])
	if v == nil {
		return nil
	}
	if s[len(s)-1] == neg {
		*v = -*v
	}
	return v
}

// positionQuality derives validity flags from the raw position-quality
// code. Position is invalid for codes 1 and 3; pressure/altitude is
// valid only for codes 0 and 1.
func positionQuality(code int) PositionQuality {
	return PositionQuality{
		Code:             code,
		Position:         code != 1 && code != 3,
		PressureAltitude: code == 0 || code == 1,
	}
}

// metQuality derives validity flags from the raw meteorological-quality
// code. Temperature is invalid for {1,4,5,9}; wind for {2,4,6,9}; SFMR
// for code 3 and every code of 5 or above.
func metQuality(code int) MetQuality {
	return MetQuality{
		Code:        code,
		Temperature: !containsCode(code, 1, 4, 5, 9),
		Wind:        !containsCode(code, 2, 4, 6, 9),
		SFMR:        !(code == 3 || code >= 5),
	}
}

func containsCode(code int, bad ...int) bool {
	for _, b := range bad {
		if code == b {
			return true
		}
	}
	return false
}

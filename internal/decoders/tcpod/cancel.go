package tcpod

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"recon_parser/internal/patterns"
	"recon_parser/internal/wmotime"
)

// Cancellation is a structured cancellation extracted from free-text
// remarks. The blanket form cancels whole plans; the specific form
// cancels one mission of one plan.
type Cancellation struct {
	Blanket       bool       `json:"blanket"`
	Plans         []string   `json:"plans"`   // canceled plan sequences, blanket form
	Mission       *string    `json:"mission"` // storm or mission name, specific form
	Plan          *string    `json:"plan"`
	RequiredStart *time.Time `json:"required_start"`
	RequiredEnd   *time.Time `json:"required_end"`
	CanceledAt    time.Time  `json:"canceled_at"`
}

var (
	cancelOnce     sync.Once
	cancelCompiler *patterns.Compiler
	cancelErr      error
)

// The two wordings NHC uses: a blanket plan cancellation and a specific
// mission cancellation, both anchored by "CANCELED AS OF day/timeZ".
var cancelFormats = []patterns.Format{
	{
		Name: "blanket",
		Pattern: `\b{PLANTYPE}S?\s+(?:NUMBERS?\s+)?(?P<plan1>{PLANSEQ})` +
			`(?:\s+AND\s+(?:{PLANTYPE}\s+(?:NUMBER\s+)?)?(?P<plan2>{PLANSEQ}))?` +
			`\s+(?:IS|ARE)\s+CANCELL?ED\s+AS\s+OF\s+(?P<day>{DAY})/(?P<time>{HHMM})Z`,
	},
	{
		Name: "mission",
		Pattern: `\bTHE\s+(?P<sday>{DAY})/(?P<stime>{HHMM})Z` +
			`(?:\s*(?:TO|-)\s*(?:(?P<eday>{DAY})/)?(?P<etime>{HHMM})Z)?` +
			`\s+(?P<mission>[A-Z0-9 .-]+?)\s+MISSION\s+` +
			`\((?P<plantype>{PLANTYPE})\s+(?P<plan>{PLANSEQ})\)\s+` +
			`(?:IS|HAS\s+BEEN)\s+CANCELL?ED\s+AS\s+OF\s+(?P<cday>{DAY})/(?P<ctime>{HHMM})Z`,
	},
}

func getCancelCompiler() (*patterns.Compiler, error) {
	cancelOnce.Do(func() {
		cancelCompiler = patterns.NewCompiler(cancelFormats, nil)
		cancelErr = cancelCompiler.Compile()
	})
	return cancelCompiler, cancelErr
}

// scanCancellations extracts every cancellation statement from one
// remark. Day/time groups resolve against the bulletin issuance.
func scanCancellations(text string, issued time.Time) ([]Cancellation, error) {
	c, err := getCancelCompiler()
	if err != nil {
		return nil, err
	}

	var out []Cancellation
	for _, m := range c.FindAll(text, "blanket") {
		at, err := wmotime.Resolve(
			fmt.Sprintf("%s/%sZ", m["day"], m["time"]), "%d/%H%MZ", issued)
		if err != nil {
			return nil, err
		}
		cn := Cancellation{Blanket: true, Plans: []string{m["plan1"]}, CanceledAt: at.Time}
		if m["plan2"] != "" {
			cn.Plans = append(cn.Plans, m["plan2"])
		}
		out = append(out, cn)
	}
	for _, m := range c.FindAll(text, "mission") {
		start, err := wmotime.Resolve(
			fmt.Sprintf("%s/%sZ", m["sday"], m["stime"]), "%d/%H%MZ", issued)
		if err != nil {
			return nil, err
		}
		at, err := wmotime.Resolve(
			fmt.Sprintf("%s/%sZ", m["cday"], m["ctime"]), "%d/%H%MZ", issued)
		if err != nil {
			return nil, err
		}
		mission := strings.TrimSpace(m["mission"])
		plan := m["plantype"] + " " + m["plan"]
		cn := Cancellation{
			Mission:       &mission,
			Plan:          &plan,
			RequiredStart: &start.Time,
			CanceledAt:    at.Time,
		}
		if m["etime"] != "" {
			eday := m["eday"]
			if eday == "" {
				eday = m["sday"]
			}
			end, err := wmotime.ResolveAfter(
				fmt.Sprintf("%s/%sZ", eday, m["etime"]), "%d/%H%MZ", start.Time)
			if err != nil {
				return nil, err
			}
			cn.RequiredEnd = &end.Time
		}
		out = append(out, cn)
	}
	return out, nil
}

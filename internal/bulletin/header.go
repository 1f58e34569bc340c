// Package bulletin decodes the abbreviated heading shared by all WMO text
// products: an optional numeric sequence line followed by the mandatory
// heading line carrying designator, originating station, nominal datetime
// and the optional BBB indicator group.
package bulletin

import (
	"encoding/json"
	"regexp"
	"time"

	"recon_parser/internal/cursor"
	"recon_parser/internal/wmotime"
)

// BBBKind identifies the optional trailing indicator group on a heading.
// The grammar makes the alternatives mutually exclusive; a message cannot
// be both a correction and a segment.
type BBBKind int

const (
	BBBNone BBBKind = iota
	BBBDelayed
	BBBCorrected
	BBBAmended
	BBBSegment
)

var bbbKindNames = map[BBBKind]string{
	BBBNone:      "none",
	BBBDelayed:   "delayed",
	BBBCorrected: "corrected",
	BBBAmended:   "amended",
	BBBSegment:   "segment",
}

func (k BBBKind) String() string { return bbbKindNames[k] }

func (k BBBKind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

func (k *BBBKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for kind, name := range bbbKindNames {
		if name == s {
			*k = kind
			return nil
		}
	}
	*k = BBBNone
	return nil
}

// BBB is the decoded indicator group.
type BBB struct {
	Kind  BBBKind `json:"kind"`
	Seq   *string `json:"seq"`   // RRx/CCx/AAx sequence letter
	Major *string `json:"major"` // segment letters
	Minor *string `json:"minor"`
	Last  bool    `json:"last"` // major letter Z marks the final segment
}

// Header is the decoded abbreviated heading.
type Header struct {
	Sequence   *string   `json:"sequence"` // 3-digit sequence line, when present
	Designator string    `json:"designator"`
	Station    string    `json:"station"`
	Issued     time.Time `json:"issued"` // DDHHMM resolved against the context instant
	BBB        BBB       `json:"bbb"`
}

var (
	sequenceRE = regexp.MustCompile(`^(\d{3})$`)
	headingRE  = regexp.MustCompile(`^([A-Z]{4}\d{2}) ([A-Z]{4}) (\d{6})(?: (?:(RR|CC|AA)([A-Z])|P([A-Z])([A-Z])))?$`)
)

// DecodeHeader consumes the optional sequence line and the mandatory
// heading line. A sequence line with no heading after it is malformed.
func DecodeHeader(cur *cursor.Cursor) (*Header, error) {
	h := &Header{}
	if m := cur.TryConsume(sequenceRE); m != nil {
		seq := m[1]
		h.Sequence = &seq
	}

	m, err := cur.RequireConsume(headingRE, "expected abbreviated heading (TTAAii CCCC DDHHMM)")
	if err != nil {
		return nil, err
	}
	h.Designator = m[1]
	h.Station = m[2]

	t, err := wmotime.ResolveDayHourMinute(m[3], cur.Context())
	if err != nil {
		return nil, cur.Wrap(err)
	}
	h.Issued = t

	switch {
	case m[4] == "RR":
		h.BBB = BBB{Kind: BBBDelayed, Seq: &m[5]}
	case m[4] == "CC":
		h.BBB = BBB{Kind: BBBCorrected, Seq: &m[5]}
	case m[4] == "AA":
		h.BBB = BBB{Kind: BBBAmended, Seq: &m[5]}
	case m[6] != "":
		h.BBB = BBB{
			Kind:  BBBSegment,
			Major: &m[6],
			Minor: &m[7],
			Last:  m[6] == "Z",
		}
	}
	return h, nil
}

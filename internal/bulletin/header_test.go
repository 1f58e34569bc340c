package bulletin

import (
	"errors"
	"testing"
	"time"

	"recon_parser/internal/cursor"
)

var testCtx = time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)

func decode(t *testing.T, text string) (*Header, error) {
	t.Helper()
	cur, err := cursor.New(text, testCtx)
	if err != nil {
		t.Fatalf("cursor.New: %v", err)
	}
	return DecodeHeader(cur)
}

func TestDecodeHeaderBasic(t *testing.T) {
	h, err := decode(t, "NOUS42 KNHC 261358\nBODY")
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Designator != "NOUS42" {
		t.Errorf("Designator = %q", h.Designator)
	}
	if h.Station != "KNHC" {
		t.Errorf("Station = %q", h.Station)
	}
	want := time.Date(2024, time.October, 26, 13, 58, 0, 0, time.UTC)
	if !h.Issued.Equal(want) {
		t.Errorf("Issued = %v, want %v", h.Issued, want)
	}
	if h.Sequence != nil {
		t.Errorf("Sequence = %v, want nil", *h.Sequence)
	}
	if h.BBB.Kind != BBBNone {
		t.Errorf("BBB.Kind = %v, want none", h.BBB.Kind)
	}
}

func TestDecodeHeaderSequenceLine(t *testing.T) {
	h, err := decode(t, "123\nURNT15 KNHC 262154\nBODY")
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.Sequence == nil || *h.Sequence != "123" {
		t.Errorf("Sequence = %v, want 123", h.Sequence)
	}
	if h.Designator != "URNT15" {
		t.Errorf("Designator = %q", h.Designator)
	}
}

func TestDecodeHeaderSequenceWithoutHeading(t *testing.T) {
	_, err := decode(t, "123\nnot a heading line")
	if err == nil {
		t.Fatal("sequence line without heading should be fatal")
	}
	var pe *cursor.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error is %T, want *ParseError", err)
	}
}

func TestDecodeHeaderBBB(t *testing.T) {
	cases := []struct {
		line string
		kind BBBKind
		seq  string
	}{
		{"NOUS42 KNHC 261358 CCA", BBBCorrected, "A"},
		{"NOUS42 KNHC 261358 RRB", BBBDelayed, "B"},
		{"NOUS42 KNHC 261358 AAC", BBBAmended, "C"},
	}
	for _, tc := range cases {
		h, err := decode(t, tc.line)
		if err != nil {
			t.Errorf("DecodeHeader(%q): %v", tc.line, err)
			continue
		}
		if h.BBB.Kind != tc.kind {
			t.Errorf("%q: Kind = %v, want %v", tc.line, h.BBB.Kind, tc.kind)
		}
		if h.BBB.Seq == nil || *h.BBB.Seq != tc.seq {
			t.Errorf("%q: Seq = %v, want %q", tc.line, h.BBB.Seq, tc.seq)
		}
	}
}

func TestDecodeHeaderSegment(t *testing.T) {
	h, err := decode(t, "URNT15 KNHC 262154 PAB")
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if h.BBB.Kind != BBBSegment {
		t.Fatalf("Kind = %v, want segment", h.BBB.Kind)
	}
	if *h.BBB.Major != "A" || *h.BBB.Minor != "B" || h.BBB.Last {
		t.Errorf("segment = %+v", h.BBB)
	}

	last, err := decode(t, "URNT15 KNHC 262154 PZC")
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if !last.BBB.Last {
		t.Error("major Z should mark the final segment")
	}
}

func TestDecodeHeaderRejectsMalformed(t *testing.T) {
	for _, line := range []string{
		"NOUS4 KNHC 261358",        // short designator
		"NOUS42 KNH 261358",        // short station
		"NOUS42 KNHC 26135",        // short datetime
		"NOUS42 KNHC 261358 CCA P", // trailing junk
		"garbage",
	} {
		if _, err := decode(t, line); err == nil {
			t.Errorf("DecodeHeader(%q) should fail", line)
		}
	}
}

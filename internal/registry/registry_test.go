package registry

import (
	"errors"
	"strings"
	"testing"
	"time"

	"recon_parser/internal/bulletin"
	"recon_parser/internal/cursor"
)

type fakeRecord struct{ Body string }

func (fakeRecord) Kind() string { return "fake" }

type fakeDecoder struct{ name string }

func (d *fakeDecoder) Name() string { return d.name }

func (d *fakeDecoder) Designators() []string { return []string{"XXTE01", "XXTE02"} }

func (d *fakeDecoder) Decode(cur *cursor.Cursor, hdr *bulletin.Header) (Record, error) {
	var lines []string
	for {
		line, ok := cur.Peek(0)
		if !ok {
			break
		}
		lines = append(lines, strings.TrimSpace(line))
		if err := cur.Seek(1); err != nil {
			return nil, err
		}
	}
	return fakeRecord{Body: strings.Join(lines, " ")}, nil
}

var ctx = time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)

func TestRegisterAndDecode(t *testing.T) {
	r := New()
	r.Register(&fakeDecoder{name: "fake"})

	b, err := r.Decode("XXTE01 KNHC 261358\nBODY LINE", Options{Context: ctx})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b.Kind != "fake" {
		t.Errorf("Kind = %q", b.Kind)
	}
	if b.Header == nil || b.Header.Designator != "XXTE01" {
		t.Errorf("Header = %+v", b.Header)
	}
	if rec := b.Record.(fakeRecord); rec.Body != "BODY LINE" {
		t.Errorf("Body = %q", rec.Body)
	}
}

func TestUnresolvedDesignatorNamesIt(t *testing.T) {
	r := New()
	_, err := r.Decode("ZZZZ99 KNHC 261358\nBODY", Options{Context: ctx})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "ZZZZ99") {
		t.Errorf("error does not name the designator: %v", err)
	}
	var pe *cursor.ParseError
	if !errors.As(err, &pe) {
		t.Errorf("error is not a ParseError: %T", err)
	}
}

func TestDecoderOverrideBypassesLookup(t *testing.T) {
	r := New()
	b, err := r.Decode("ZZZZ99 KNHC 261358\nBODY", Options{
		Context: ctx,
		Decoder: &fakeDecoder{name: "fake"},
	})
	if err != nil {
		t.Fatalf("Decode with override: %v", err)
	}
	if b.Kind != "fake" {
		t.Errorf("Kind = %q", b.Kind)
	}
}

func TestDesignatorsSorted(t *testing.T) {
	r := New()
	r.Register(&fakeDecoder{name: "fake"})
	got := r.Designators()
	if len(got) != 2 || got[0] != "XXTE01" || got[1] != "XXTE02" {
		t.Errorf("Designators = %v", got)
	}
}

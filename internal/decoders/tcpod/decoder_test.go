package tcpod

import (
	"strings"
	"testing"
	"time"

	"recon_parser/internal/registry"
)

var testContext = time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC)

const sampleBulletin = `NOUS42 KNHC 261358
REPRPD
WEATHER RECONNAISSANCE FLIGHTS
CARCAH, NATIONAL HURRICANE CENTER, MIAMI, FL.
1100 AM EDT SAT 26 OCTOBER 2024
SUBJECT: TROPICAL CYCLONE PLAN OF THE DAY (TCPOD)
         VALID 27/1100Z TO 28/1100Z OCTOBER 2024
         TCPOD NUMBER.....24-148
I. ATLANTIC REQUIREMENTS
   1. HURRICANE MILTON
      FLIGHT ONE - TEAL 70
      A. 27/1730Z,28/0530Z
      B. AF303 0714A MILTON
      C. 27/1415Z
      D. 26.5N 89.9W
      E. 27/1730Z TO 28/0130Z
      F. SFC TO 10,000 FT
      G. FIX EVERY 2 HOURS
      H. YES
   2. OUTLOOK FOR SUCCEEDING DAY.....NEGATIVE.
   3. REMARKS: THE 26/1730Z A. TEAL 70 MISSION (TCPOD 24-147) IS
      CANCELED AS OF 26/1300Z.
II. PACIFIC REQUIREMENTS
    1. NEGATIVE RECONNAISSANCE REQUIREMENTS.
    2. OUTLOOK FOR SUCCEEDING DAY.....NEGATIVE.
$$`

func decodeSample(t *testing.T, text string) *Record {
	t.Helper()
	b, err := registry.Decode(text, registry.Options{Context: testContext})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	rec, ok := b.Record.(*Record)
	if !ok {
		t.Fatalf("record type %T", b.Record)
	}
	return rec
}

func TestDecodeFullBulletin(t *testing.T) {
	rec := decodeSample(t, sampleBulletin)

	if rec.Kind() != "tcpod" {
		t.Errorf("Kind = %q", rec.Kind())
	}
	// 1100 AM EDT is 1500 UTC.
	if want := time.Date(2024, 10, 26, 15, 0, 0, 0, time.UTC); !rec.Issued.Equal(want) {
		t.Errorf("Issued = %v, want %v", rec.Issued, want)
	}
	if want := time.Date(2024, 10, 27, 11, 0, 0, 0, time.UTC); !rec.ValidFrom.Equal(want) {
		t.Errorf("ValidFrom = %v, want %v", rec.ValidFrom, want)
	}
	if want := time.Date(2024, 10, 28, 11, 0, 0, 0, time.UTC); !rec.ValidTo.Equal(want) {
		t.Errorf("ValidTo = %v, want %v", rec.ValidTo, want)
	}
	if rec.Plan.ID != "TCPOD-24-148" || !rec.Plan.TC || rec.Plan.Year != 24 || rec.Plan.Sequence != 148 {
		t.Errorf("Plan = %+v", rec.Plan)
	}
	if rec.Plan.Corrected || rec.Plan.Amended {
		t.Errorf("Plan flags = %+v", rec.Plan)
	}
	if rec.Remark != nil {
		t.Errorf("Remark = %q, want nil", *rec.Remark)
	}
	if rec.Note != nil {
		t.Errorf("Note = %q, want nil", *rec.Note)
	}
}

func TestDecodePrimaryBasin(t *testing.T) {
	rec := decodeSample(t, sampleBulletin)
	b := rec.Primary

	if b.Name == nil || *b.Name != "ATLANTIC" {
		t.Fatalf("Name = %v", b.Name)
	}
	if b.Changed || b.Negative {
		t.Errorf("basin flags = %+v", b)
	}
	if len(b.Storms) != 1 {
		t.Fatalf("Storms = %d", len(b.Storms))
	}
	s := b.Storms[0]
	if s.Name != "MILTON" || s.Training {
		t.Errorf("storm = %+v", s)
	}
	if len(s.Missions) != 1 {
		t.Fatalf("Missions = %d", len(s.Missions))
	}
	m := s.Missions[0]
	if m.Flight != "TEAL 70" {
		t.Errorf("Flight = %q", m.Flight)
	}
	if want := time.Date(2024, 10, 27, 17, 30, 0, 0, time.UTC); !m.Required.Start.Equal(want) {
		t.Errorf("Required.Start = %v", m.Required.Start)
	}
	if want := time.Date(2024, 10, 28, 5, 30, 0, 0, time.UTC); !m.Required.End.Equal(want) {
		t.Errorf("Required.End = %v", m.Required.End)
	}
	if m.ID != "AF303 0714A MILTON" {
		t.Errorf("ID = %q", m.ID)
	}
	if want := time.Date(2024, 10, 27, 14, 15, 0, 0, time.UTC); !m.Departure.Equal(want) {
		t.Errorf("Departure = %v", m.Departure)
	}
	if m.Target == nil || m.Target.Lat != 26.5 || m.Target.Lon != -89.9 {
		t.Errorf("Target = %+v", m.Target)
	}
	if m.FixWindow == nil {
		t.Fatal("FixWindow = nil")
	}
	if want := time.Date(2024, 10, 28, 1, 30, 0, 0, time.UTC); !m.FixWindow.End.Equal(want) {
		t.Errorf("FixWindow.End = %v", m.FixWindow.End)
	}
	if m.Altitude != "SFC TO 10,000 FT" || m.Profile != "FIX EVERY 2 HOURS" {
		t.Errorf("Altitude/Profile = %q / %q", m.Altitude, m.Profile)
	}
	if !m.ActivationRequired {
		t.Error("ActivationRequired = false")
	}
	if m.Remark != nil {
		t.Errorf("mission Remark = %v", m.Remark)
	}

	if len(b.Outlooks) != 1 || !b.Outlooks[0].Negative || b.Outlooks[0].Additional {
		t.Errorf("Outlooks = %+v", b.Outlooks)
	}
	if len(b.Remarks) != 1 {
		t.Fatalf("Remarks = %v", b.Remarks)
	}
	if len(b.Cancellations) != 1 {
		t.Fatalf("Cancellations = %v", b.Cancellations)
	}
	c := b.Cancellations[0]
	if c.Blanket {
		t.Error("cancellation should be the specific-mission form")
	}
	if c.Mission == nil || *c.Mission != "A. TEAL 70" {
		t.Errorf("Mission = %v", c.Mission)
	}
	if c.Plan == nil || *c.Plan != "TCPOD 24-147" {
		t.Errorf("Plan = %v", c.Plan)
	}
	if c.RequiredStart == nil || !c.RequiredStart.Equal(time.Date(2024, 10, 26, 17, 30, 0, 0, time.UTC)) {
		t.Errorf("RequiredStart = %v", c.RequiredStart)
	}
	if !c.CanceledAt.Equal(time.Date(2024, 10, 26, 13, 0, 0, 0, time.UTC)) {
		t.Errorf("CanceledAt = %v", c.CanceledAt)
	}
}

func TestDecodeSecondaryBasin(t *testing.T) {
	rec := decodeSample(t, sampleBulletin)
	b := rec.Secondary

	if b.Name == nil || *b.Name != "PACIFIC" {
		t.Fatalf("Name = %v", b.Name)
	}
	if !b.Negative {
		t.Error("Negative = false")
	}
	if len(b.Storms) != 0 {
		t.Errorf("Storms = %d", len(b.Storms))
	}
	if len(b.Outlooks) != 1 || !b.Outlooks[0].Negative {
		t.Errorf("Outlooks = %+v", b.Outlooks)
	}
}

func TestValidRangeAcrossMonthBoundary(t *testing.T) {
	text := strings.Replace(sampleBulletin,
		"VALID 27/1100Z TO 28/1100Z OCTOBER 2024",
		"VALID 31/1100Z TO 01/1100Z NOVEMBER 2024", 1)
	text = strings.Replace(text, "A. 27/1730Z,28/0530Z", "A. 31/1730Z,1/0530Z", 1)
	text = strings.Replace(text, "C. 27/1415Z", "C. 31/1415Z", 1)
	text = strings.Replace(text, "E. 27/1730Z TO 28/0130Z", "E. 31/1730Z TO 1/0130Z", 1)
	rec := decodeSample(t, text)

	// The month attaches to the end of the range; the start rolls back
	// into October.
	if want := time.Date(2024, 10, 31, 11, 0, 0, 0, time.UTC); !rec.ValidFrom.Equal(want) {
		t.Errorf("ValidFrom = %v", rec.ValidFrom)
	}
	if want := time.Date(2024, 11, 1, 11, 0, 0, 0, time.UTC); !rec.ValidTo.Equal(want) {
		t.Errorf("ValidTo = %v", rec.ValidTo)
	}
	m := rec.Primary.Storms[0].Missions[0]
	if want := time.Date(2024, 11, 1, 5, 30, 0, 0, time.UTC); !m.Required.End.Equal(want) {
		t.Errorf("Required.End = %v", m.Required.End)
	}
}

func TestCorrectionAndAmendmentMarkers(t *testing.T) {
	text := strings.Replace(sampleBulletin,
		"TCPOD NUMBER.....24-148", "TCPOD NUMBER.....24-148 CORRECTION", 1)
	rec := decodeSample(t, text)
	if !rec.Plan.Corrected || rec.Plan.Amended {
		t.Errorf("Plan = %+v", rec.Plan)
	}

	text = strings.Replace(sampleBulletin,
		"TCPOD NUMBER.....24-148", "TCPOD NUMBER.....24-148 AMENDMENT", 1)
	rec = decodeSample(t, text)
	if rec.Plan.Corrected || !rec.Plan.Amended {
		t.Errorf("Plan = %+v", rec.Plan)
	}
}

func TestTrainingContainer(t *testing.T) {
	text := strings.Replace(sampleBulletin,
		"1. HURRICANE MILTON", "1. FLIGHT ONE - TEAL 75 TRAINING", 1)
	rec := decodeSample(t, text)
	s := rec.Primary.Storms[0]
	if !s.Training {
		t.Fatal("Training = false")
	}
	if s.Text == nil || !strings.Contains(*s.Text, "TEAL 75 TRAINING") {
		t.Errorf("Text = %v", s.Text)
	}
	if len(s.Missions) != 0 {
		t.Errorf("Missions = %d", len(s.Missions))
	}
}

func TestLetteredFieldCountMismatchIsFatal(t *testing.T) {
	// Two flight lines but a single set of lettered fields.
	text := strings.Replace(sampleBulletin,
		"FLIGHT ONE - TEAL 70",
		"FLIGHT ONE - TEAL 70\n      FLIGHT TWO - NOAA2", 1)
	if _, err := registry.Decode(text, registry.Options{Context: testContext}); err == nil {
		t.Fatal("expected lettered-field count mismatch to be fatal")
	}
}

func TestMissingSubjectIsFatal(t *testing.T) {
	text := strings.Replace(sampleBulletin, "SUBJECT: ", "TOPIC: ", 1)
	_, err := registry.Decode(text, registry.Options{Context: testContext})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "SUBJECT") {
		t.Errorf("error = %v", err)
	}
	// The error carries annotated context lines around the failure.
	if !strings.Contains(err.Error(), "-> ") {
		t.Errorf("error has no context annotation: %v", err)
	}
}

func TestBlanketCancellation(t *testing.T) {
	issued := time.Date(2024, 10, 26, 15, 0, 0, 0, time.UTC)
	got, err := scanCancellations(
		"ALL TCPODS 24-145 AND 24-146 ARE CANCELLED AS OF 25/2300Z.", issued)
	if err != nil {
		t.Fatalf("scanCancellations: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d cancellations", len(got))
	}
	c := got[0]
	if !c.Blanket {
		t.Error("Blanket = false")
	}
	if len(c.Plans) != 2 || c.Plans[0] != "24-145" || c.Plans[1] != "24-146" {
		t.Errorf("Plans = %v", c.Plans)
	}
	if !c.CanceledAt.Equal(time.Date(2024, 10, 25, 23, 0, 0, 0, time.UTC)) {
		t.Errorf("CanceledAt = %v", c.CanceledAt)
	}
}

func TestSinglePlanCancellation(t *testing.T) {
	issued := time.Date(2024, 10, 26, 15, 0, 0, 0, time.UTC)
	got, err := scanCancellations(
		"TCPOD NUMBER 24-146 IS CANCELED AS OF 26/1200Z.", issued)
	if err != nil {
		t.Fatalf("scanCancellations: %v", err)
	}
	if len(got) != 1 || !got[0].Blanket || len(got[0].Plans) != 1 || got[0].Plans[0] != "24-146" {
		t.Fatalf("got = %+v", got)
	}
}

func TestMissionCancellationWithWindow(t *testing.T) {
	issued := time.Date(2024, 10, 26, 15, 0, 0, 0, time.UTC)
	got, err := scanCancellations(
		"THE 26/1730Z TO 27/0530Z TEAL 70 MISSION (TCPOD 24-147) HAS BEEN CANCELED AS OF 26/1300Z.", issued)
	if err != nil {
		t.Fatalf("scanCancellations: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d cancellations", len(got))
	}
	c := got[0]
	if c.Mission == nil || *c.Mission != "TEAL 70" {
		t.Errorf("Mission = %v", c.Mission)
	}
	if c.RequiredEnd == nil || !c.RequiredEnd.Equal(time.Date(2024, 10, 27, 5, 30, 0, 0, time.UTC)) {
		t.Errorf("RequiredEnd = %v", c.RequiredEnd)
	}
}

func TestDecodeTwiceIsDeterministic(t *testing.T) {
	a := decodeSample(t, sampleBulletin)
	b := decodeSample(t, sampleBulletin)
	if a.Plan != b.Plan || !a.Issued.Equal(b.Issued) {
		t.Error("repeated decodes disagree")
	}
	if len(a.Primary.Storms) != len(b.Primary.Storms) {
		t.Error("repeated decodes disagree on storms")
	}
}

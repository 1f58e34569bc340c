package cursor

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

func mustNew(t *testing.T, text string) *Cursor {
	t.Helper()
	c, err := New(text, time.Time{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	c := mustNew(t, "\x01  NOUS42 KNHC 261358\r\nSECOND\r\n")
	if c.Len() != 2 {
		t.Fatalf("Len = %d, want 2", c.Len())
	}
	if line, _ := c.Peek(0); line != "NOUS42 KNHC 261358" {
		t.Errorf("Peek(0) = %q", line)
	}

	if _, err := New("   \n \n", time.Time{}); err == nil {
		t.Error("expected error for blank input")
	}
}

func TestPeekDoesNotAdvance(t *testing.T) {
	c := mustNew(t, "ONE\nTWO")
	for i := 0; i < 3; i++ {
		if line, ok := c.Peek(0); !ok || line != "ONE" {
			t.Fatalf("Peek(0) = %q, %v", line, ok)
		}
	}
	if c.Pos() != 0 {
		t.Errorf("Pos = %d after Peek, want 0", c.Pos())
	}
	if _, ok := c.Peek(5); ok {
		t.Error("Peek past end should report not ok")
	}
}

func TestTryConsume(t *testing.T) {
	c := mustNew(t, "ONE\n\n\nTWO\nTHREE")

	if m := c.TryConsume(regexp.MustCompile(`^TWO$`)); m != nil {
		t.Fatal("TryConsume matched wrong line")
	}
	if c.Pos() != 0 {
		t.Fatalf("failed TryConsume moved position to %d", c.Pos())
	}

	if m := c.TryConsume(regexp.MustCompile(`^ONE$`)); m == nil {
		t.Fatal("TryConsume should match first line")
	}
	// Blank lines after the match are skipped.
	if line, _ := c.Peek(0); line != "TWO" {
		t.Errorf("Peek after consume = %q, want TWO", line)
	}
}

func TestTryConsumeKeepBlanks(t *testing.T) {
	c := mustNew(t, "ONE\n\nTWO")
	if m := c.TryConsumeKeepBlanks(regexp.MustCompile(`^ONE$`)); m == nil {
		t.Fatal("expected match")
	}
	if line, _ := c.Peek(0); line != "" {
		t.Errorf("blank line should remain, got %q", line)
	}
}

func TestPositionMonotonic(t *testing.T) {
	c := mustNew(t, "A\nB\nC\nD")
	any := regexp.MustCompile(`^.*$`)
	last := c.Pos()
	for i := 0; i < 6; i++ {
		c.TryConsume(any)
		if c.Pos() < last {
			t.Fatalf("position decreased: %d -> %d", last, c.Pos())
		}
		last = c.Pos()
	}
	if !c.Exhausted() {
		t.Error("cursor should be exhausted")
	}
}

func TestRequireConsume(t *testing.T) {
	c := mustNew(t, "ONE\nTWO")
	if _, err := c.RequireConsume(regexp.MustCompile(`^ONE$`), "want ONE"); err != nil {
		t.Fatalf("RequireConsume: %v", err)
	}
	_, err := c.RequireConsume(regexp.MustCompile(`^ONE$`), "want ONE again")
	if err == nil {
		t.Fatal("expected error")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error is %T, want *ParseError", err)
	}
	if !strings.Contains(pe.Msg, "want ONE again") {
		t.Errorf("Msg = %q", pe.Msg)
	}
}

func TestConsumeUntil(t *testing.T) {
	c := mustNew(t, "alpha\nbeta\n$$\ngamma")
	lines := c.ConsumeUntil(Sentinel)
	if len(lines) != 2 || lines[0] != "alpha" || lines[1] != "beta" {
		t.Fatalf("ConsumeUntil = %q", lines)
	}
	if line, _ := c.Peek(0); line != "$$" {
		t.Errorf("stop line should not be consumed, at %q", line)
	}

	// With no stop hit, consumption runs to end of input.
	c2 := mustNew(t, "a\nb")
	if got := c2.ConsumeUntil(Sentinel); len(got) != 2 {
		t.Fatalf("ConsumeUntil to EOF = %q", got)
	}
	if !c2.Exhausted() {
		t.Error("cursor should be exhausted")
	}
}

func TestSeek(t *testing.T) {
	c := mustNew(t, "A\nB\nC")
	c.TryConsume(regexp.MustCompile(`^A$`))
	c.TryConsume(regexp.MustCompile(`^B$`))
	if err := c.Seek(-1); err != nil {
		t.Fatalf("Seek(-1): %v", err)
	}
	if line, _ := c.Peek(0); line != "B" {
		t.Errorf("after Seek(-1) at %q, want B", line)
	}
	if err := c.Seek(-5); err == nil {
		t.Error("Seek before start should fail")
	}
	if err := c.Seek(10); err == nil {
		t.Error("Seek past end should fail")
	}
}

func TestErrorContext(t *testing.T) {
	c := mustNew(t, "L1\nL2\nL3\nL4\nL5\nL6\nL7\nL8\nL9\nL10\nL11\nL12")
	any := regexp.MustCompile(`^.*$`)
	for i := 0; i < 6; i++ {
		c.TryConsume(any)
	}

	err := c.Errorf("boom")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error is %T", err)
	}
	// Position 6 (line 7): context covers lines 2..12, arrow on line 7.
	if !strings.Contains(pe.Context, "->    7 | L7") {
		t.Errorf("missing arrow line in context:\n%s", pe.Context)
	}
	if !strings.Contains(pe.Context, "2 | L2") || !strings.Contains(pe.Context, "12 | L12") {
		t.Errorf("context window wrong:\n%s", pe.Context)
	}
	if strings.Contains(pe.Context, "L1\n") {
		t.Errorf("context should not reach line 1:\n%s", pe.Context)
	}
}

func TestWrap(t *testing.T) {
	c := mustNew(t, "ONE")
	cause := errors.New("strconv: bad syntax")
	err := c.Wrap(cause)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error is %T", err)
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped cause should be reachable via errors.Is")
	}

	// An existing ParseError passes through untouched.
	orig := c.Errorf("original")
	if c.Wrap(orig) != orig {
		t.Error("Wrap should not re-wrap a ParseError")
	}
}

// Package cursor provides a line cursor over bulletin text. All message
// grammars are written as sequences of match-then-advance attempts against
// the cursor; "optional" and "required" reads share the same primitive.
package cursor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// contextRadius is how many lines on each side of the failing position are
// included in a ParseError.
const contextRadius = 5

// ParseError is the single error kind raised by bulletin decoding. It is
// always fatal to the decode in progress; no grammar recovers from one.
type ParseError struct {
	Msg     string
	Err     error  // wrapped lower-level cause, may be nil
	Context string // annotated source lines around the failure, may be empty
}

func (e *ParseError) Error() string {
	s := e.Msg
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	if e.Context != "" {
		s += "\n" + e.Context
	}
	return s
}

func (e *ParseError) Unwrap() error { return e.Err }

// StopFunc reports whether a line ends a free-text accumulation loop.
type StopFunc func(line string) bool

// Sentinel reports whether a line is the end-of-body marker.
func Sentinel(line string) bool { return strings.TrimSpace(line) == "$$" }

// StopAt builds a stop condition from a pattern matched against the
// trimmed line.
func StopAt(re *regexp.Regexp) StopFunc {
	return func(line string) bool { return re.MatchString(strings.TrimSpace(line)) }
}

// Cursor owns the line sequence of one bulletin and a mutable read
// position. It is created once per decode and never shared between
// decodes.
type Cursor struct {
	lines []string
	pos   int
	ctx   time.Time
}

// New splits bulletin text into lines. A leading start-of-header control
// character is stripped and the text trimmed; empty input is an error.
// The context instant anchors under-specified dates parsed later.
func New(text string, ctx time.Time) (*Cursor, error) {
	text = strings.TrimPrefix(text, "\x01")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ParseError{Msg: "empty bulletin"}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return &Cursor{lines: strings.Split(text, "\n"), ctx: ctx}, nil
}

// Context returns the instant used to resolve under-specified dates when
// the bulletin itself has not yet supplied one.
func (c *Cursor) Context() time.Time { return c.ctx }

// Pos returns the 0-based read position.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the total line count.
func (c *Cursor) Len() int { return len(c.lines) }

// Exhausted reports whether all input has been consumed.
func (c *Cursor) Exhausted() bool { return c.pos >= len(c.lines) }

// Peek returns the line at position+offset without consuming it.
func (c *Cursor) Peek(offset int) (string, bool) {
	i := c.pos + offset
	if i < 0 || i >= len(c.lines) {
		return "", false
	}
	return c.lines[i], true
}

// TryConsume matches the current line, trimmed, against re. On a match the
// line is consumed, following blank lines are skipped, and the submatches
// are returned; otherwise nil is returned and the position is unchanged.
func (c *Cursor) TryConsume(re *regexp.Regexp) []string {
	return c.tryConsume(re, true, true)
}

// TryConsumeKeepBlanks is TryConsume without the trailing blank-line skip.
func (c *Cursor) TryConsumeKeepBlanks(re *regexp.Regexp) []string {
	return c.tryConsume(re, true, false)
}

func (c *Cursor) tryConsume(re *regexp.Regexp, trim, skipBlanks bool) []string {
	line, ok := c.Peek(0)
	if !ok {
		return nil
	}
	if trim {
		line = strings.TrimSpace(line)
	}
	m := re.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	c.pos++
	if skipBlanks {
		for c.pos < len(c.lines) && strings.TrimSpace(c.lines[c.pos]) == "" {
			c.pos++
		}
	}
	return m
}

// RequireConsume is TryConsume with a mandatory match; failure raises a
// ParseError carrying msg and line context.
func (c *Cursor) RequireConsume(re *regexp.Regexp, msg string) ([]string, error) {
	if m := c.TryConsume(re); m != nil {
		return m, nil
	}
	return nil, c.Errorf("%s", msg)
}

// ConsumeUntil consumes lines until one satisfies any stop condition (that
// line is left unconsumed) or input ends. The consumed lines are returned
// verbatim.
func (c *Cursor) ConsumeUntil(stops ...StopFunc) []string {
	var out []string
	for c.pos < len(c.lines) {
		line := c.lines[c.pos]
		for _, stop := range stops {
			if stop(line) {
				return out
			}
		}
		out = append(out, line)
		c.pos++
	}
	return out
}

// Seek repositions the cursor by delta lines. Ordinary grammar flow
// decides with Peek before consuming; Seek exists for the exceptional
// rewind when a foreign error must be re-anchored to the line it
// logically occurred on.
func (c *Cursor) Seek(delta int) error {
	p := c.pos + delta
	if p < 0 || p > len(c.lines) {
		return c.Errorf("seek to line %d is out of bounds", p+1)
	}
	c.pos = p
	return nil
}

// Errorf builds a ParseError annotated with the surrounding source lines.
func (c *Cursor) Errorf(format string, args ...any) error {
	return &ParseError{Msg: fmt.Sprintf(format, args...), Context: c.contextLines()}
}

// Wrap converts a foreign error into a ParseError carrying line context.
// ParseErrors pass through unchanged.
func (c *Cursor) Wrap(err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	return &ParseError{Msg: "decode failed", Err: err, Context: c.contextLines()}
}

// contextLines renders up to contextRadius lines on each side of the
// current position, 1-based line numbers, with an arrow on the failing
// line.
func (c *Cursor) contextLines() string {
	lo := c.pos - contextRadius
	if lo < 0 {
		lo = 0
	}
	hi := c.pos + contextRadius + 1
	if hi > len(c.lines) {
		hi = len(c.lines)
	}
	var b strings.Builder
	for i := lo; i < hi; i++ {
		marker := "   "
		if i == c.pos {
			marker = "-> "
		}
		fmt.Fprintf(&b, "%s%4d | %s\n", marker, i+1, c.lines[i])
	}
	return strings.TrimRight(b.String(), "\n")
}

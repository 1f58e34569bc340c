// Package patterns provides the shared regex vocabulary and a small
// grok-style compiler used for free-text field extraction (cancellation
// statements, formation-chance lines). Format patterns reference the
// vocabulary with {NAME} placeholders; case folding is per-format via
// (?i) rather than global, because outlook products are mixed-case while
// plan-of-day products are upper-case.
package patterns

import (
	"regexp"
	"strings"
)

// BasePatterns defines reusable regex components referenced from format
// patterns with {NAME} placeholders.
var BasePatterns = map[string]string{
	// Day/time groups.
	"DAY":     `\d{1,2}`,
	"HHMM":    `\d{4}`,
	"DAYTIME": `\d{1,2}/\d{4}Z`, // 26/1730Z
	"MONTH":   `[A-Za-z]{3,9}`,
	"YEAR4":   `\d{4}`,

	// Plan identifiers.
	"PLANTYPE": `(?:TC|WS)POD`,
	"PLANSEQ":  `\d{2}-\d{3}`, // 25-148

	// Mission identifiers.
	"AGENCY":    `AF|NOAA|NASA`,
	"STORMNAME": `[A-Z][A-Z0-9 -]*?`,
	"BASIN":     `[ACELW]`,

	// Decimal-degree coordinates as written in lettered fields.
	"LATDEC": `\d{1,2}\.\d`,
	"LONDEC": `\d{1,3}\.\d`,

	// Formation-chance wording.
	"CHANCELEVEL": `[A-Za-z]+`,
	"PERCENT":     `\d{1,3}`,
}

// Format is one named extraction pattern.
type Format struct {
	Name     string
	Pattern  string // with {NAME} placeholders
	Compiled *regexp.Regexp
}

// Compiler expands and compiles a set of formats over the shared
// vocabulary, optionally overlaid with local patterns.
type Compiler struct {
	base    map[string]string
	formats []Format
}

// NewCompiler builds a compiler for the given formats. Local patterns
// override vocabulary entries of the same name.
func NewCompiler(formats []Format, local map[string]string) *Compiler {
	c := &Compiler{
		base:    make(map[string]string, len(BasePatterns)+len(local)),
		formats: make([]Format, len(formats)),
	}
	for k, v := range BasePatterns {
		c.base[k] = v
	}
	for k, v := range local {
		c.base[k] = v
	}
	copy(c.formats, formats)
	return c
}

// Compile expands every {NAME} placeholder and compiles the formats.
func (c *Compiler) Compile() error {
	for i := range c.formats {
		re, err := regexp.Compile(c.expand(c.formats[i].Pattern))
		if err != nil {
			return err
		}
		c.formats[i].Compiled = re
	}
	return nil
}

func (c *Compiler) expand(pattern string) string {
	out := pattern
	for name, re := range c.base {
		out = strings.ReplaceAll(out, "{"+name+"}", re)
	}
	return out
}

// Match is a successful extraction.
type Match struct {
	FormatName string
	Captures   map[string]string
}

// Get returns a capture value or def when absent or empty.
func (m *Match) Get(name, def string) string {
	if m == nil {
		return def
	}
	if v, ok := m.Captures[name]; ok && v != "" {
		return v
	}
	return def
}

// Parse returns the first format that matches text, or nil.
func (c *Compiler) Parse(text string) *Match {
	for _, f := range c.formats {
		if f.Compiled == nil {
			continue
		}
		m := f.Compiled.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return &Match{FormatName: f.Name, Captures: captures(f.Compiled, m)}
	}
	return nil
}

// FindAll returns every occurrence of the named format in text.
func (c *Compiler) FindAll(text, formatName string) []map[string]string {
	var out []map[string]string
	for _, f := range c.formats {
		if f.Name != formatName || f.Compiled == nil {
			continue
		}
		for _, m := range f.Compiled.FindAllStringSubmatch(text, -1) {
			out = append(out, captures(f.Compiled, m))
		}
		break
	}
	return out
}

func captures(re *regexp.Regexp, m []string) map[string]string {
	caps := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		caps[name] = m[i]
	}
	return caps
}

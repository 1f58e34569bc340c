// Package registry maps bulletin designators to their grammar decoders
// and provides the top-level decode entry point.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"

	"recon_parser/internal/bulletin"
	"recon_parser/internal/cursor"
)

// Record is the common interface for all decoded bulletin records.
type Record interface {
	// Kind identifies the grammar, e.g. "tcpod", "hdob".
	Kind() string
}

// Decoder is implemented by each message-grammar package.
type Decoder interface {
	// Name returns the decoder's unique identifier.
	Name() string

	// Designators returns the 6-character designators this decoder
	// handles. Several designators may share one grammar.
	Designators() []string

	// Decode consumes the bulletin body (everything after the heading)
	// and returns the structured record.
	Decode(cur *cursor.Cursor, hdr *bulletin.Header) (Record, error)
}

// Registry holds registered decoders keyed by designator.
type Registry struct {
	mu           sync.RWMutex
	byDesignator map[string]Decoder
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{byDesignator: make(map[string]Decoder)}
}

var defaultRegistry = New()

// Default returns the global registry instance.
func Default() *Registry { return defaultRegistry }

// Register adds a decoder to the default registry. Called during init()
// in each decoder package.
func Register(d Decoder) { defaultRegistry.Register(d) }

// Register adds a decoder for each of its designators.
func (r *Registry) Register(d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, des := range d.Designators() {
		r.byDesignator[des] = d
	}
}

// Lookup returns the decoder for a designator.
func (r *Registry) Lookup(designator string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byDesignator[designator]
	return d, ok
}

// Designators returns all registered designators, sorted.
func (r *Registry) Designators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byDesignator))
	for des := range r.byDesignator {
		out = append(out, des)
	}
	sort.Strings(out)
	return out
}

// Options adjust a single decode call.
type Options struct {
	// Context anchors under-specified dates (the heading's DDHHMM).
	Context time.Time

	// Decoder, when set, bypasses the registry lookup.
	Decoder Decoder
}

// Bulletin pairs a decoded header with its record; this is the JSON
// output shape.
type Bulletin struct {
	Header *bulletin.Header `json:"header"`
	Kind   string           `json:"kind"`
	Record Record           `json:"record"`
}

// Decode parses one whole bulletin: cursor construction, header, dispatch
// on designator, then the selected grammar over the remaining lines.
func (r *Registry) Decode(text string, opts Options) (*Bulletin, error) {
	cur, err := cursor.New(text, opts.Context)
	if err != nil {
		return nil, err
	}
	hdr, err := bulletin.DecodeHeader(cur)
	if err != nil {
		return nil, err
	}

	dec := opts.Decoder
	if dec == nil {
		var ok bool
		dec, ok = r.Lookup(hdr.Designator)
		if !ok {
			return nil, cur.Errorf("no decoder registered for designator %s", hdr.Designator)
		}
	}

	rec, err := dec.Decode(cur, hdr)
	if err != nil {
		var pe *cursor.ParseError
		if errors.As(err, &pe) {
			return nil, err
		}
		// A foreign error escaped mid-grammar. It logically occurred
		// before the next unconsumed line, so rewind one line and
		// unify it under the ParseError surface.
		_ = cur.Seek(-1)
		return nil, cur.Wrap(err)
	}
	return &Bulletin{Header: hdr, Kind: rec.Kind(), Record: rec}, nil
}

// Decode parses a bulletin using the default registry.
func Decode(text string, opts Options) (*Bulletin, error) {
	return defaultRegistry.Decode(text, opts)
}

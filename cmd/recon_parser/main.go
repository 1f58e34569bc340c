// Command-line entry point for the reconnaissance bulletin decoder.
//
// Bulletins are fixed-format text products: a WMO abbreviated heading
// followed by one grammar-specific body and a $$ sentinel. The decoder
// for a bulletin is selected by its heading designator (NOUS42 -> plan
// of the day, URNT15 -> HDOB, and so on); -designator forces a
// specific grammar when the heading is absent or mangled.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"recon_parser/internal/cursor"
	_ "recon_parser/internal/decoders" // register all grammars via init()
	"recon_parser/internal/registry"
	"recon_parser/internal/storage"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "recon_parser - commands:")
	fmt.Fprintln(w, "  decode       - decode one bulletin and output JSON")
	fmt.Fprintln(w, "  archive      - decode one bulletin and store it in a SQLite archive")
	fmt.Fprintln(w, "  query        - query the SQLite archive")
	fmt.Fprintln(w, "  designators  - list registered designators")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  recon_parser decode [-input bulletin.txt] [-output out.json] [-pretty] [-context 2024-10-26T00:00:00Z] [-designator NOUS42]")
	fmt.Fprintln(w, "  recon_parser archive -db bulletins.db [-input bulletin.txt] [-context ...] [-designator ...]")
	fmt.Fprintln(w, "  recon_parser query -db bulletins.db [-kind tcpod] [-designator NOUS42] [-station KNHC] [-search MILTON] [-limit 20] [-pretty]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - Input is one whole bulletin (default: stdin).")
	fmt.Fprintln(w, "  - -context anchors the heading's day-of-month; it defaults to now.")
	fmt.Fprintln(w, "")
}

func main() {
	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}
	cmd := strings.ToLower(os.Args[1])
	switch cmd {
	case "decode":
		runDecode(os.Args[2:])
	case "archive":
		runArchive(os.Args[2:])
	case "query":
		runQuery(os.Args[2:])
	case "designators":
		for _, d := range registry.Default().Designators() {
			fmt.Println(d)
		}
	case "-h", "--help", "help":
		usage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage(os.Stderr)
		os.Exit(2)
	}
}

// decodeFlags are the flags shared by decode and archive.
type decodeFlags struct {
	input      *string
	context    *string
	designator *string
}

func addDecodeFlags(fs *flag.FlagSet) decodeFlags {
	return decodeFlags{
		input:      fs.String("input", "", "Input bulletin file (default: stdin)"),
		context:    fs.String("context", "", "Reference instant, RFC 3339 (default: now)"),
		designator: fs.String("designator", "", "Force the grammar of this designator instead of the heading's"),
	}
}

func (f decodeFlags) decode() (*registry.Bulletin, string) {
	var r io.Reader = os.Stdin
	if *f.input != "" {
		fh, err := os.Open(*f.input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open input: %v\n", err)
			os.Exit(1)
		}
		defer fh.Close()
		r = fh
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Input read error: %v\n", err)
		os.Exit(1)
	}
	text := string(raw)

	opts := registry.Options{Context: time.Now().UTC()}
	if *f.context != "" {
		t, err := time.Parse(time.RFC3339, *f.context)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid -context: %v\n", err)
			os.Exit(2)
		}
		opts.Context = t
	}
	if *f.designator != "" {
		dec, ok := registry.Default().Lookup(*f.designator)
		if !ok {
			fmt.Fprintf(os.Stderr, "No decoder registered for designator %s\n", *f.designator)
			os.Exit(2)
		}
		opts.Decoder = dec
	}

	b, err := registry.Decode(text, opts)
	if err != nil {
		var pe *cursor.ParseError
		if errors.As(err, &pe) {
			// ParseError carries the annotated bulletin context.
			fmt.Fprintf(os.Stderr, "Decode failed: %s\n", pe.Error())
		} else {
			fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		}
		os.Exit(1)
	}
	return b, text
}

func runDecode(args []string) {
	fs := flag.NewFlagSet("decode", flag.ExitOnError)
	df := addDecodeFlags(fs)
	outPath := fs.String("output", "", "Output JSON file (default: stdout)")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	_ = fs.Parse(args)

	b, _ := df.decode()

	var wout io.Writer = os.Stdout
	if *outPath != "" {
		fh, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
			os.Exit(1)
		}
		defer fh.Close()
		wout = fh
	}

	enc, err := marshalJSON(b, *pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON encode error: %v\n", err)
		os.Exit(1)
	}
	_, _ = wout.Write(enc)
	if wout == os.Stdout {
		_, _ = wout.Write([]byte("\n"))
	}
}

func runArchive(args []string) {
	fs := flag.NewFlagSet("archive", flag.ExitOnError)
	df := addDecodeFlags(fs)
	dbPath := fs.String("db", "bulletins.db", "SQLite archive path")
	_ = fs.Parse(args)

	b, text := df.decode()

	archive, err := storage.OpenArchive(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open archive: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	id, err := archive.Insert(storage.ArchiveInsertParams{
		ReceivedAt: time.Now().UTC(),
		Designator: b.Header.Designator,
		Station:    b.Header.Station,
		Issued:     b.Header.Issued,
		Kind:       b.Kind,
		RawText:    text,
		Decoded:    b,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to archive bulletin: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("archived bulletin %d (%s %s, kind %s)\n", id, b.Header.Designator, b.Header.Station, b.Kind)
}

func runQuery(args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	dbPath := fs.String("db", "bulletins.db", "SQLite archive path")
	designator := fs.String("designator", "", "Filter by designator")
	station := fs.String("station", "", "Filter by station")
	kind := fs.String("kind", "", "Filter by record kind")
	search := fs.String("search", "", "Full-text search on raw bulletin text")
	limit := fs.Int("limit", 20, "Max results")
	pretty := fs.Bool("pretty", false, "Pretty-print JSON output")
	_ = fs.Parse(args)

	archive, err := storage.OpenArchive(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open archive: %v\n", err)
		os.Exit(1)
	}
	defer archive.Close()

	rows, err := archive.Query(storage.ArchiveQueryParams{
		Designator: *designator,
		Station:    *station,
		Kind:       *kind,
		FullText:   *search,
		Limit:      *limit,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}

	type row struct {
		ID         int64           `json:"id"`
		ReceivedAt time.Time       `json:"received_at"`
		Designator string          `json:"designator"`
		Station    string          `json:"station"`
		Issued     time.Time       `json:"issued"`
		Kind       string          `json:"kind"`
		Decoded    json.RawMessage `json:"decoded"`
	}
	out := make([]row, 0, len(rows))
	for _, b := range rows {
		out = append(out, row{
			ID:         b.ID,
			ReceivedAt: b.ReceivedAt,
			Designator: b.Designator,
			Station:    b.Station,
			Issued:     b.Issued,
			Kind:       b.Kind,
			Decoded:    json.RawMessage(b.DecodedJSON),
		})
	}

	enc, err := marshalJSON(out, *pretty)
	if err != nil {
		fmt.Fprintf(os.Stderr, "JSON encode error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(enc))
}

func marshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

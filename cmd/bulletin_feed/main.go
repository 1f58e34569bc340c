// bulletin_feed subscribes to a NATS subject carrying raw bulletin
// text, decodes each message and fans it out to storage: every
// bulletin is archived in SQLite, HDOB observations go to ClickHouse
// and plan-of-day state goes to PostgreSQL.
//
// A bulletin that fails to decode is logged with its annotated context
// and skipped; the feed keeps running.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"recon_parser/internal/cursor"
	_ "recon_parser/internal/decoders" // register all grammars via init()
	"recon_parser/internal/decoders/hdob"
	"recon_parser/internal/decoders/tcpod"
	"recon_parser/internal/registry"
	"recon_parser/internal/storage"
)

func main() {
	natsURL := flag.String("nats", nats.DefaultURL, "NATS server URL")
	subject := flag.String("subject", "bulletins.raw", "NATS subject carrying raw bulletin text")
	queue := flag.String("queue", "bulletin_feed", "NATS queue group")
	dbPath := flag.String("db", "bulletins.db", "SQLite archive path")

	cfg := storage.DefaultConfig()
	flag.StringVar(&cfg.ClickHouse.Host, "ch-host", cfg.ClickHouse.Host, "ClickHouse host")
	flag.IntVar(&cfg.ClickHouse.Port, "ch-port", cfg.ClickHouse.Port, "ClickHouse port")
	flag.StringVar(&cfg.ClickHouse.Database, "ch-db", cfg.ClickHouse.Database, "ClickHouse database")
	flag.StringVar(&cfg.ClickHouse.Username, "ch-user", cfg.ClickHouse.Username, "ClickHouse username")
	flag.StringVar(&cfg.ClickHouse.Password, "ch-pass", cfg.ClickHouse.Password, "ClickHouse password")
	flag.StringVar(&cfg.Postgres.Host, "pg-host", cfg.Postgres.Host, "PostgreSQL host")
	flag.IntVar(&cfg.Postgres.Port, "pg-port", cfg.Postgres.Port, "PostgreSQL port")
	flag.StringVar(&cfg.Postgres.Database, "pg-db", cfg.Postgres.Database, "PostgreSQL database")
	flag.StringVar(&cfg.Postgres.Username, "pg-user", cfg.Postgres.Username, "PostgreSQL username")
	flag.StringVar(&cfg.Postgres.Password, "pg-pass", cfg.Postgres.Password, "PostgreSQL password")
	createSchemas := flag.Bool("create-schemas", false, "Create database schemas on startup")
	flag.Parse()

	if err := run(*natsURL, *subject, *queue, *dbPath, cfg, *createSchemas); err != nil {
		fmt.Fprintf(os.Stderr, "bulletin_feed: %v\n", err)
		os.Exit(1)
	}
}

func run(natsURL, subject, queue, dbPath string, cfg storage.Config, createSchemas bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	archive, err := storage.OpenArchive(dbPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	db, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if createSchemas {
		if err := db.CreateSchemas(ctx); err != nil {
			return fmt.Errorf("create schemas: %w", err)
		}
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("bulletin_feed"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Drain()

	feed := &feed{archive: archive, db: db}
	sub, err := nc.QueueSubscribe(subject, queue, feed.handle)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	defer sub.Unsubscribe()

	log.Printf("subscribed to %s (queue %s)", subject, queue)
	<-ctx.Done()
	log.Printf("shutting down: archived=%d decode_errors=%d store_errors=%d",
		feed.archived, feed.decodeErrors, feed.storeErrors)
	return nil
}

type feed struct {
	archive *storage.Archive
	db      *storage.DB

	archived     int
	decodeErrors int
	storeErrors  int
}

func (f *feed) handle(msg *nats.Msg) {
	text := string(msg.Data)
	received := time.Now().UTC()

	b, err := registry.Decode(text, registry.Options{Context: received})
	if err != nil {
		f.decodeErrors++
		var pe *cursor.ParseError
		if errors.As(err, &pe) {
			log.Printf("decode failed on %s: %s", msg.Subject, pe.Error())
		} else {
			log.Printf("decode failed on %s: %v", msg.Subject, err)
		}
		return
	}

	if _, err := f.archive.Insert(storage.ArchiveInsertParams{
		ReceivedAt: received,
		Designator: b.Header.Designator,
		Station:    b.Header.Station,
		Issued:     b.Header.Issued,
		Kind:       b.Kind,
		RawText:    text,
		Decoded:    b,
	}); err != nil {
		f.storeErrors++
		log.Printf("archive %s %s: %v", b.Header.Designator, b.Header.Station, err)
		return
	}
	f.archived++

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch rec := b.Record.(type) {
	case *hdob.Record:
		if err := f.db.CH.InsertObservations(ctx, b.Header, rec); err != nil {
			f.storeErrors++
			log.Printf("clickhouse insert %s: %v", b.Header.Designator, err)
		}
	case *tcpod.Record:
		if err := f.db.PG.UpsertPlan(ctx, b.Header.Station, rec); err != nil {
			f.storeErrors++
			log.Printf("postgres upsert %s: %v", rec.Plan.ID, err)
		}
	}
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"recon_parser/internal/decoders/tcpod"
)

// PostgresConfig contains PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool holding mutable
// plan-of-day state.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres creates a new PostgreSQL connection pool.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the connection pool.
func (p *PostgresDB) Close() {
	p.pool.Close()
}

// CreateSchema creates the plan-of-day tables if they don't exist.
func (p *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS tcpod_plans (
		plan_id TEXT PRIMARY KEY,
		tc BOOLEAN NOT NULL,
		year INT NOT NULL,
		sequence INT NOT NULL,
		corrected BOOLEAN NOT NULL DEFAULT FALSE,
		amended BOOLEAN NOT NULL DEFAULT FALSE,
		station TEXT NOT NULL,
		subject TEXT NOT NULL,
		issued TIMESTAMPTZ NOT NULL,
		valid_from TIMESTAMPTZ NOT NULL,
		valid_to TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS tcpod_missions (
		id SERIAL PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES tcpod_plans(plan_id) ON DELETE CASCADE,
		basin TEXT NOT NULL,
		storm TEXT NOT NULL,
		training BOOLEAN NOT NULL DEFAULT FALSE,
		flight TEXT NOT NULL,
		mission_id TEXT NOT NULL,
		required_start TIMESTAMPTZ NOT NULL,
		required_end TIMESTAMPTZ NOT NULL,
		departure TIMESTAMPTZ NOT NULL,
		target_lat DOUBLE PRECISION,
		target_lon DOUBLE PRECISION,
		fix_start TIMESTAMPTZ,
		fix_end TIMESTAMPTZ,
		altitude TEXT NOT NULL,
		profile TEXT NOT NULL,
		activation_required BOOLEAN NOT NULL DEFAULT FALSE,
		remark TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_tcpod_missions_plan ON tcpod_missions(plan_id);
	CREATE INDEX IF NOT EXISTS idx_tcpod_missions_storm ON tcpod_missions(storm);

	CREATE TABLE IF NOT EXISTS tcpod_cancellations (
		id SERIAL PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES tcpod_plans(plan_id) ON DELETE CASCADE,
		blanket BOOLEAN NOT NULL DEFAULT FALSE,
		canceled_plans TEXT[],
		mission TEXT,
		canceled_plan TEXT,
		required_start TIMESTAMPTZ,
		required_end TIMESTAMPTZ,
		canceled_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_tcpod_cancellations_plan ON tcpod_cancellations(plan_id);
	`
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create plan schema: %w", err)
	}
	return nil
}

// UpsertPlan replaces the stored state for one plan of the day. The
// plan row is upserted; missions and cancellations are rewritten from
// the decoded record so a CORRECTION or AMENDMENT fully supersedes the
// earlier issuance.
func (p *PostgresDB) UpsertPlan(ctx context.Context, station string, rec *tcpod.Record) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO tcpod_plans (plan_id, tc, year, sequence, corrected, amended,
			station, subject, issued, valid_from, valid_to, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
		ON CONFLICT (plan_id) DO UPDATE SET
			corrected = EXCLUDED.corrected,
			amended = EXCLUDED.amended,
			station = EXCLUDED.station,
			subject = EXCLUDED.subject,
			issued = EXCLUDED.issued,
			valid_from = EXCLUDED.valid_from,
			valid_to = EXCLUDED.valid_to,
			updated_at = NOW()
	`, rec.Plan.ID, rec.Plan.TC, rec.Plan.Year, rec.Plan.Sequence,
		rec.Plan.Corrected, rec.Plan.Amended, station, rec.Subject,
		rec.Issued, rec.ValidFrom, rec.ValidTo)
	if err != nil {
		return fmt.Errorf("upsert plan: %w", err)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM tcpod_missions WHERE plan_id = $1", rec.Plan.ID); err != nil {
		return fmt.Errorf("clear missions: %w", err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM tcpod_cancellations WHERE plan_id = $1", rec.Plan.ID); err != nil {
		return fmt.Errorf("clear cancellations: %w", err)
	}

	for _, basin := range []*tcpod.Basin{&rec.Primary, &rec.Secondary} {
		if basin.Name == nil {
			continue
		}
		for _, storm := range basin.Storms {
			for _, m := range storm.Missions {
				if err := insertMission(ctx, tx, rec.Plan.ID, *basin.Name, storm, m); err != nil {
					return err
				}
			}
		}
		for _, c := range basin.Cancellations {
			if err := insertCancellation(ctx, tx, rec.Plan.ID, c); err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func insertMission(ctx context.Context, tx pgx.Tx, planID, basin string, storm tcpod.Storm, m tcpod.Mission) error {
	var targetLat, targetLon *float64
	if m.Target != nil {
		targetLat, targetLon = &m.Target.Lat, &m.Target.Lon
	}
	var fixStart, fixEnd *time.Time
	if m.FixWindow != nil {
		fixStart, fixEnd = &m.FixWindow.Start, &m.FixWindow.End
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO tcpod_missions (plan_id, basin, storm, training, flight,
			mission_id, required_start, required_end, departure,
			target_lat, target_lon, fix_start, fix_end,
			altitude, profile, activation_required, remark)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`, planID, basin, storm.Name, storm.Training, m.Flight,
		m.ID, m.Required.Start, m.Required.End, m.Departure,
		targetLat, targetLon, fixStart, fixEnd,
		m.Altitude, m.Profile, m.ActivationRequired, m.Remark)
	if err != nil {
		return fmt.Errorf("insert mission %s: %w", m.ID, err)
	}
	return nil
}

func insertCancellation(ctx context.Context, tx pgx.Tx, planID string, c tcpod.Cancellation) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO tcpod_cancellations (plan_id, blanket, canceled_plans,
			mission, canceled_plan, required_start, required_end, canceled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, planID, c.Blanket, c.Plans, c.Mission, c.Plan,
		c.RequiredStart, c.RequiredEnd, c.CanceledAt)
	if err != nil {
		return fmt.Errorf("insert cancellation: %w", err)
	}
	return nil
}

// GetPlan retrieves the stored plan row by its identifier, or nil when
// absent.
func (p *PostgresDB) GetPlan(ctx context.Context, planID string) (*StoredPlan, error) {
	var sp StoredPlan
	err := p.pool.QueryRow(ctx, `
		SELECT plan_id, tc, year, sequence, corrected, amended,
			station, subject, issued, valid_from, valid_to, updated_at
		FROM tcpod_plans WHERE plan_id = $1
	`, planID).Scan(&sp.PlanID, &sp.TC, &sp.Year, &sp.Sequence, &sp.Corrected,
		&sp.Amended, &sp.Station, &sp.Subject, &sp.Issued, &sp.ValidFrom,
		&sp.ValidTo, &sp.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return &sp, nil
}

// StoredPlan is one tcpod_plans row.
type StoredPlan struct {
	PlanID    string
	TC        bool
	Year      int
	Sequence  int
	Corrected bool
	Amended   bool
	Station   string
	Subject   string
	Issued    time.Time
	ValidFrom time.Time
	ValidTo   time.Time
	UpdatedAt time.Time
}

// ActiveMissions retrieves missions whose required window covers the
// given instant.
func (p *PostgresDB) ActiveMissions(ctx context.Context, at time.Time) ([]StoredMission, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT plan_id, basin, storm, flight, mission_id, required_start, required_end
		FROM tcpod_missions
		WHERE required_start <= $1 AND required_end >= $1
		ORDER BY required_start
	`, at)
	if err != nil {
		return nil, fmt.Errorf("query active missions: %w", err)
	}
	defer rows.Close()

	var out []StoredMission
	for rows.Next() {
		var m StoredMission
		if err := rows.Scan(&m.PlanID, &m.Basin, &m.Storm, &m.Flight,
			&m.MissionID, &m.RequiredStart, &m.RequiredEnd); err != nil {
			return nil, fmt.Errorf("scan mission: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// StoredMission is a summary row from tcpod_missions.
type StoredMission struct {
	PlanID        string
	Basin         string
	Storm         string
	Flight        string
	MissionID     string
	RequiredStart time.Time
	RequiredEnd   time.Time
}

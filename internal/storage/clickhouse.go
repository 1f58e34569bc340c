package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"recon_parser/internal/bulletin"
	"recon_parser/internal/decoders/hdob"
)

// ClickHouseConfig contains ClickHouse connection parameters.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for HDOB telemetry.
type ClickHouseDB struct {
	conn driver.Conn
}

// OpenClickHouse creates a new ClickHouse connection.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (c *ClickHouseDB) Close() error {
	return c.conn.Close()
}

// CreateSchema creates the hdob_observations table if it doesn't exist.
func (c *ClickHouseDB) CreateSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS hdob_observations (
		designator        LowCardinality(String),
		station           LowCardinality(String),
		agency            LowCardinality(String),
		aircraft          LowCardinality(String),
		mission_seq       UInt8,
		storm_id          UInt8,
		basin             LowCardinality(String),
		storm_name        LowCardinality(String),
		observation       UInt8,
		obs_time          DateTime64(0),
		lat               Nullable(Float64),
		lon               Nullable(Float64),
		static_pressure   Nullable(Float64),
		geo_height        Nullable(Int32),
		surface_pressure  Nullable(Float64),
		d_value           Nullable(Int32),
		air_temp          Nullable(Float64),
		dew_point         Nullable(Float64),
		wind_direction    Nullable(Int32),
		wind_speed        Nullable(Int32),
		peak_wind         Nullable(Int32),
		sfmr_wind         Nullable(Int32),
		rain_rate         Nullable(Int32),
		position_quality  UInt8,
		met_quality       UInt8,
		inserted_at       DateTime64(3) DEFAULT now64(3)
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(obs_time)
	ORDER BY (storm_name, obs_time)
	`
	if err := c.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create hdob_observations: %w", err)
	}
	return nil
}

// InsertObservations writes all observations of one HDOB bulletin as a
// single batch.
func (c *ClickHouseDB) InsertObservations(ctx context.Context, hdr *bulletin.Header, rec *hdob.Record) error {
	if len(rec.Observations) == 0 {
		return nil
	}

	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO hdob_observations (
			designator, station, agency, aircraft, mission_seq, storm_id,
			basin, storm_name, observation, obs_time,
			lat, lon, static_pressure, geo_height, surface_pressure, d_value,
			air_temp, dew_point, wind_direction, wind_speed, peak_wind,
			sfmr_wind, rain_rate, position_quality, met_quality
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	m := rec.Mission
	for _, obs := range rec.Observations {
		err := batch.Append(
			hdr.Designator,
			hdr.Station,
			m.Agency,
			m.Aircraft,
			uint8(m.MissionSeq),
			uint8(m.StormID),
			m.Basin,
			m.StormName,
			uint8(m.Observation),
			obs.Time,
			obs.Lat,
			obs.Lon,
			obs.StaticPressure,
			i32(obs.GeopotentialHeight),
			obs.SurfacePressure,
			i32(obs.DValue),
			obs.AirTemp,
			obs.DewPoint,
			i32(obs.WindDirection),
			i32(obs.WindSpeed),
			i32(obs.PeakWind),
			i32(obs.SFMRWind),
			i32(obs.RainRate),
			uint8(obs.PositionQuality.Code),
			uint8(obs.MetQuality.Code),
		)
		if err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

func i32(p *int) *int32 {
	if p == nil {
		return nil
	}
	v := int32(*p)
	return &v
}

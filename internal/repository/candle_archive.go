package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"MT5Pull/internal/domain/models"
	"MT5Pull/internal/domain/repository"
	pkgkafka "MT5Pull/pkg/kafka"
)

// candlesSchema creates the archive table. The ReplacingMergeTree collapses
// re-fetched bars on (symbol, time_frame, open_time), so duplicate batches
// are harmless.
var candlesSchema = []string{
	`CREATE TABLE IF NOT EXISTS %s (
		symbol      LowCardinality(String),
		time_frame  LowCardinality(String),
		open_time   DateTime,
		open        Float64,
		high        Float64,
		low         Float64,
		close       Float64,
		volume      Float64,
		tick_volume Int64,
		spread      Int32,
		real_volume Int64,
		fetched_at  DateTime DEFAULT now()
	) ENGINE = ReplacingMergeTree(fetched_at)
	ORDER BY (symbol, time_frame, open_time)`,
}

// ClickHouseArchiver writes fetched candles into ClickHouse.
type ClickHouseArchiver struct {
	db    *sql.DB
	table string
}

// NewClickHouseArchiver creates ClickHouse-backed candle archive.
func NewClickHouseArchiver(db *sql.DB, table string) repository.Archiver {
	return &ClickHouseArchiver{db: db, table: table}
}

// SchemaStatements returns the idempotent DDL for the archive table.
func SchemaStatements(table string) []string {
	stmts := make([]string, len(candlesSchema))
	for i, s := range candlesSchema {
		stmts[i] = fmt.Sprintf(s, table)
	}
	return stmts
}

func (a *ClickHouseArchiver) Archive(ctx context.Context, symbol string, tf repository.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	// Multi-row VALUES insert to keep round-trips down, chunked so a large
	// backfill cannot build an unbounded statement.
	const chunkSize = 2000
	for start := 0; start < len(candles); start += chunkSize {
		end := start + chunkSize
		if end > len(candles) {
			end = len(candles)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*11)
		for _, c := range candles[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				symbol,
				string(tf),
				time.Unix(c.Time, 0).UTC(),
				c.Open,
				c.High,
				c.Low,
				c.Close,
				c.Volume,
				c.TickVolume,
				c.Spread,
				c.RealVolume,
			)
		}
		q := fmt.Sprintf(
			"INSERT INTO %s (symbol, time_frame, open_time, open, high, low, close, volume, tick_volume, spread, real_volume) VALUES %s",
			a.table, strings.Join(values, ","),
		)
		if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("archive insert: %w", err)
		}
	}
	return nil
}

func (a *ClickHouseArchiver) Close() error {
	return nil // pool is owned by the clickhouse client
}

// KafkaArchiver publishes fetched candles to a Kafka topic, one message per
// bar, keyed by symbol so per-symbol ordering holds under a hash balancer.
type KafkaArchiver struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaArchiver creates Kafka-backed candle archive.
func NewKafkaArchiver(producer *pkgkafka.Producer, topic string) repository.Archiver {
	return &KafkaArchiver{producer: producer, topic: topic}
}

func (a *KafkaArchiver) Archive(ctx context.Context, symbol string, tf repository.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	msgs := make([]pkgkafka.Message, len(candles))
	for i, c := range candles {
		msgs[i] = pkgkafka.Message{
			Key: []byte(symbol),
			Value: map[string]interface{}{
				"symbol":      symbol,
				"time_frame":  string(tf),
				"open_time":   c.Time,
				"open":        c.Open,
				"high":        c.High,
				"low":         c.Low,
				"close":       c.Close,
				"volume":      c.Volume,
				"tick_volume": c.TickVolume,
				"spread":      c.Spread,
				"real_volume": c.RealVolume,
			},
		}
	}
	return a.producer.PublishBatch(ctx, a.topic, msgs)
}

func (a *KafkaArchiver) Close() error {
	if a.producer != nil {
		return a.producer.Close()
	}
	return nil
}

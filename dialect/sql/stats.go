package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/syssam/stackgen/dialect"
)

// Statement kinds counted by StatsDriver.
const (
	kindQuery = "query"
	kindExec  = "exec"
)

// DefaultSlowThreshold is the duration above which a statement counts as slow.
const DefaultSlowThreshold = 100 * time.Millisecond

var (
	statementsDesc = prometheus.NewDesc("stackgen_sql_statements_total",
		"SQL statements executed, by kind.", []string{"dialect", "kind"}, nil)
	durationDesc = prometheus.NewDesc("stackgen_sql_statement_seconds_total",
		"Time spent executing SQL statements.", []string{"dialect"}, nil)
	slowDesc = prometheus.NewDesc("stackgen_sql_slow_statements_total",
		"SQL statements slower than the slow threshold.", []string{"dialect"}, nil)
	errorsDesc = prometheus.NewDesc("stackgen_sql_errors_total",
		"SQL statements that failed.", []string{"dialect"}, nil)
)

// QueryStats holds statement counters. All fields are safe for concurrent use.
type QueryStats struct {
	queries atomic.Int64
	execs   atomic.Int64
	nanos   atomic.Int64
	slow    atomic.Int64
	errors  atomic.Int64
}

// Stats returns a snapshot of the counters.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		Queries:  s.queries.Load(),
		Execs:    s.execs.Load(),
		Duration: time.Duration(s.nanos.Load()),
		Slow:     s.slow.Load(),
		Errors:   s.errors.Load(),
	}
}

// StatsSnapshot is a point-in-time copy of QueryStats.
type StatsSnapshot struct {
	Queries  int64
	Execs    int64
	Duration time.Duration
	Slow     int64
	Errors   int64
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d execs=%d duration=%s slow=%d errors=%d",
		s.Queries, s.Execs, s.Duration, s.Slow, s.Errors)
}

// StatsDriver wraps a Driver, counting statements and logging slow ones.
// It is a prometheus.Collector exporting the counters.
type StatsDriver struct {
	dialect.Driver
	stats  QueryStats
	logger *slog.Logger
	slow   atomic.Int64
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the slow statement threshold. A negative threshold
// marks every statement slow.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.slow.Store(int64(d))
	}
}

// WithSlowQueryLog logs slow statements to l at warn level. Arguments are
// never logged.
func WithSlowQueryLog(l *slog.Logger) StatsOption {
	return func(s *StatsDriver) {
		s.logger = l
	}
}

// NewStatsDriver wraps drv.
//
//	drv, _ := sql.Open(dialect.Postgres, dsn)
//	stats := sql.NewStatsDriver(drv, sql.WithSlowQueryLog(logger))
//	registry.MustRegister(stats)
//	store := sqlstore.New(stats)
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{Driver: drv}
	s.slow.Store(int64(DefaultSlowThreshold))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the counters of d.
func (d *StatsDriver) QueryStats() *QueryStats { return &d.stats }

// SetSlowThreshold changes the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.slow.Store(int64(threshold))
}

// Query implements dialect.ExecQuerier.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	return d.observe(ctx, kindQuery, query, func() error {
		return d.Driver.Query(ctx, query, args, v)
	})
}

// Exec implements dialect.ExecQuerier.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	return d.observe(ctx, kindExec, query, func() error {
		return d.Driver.Exec(ctx, query, args, v)
	})
}

// Tx starts a transaction whose statements are counted by d.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &statsTx{Tx: tx, driver: d}, nil
}

func (d *StatsDriver) observe(ctx context.Context, kind, query string, run func() error) error {
	start := time.Now()
	err := run()
	elapsed := time.Since(start)

	if kind == kindQuery {
		d.stats.queries.Add(1)
	} else {
		d.stats.execs.Add(1)
	}
	d.stats.nanos.Add(int64(elapsed))
	if err != nil {
		d.stats.errors.Add(1)
	}
	if elapsed > time.Duration(d.slow.Load()) {
		d.stats.slow.Add(1)
		if d.logger != nil {
			d.logger.WarnContext(ctx, "slow query",
				slog.String("dialect", d.Dialect()),
				slog.String("kind", kind),
				slog.Duration("duration", elapsed),
				slog.String("query", query),
			)
		}
	}
	return err
}

// Describe implements prometheus.Collector.
func (d *StatsDriver) Describe(ch chan<- *prometheus.Desc) {
	ch <- statementsDesc
	ch <- durationDesc
	ch <- slowDesc
	ch <- errorsDesc
}

// Collect implements prometheus.Collector.
func (d *StatsDriver) Collect(ch chan<- prometheus.Metric) {
	s, name := d.stats.Stats(), d.Dialect()
	ch <- prometheus.MustNewConstMetric(statementsDesc, prometheus.CounterValue, float64(s.Queries), name, kindQuery)
	ch <- prometheus.MustNewConstMetric(statementsDesc, prometheus.CounterValue, float64(s.Execs), name, kindExec)
	ch <- prometheus.MustNewConstMetric(durationDesc, prometheus.CounterValue, s.Duration.Seconds(), name)
	ch <- prometheus.MustNewConstMetric(slowDesc, prometheus.CounterValue, float64(s.Slow), name)
	ch <- prometheus.MustNewConstMetric(errorsDesc, prometheus.CounterValue, float64(s.Errors), name)
}

type statsTx struct {
	dialect.Tx
	driver *StatsDriver
}

func (tx *statsTx) Query(ctx context.Context, query string, args, v any) error {
	return tx.driver.observe(ctx, kindQuery, query, func() error {
		return tx.Tx.Query(ctx, query, args, v)
	})
}

func (tx *statsTx) Exec(ctx context.Context, query string, args, v any) error {
	return tx.driver.observe(ctx, kindExec, query, func() error {
		return tx.Tx.Exec(ctx, query, args, v)
	})
}

var (
	_ dialect.Driver       = (*StatsDriver)(nil)
	_ dialect.Tx           = (*statsTx)(nil)
	_ prometheus.Collector = (*StatsDriver)(nil)
)

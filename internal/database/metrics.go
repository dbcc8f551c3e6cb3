package database

import (
	"database/sql"
	"sync/atomic"
	"time"
)

// Metrics counts statements executed through the Manager.
type Metrics struct {
	db *sql.DB

	queryCount     atomic.Int64
	queryDuration  atomic.Int64
	errorCount     atomic.Int64
	slowQueryCount atomic.Int64

	execCount     atomic.Int64
	selectCount   atomic.Int64
	queryRowCount atomic.Int64
	txCount       atomic.Int64

	slowQueryThreshold time.Duration
}

// MetricsSnapshot is a point-in-time view of the counters.
type MetricsSnapshot struct {
	QueryCount       int64         `json:"query_count"`
	ErrorCount       int64         `json:"error_count"`
	SlowQueryCount   int64         `json:"slow_query_count"`
	ExecCount        int64         `json:"exec_count"`
	SelectCount      int64         `json:"select_count"`
	QueryRowCount    int64         `json:"query_row_count"`
	TxCount          int64         `json:"tx_count"`
	AvgQueryDuration time.Duration `json:"avg_query_duration"`
	DBStats          sql.DBStats   `json:"db_stats"`
	Timestamp        time.Time     `json:"timestamp"`
}

// NewMetrics returns a collector. A zero threshold defaults to 100ms.
func NewMetrics(db *sql.DB, slowQueryThreshold time.Duration) *Metrics {
	if slowQueryThreshold <= 0 {
		slowQueryThreshold = 100 * time.Millisecond
	}
	return &Metrics{db: db, slowQueryThreshold: slowQueryThreshold}
}

// IsSlow reports whether d crosses the slow-query threshold.
func (m *Metrics) IsSlow(d time.Duration) bool {
	return d > m.slowQueryThreshold
}

// RecordQuery records one statement.
func (m *Metrics) RecordQuery(queryType string, duration time.Duration, err error) {
	m.queryCount.Add(1)
	m.queryDuration.Add(int64(duration))

	if err != nil {
		m.errorCount.Add(1)
	}
	if m.IsSlow(duration) {
		m.slowQueryCount.Add(1)
	}

	switch queryType {
	case "exec":
		m.execCount.Add(1)
	case "query":
		m.selectCount.Add(1)
	case "query_row":
		m.queryRowCount.Add(1)
	case "begin_tx":
		m.txCount.Add(1)
	}
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() *MetricsSnapshot {
	count := m.queryCount.Load()

	var avg time.Duration
	if count > 0 {
		avg = time.Duration(m.queryDuration.Load() / count)
	}

	s := &MetricsSnapshot{
		QueryCount:       count,
		ErrorCount:       m.errorCount.Load(),
		SlowQueryCount:   m.slowQueryCount.Load(),
		ExecCount:        m.execCount.Load(),
		SelectCount:      m.selectCount.Load(),
		QueryRowCount:    m.queryRowCount.Load(),
		TxCount:          m.txCount.Load(),
		AvgQueryDuration: avg,
		Timestamp:        time.Now(),
	}
	if m.db != nil {
		s.DBStats = m.db.Stats()
	}
	return s
}

// Reset zeroes every counter.
func (m *Metrics) Reset() {
	for _, c := range []*atomic.Int64{
		&m.queryCount, &m.queryDuration, &m.errorCount, &m.slowQueryCount,
		&m.execCount, &m.selectCount, &m.queryRowCount, &m.txCount,
	} {
		c.Store(0)
	}
}

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"AaveRisk/internal/domain/models"
	domrepo "AaveRisk/internal/domain/repository"
	pkgch "AaveRisk/pkg/clickhouse"
	applogger "AaveRisk/pkg/logger"
)

const insertChunkSize = 2000

// CHSeriesStore implements SeriesStore backed by a ClickHouse ReplacingMergeTree.
type CHSeriesStore struct {
	db       *sql.DB
	database string
	table    string
	l        *applogger.Logger
}

var _ domrepo.SeriesStore = (*CHSeriesStore)(nil)

func NewCHSeriesStore(ch *pkgch.Client, database, table string) *CHSeriesStore {
	return &CHSeriesStore{db: ch.DB(), database: database, table: table, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHSeriesStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

func (s *CHSeriesStore) qualified() string {
	return s.database + "." + s.table
}

// Init creates the database and table when missing.
func (s *CHSeriesStore) Init(ctx context.Context) error {
	for _, stmt := range pkgch.OHLCSchema(s.database, s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.l.Error("clickhouse init error", applogger.String("table", s.qualified()), applogger.Error(err))
			return fmt.Errorf("init series store: %w", err)
		}
	}
	return nil
}

func (s *CHSeriesStore) InsertCandle(ctx context.Context, c models.Candle) error {
	return s.InsertCandles(ctx, []models.Candle{c})
}

// InsertCandles writes bars in multi-row VALUES chunks. Re-inserting a bar
// with the same (chain, address, timestamp) replaces it on merge.
func (s *CHSeriesStore) InsertCandles(ctx context.Context, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	start := time.Now()
	for from := 0; from < len(candles); from += insertChunkSize {
		to := from + insertChunkSize
		if to > len(candles) {
			to = len(candles)
		}
		values := make([]string, 0, to-from)
		args := make([]interface{}, 0, (to-from)*8)
		for _, c := range candles[from:to] {
			c = c.Normalize()
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, c.Address, uint64(c.ChainID), c.Open, c.High, c.Low, c.Close, c.Volume, c.Timestamp)
		}
		q := fmt.Sprintf("INSERT INTO %s (address, chain_id, open, high, low, close, volume, timestamp) VALUES %s",
			s.qualified(), strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse insert_candles error",
				applogger.String("table", s.qualified()),
				applogger.Int("rows", to-from),
				applogger.Error(err),
			)
			return fmt.Errorf("insert candles: %w", err)
		}
	}
	s.l.Debug("clickhouse insert_candles ok",
		applogger.String("table", s.qualified()),
		applogger.Int("rows", len(candles)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return nil
}

// QueryCandles returns raw bars for q.
func (s *CHSeriesStore) QueryCandles(ctx context.Context, q domrepo.SeriesQuery) ([]models.Candle, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sqlText, args := buildSeriesSQL(s.qualified(), q)
	return s.selectCandles(ctx, "query_candles", q, sqlText, args)
}

// AggregateCandles returns bars resampled to q.Interval, calendar aligned in UTC.
func (s *CHSeriesStore) AggregateCandles(ctx context.Context, q domrepo.AggregateQuery) ([]models.Candle, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	sqlText, args := buildAggregateSQL(s.qualified(), q)
	return s.selectCandles(ctx, "aggregate_candles", q.SeriesQuery, sqlText, args)
}

// LatestCandle returns the newest bar or nil when the series is empty.
func (s *CHSeriesStore) LatestCandle(ctx context.Context, address string, chainID int64) (*models.Candle, error) {
	out, err := s.QueryCandles(ctx, domrepo.NewSeriesQuery(address, chainID).Order(domrepo.Descending).Limit(1))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// PriceStats summarizes [from, to]. It returns nil when no bar falls in range.
func (s *CHSeriesStore) PriceStats(ctx context.Context, address string, chainID int64, from, to time.Time) (*models.PriceStats, error) {
	start := time.Now()
	q := domrepo.NewSeriesQuery(address, chainID).From(from).To(to)
	if err := q.Validate(); err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT argMin(open, timestamp), argMax(close, timestamp), max(high), min(low), sum(volume), count()
        FROM %s FINAL
        WHERE address = ? AND chain_id = ? AND timestamp >= ? AND timestamp <= ?
    `
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(qtpl, s.qualified()), q.Address, uint64(q.ChainID), q.Start, q.End)

	var st models.PriceStats
	var count uint64
	if err := row.Scan(&st.FirstPrice, &st.LastPrice, &st.HighPrice, &st.LowPrice, &st.TotalVolume, &count); err != nil {
		s.l.Error("clickhouse price_stats error",
			applogger.String("address", q.Address),
			applogger.Int64("chain_id", q.ChainID),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("price stats: %w", err)
	}
	if count == 0 {
		return nil, nil
	}
	st.Count = int64(count)
	st.PriceChange = st.LastPrice - st.FirstPrice
	if st.FirstPrice != 0 {
		st.PriceChangePercent = st.PriceChange / st.FirstPrice * 100
	}
	s.l.Debug("clickhouse price_stats ok",
		applogger.String("address", q.Address),
		applogger.Int64("chain_id", q.ChainID),
		applogger.Int64("rows", st.Count),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return &st, nil
}

func (s *CHSeriesStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSeriesStore) selectCandles(ctx context.Context, op string, q domrepo.SeriesQuery, sqlText string, args []interface{}) ([]models.Candle, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		s.l.Error("clickhouse "+op+" query error",
			applogger.String("address", q.Address),
			applogger.Int64("chain_id", q.ChainID),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	capHint := q.Max
	if capHint <= 0 || capHint > 1024 {
		capHint = 64
	}
	out := make([]models.Candle, 0, capHint)
	for rows.Next() {
		var (
			c       models.Candle
			chainID uint64
		)
		if err := rows.Scan(&c.Address, &chainID, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Timestamp); err != nil {
			s.l.Error("clickhouse "+op+" scan error", applogger.String("address", q.Address), applogger.Error(err))
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.ChainID = int64(chainID)
		c.Timestamp = c.Timestamp.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse "+op+" rows error", applogger.String("address", q.Address), applogger.Error(err))
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse "+op+" ok",
		applogger.String("address", q.Address),
		applogger.Int64("chain_id", q.ChainID),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// whereClause renders the common filter. Columns are referenced unqualified.
func whereClause(q domrepo.SeriesQuery) (string, []interface{}) {
	conds := []string{"address = ?", "chain_id = ?"}
	args := []interface{}{q.Address, uint64(q.ChainID)}
	if !q.Start.IsZero() {
		conds = append(conds, "timestamp >= ?")
		args = append(args, q.Start)
	}
	if !q.End.IsZero() {
		conds = append(conds, "timestamp <= ?")
		args = append(args, q.End)
	}
	if !q.Cutoff.IsZero() {
		conds = append(conds, "timestamp < ?")
		args = append(args, q.Cutoff)
	}
	return strings.Join(conds, " AND "), args
}

// wrapOrdered applies order and limit. When the retained side differs from
// the output order, the window is selected in an inner query and sorted outside.
func wrapOrdered(inner string, args []interface{}, q domrepo.SeriesQuery) (string, []interface{}) {
	if q.Max <= 0 {
		return fmt.Sprintf("%s ORDER BY timestamp %s", inner, q.Sort), args
	}
	args = append(args, q.Max)
	if !q.NeedsReorder() {
		return fmt.Sprintf("%s ORDER BY timestamp %s LIMIT ?", inner, q.Sort), args
	}
	keep := domrepo.Ascending
	if q.KeepsNewest() {
		keep = domrepo.Descending
	}
	return fmt.Sprintf("SELECT * FROM (%s ORDER BY timestamp %s LIMIT ?) ORDER BY timestamp %s", inner, keep, q.Sort), args
}

func buildSeriesSQL(table string, q domrepo.SeriesQuery) (string, []interface{}) {
	where, args := whereClause(q)
	inner := fmt.Sprintf("SELECT address, chain_id, open, high, low, close, volume, timestamp FROM %s FINAL WHERE %s", table, where)
	return wrapOrdered(inner, args, q)
}

func buildAggregateSQL(table string, q domrepo.AggregateQuery) (string, []interface{}) {
	where, args := whereClause(q.SeriesQuery)
	inner := fmt.Sprintf(`SELECT address, chain_id, o AS open, h AS high, l AS low, c AS close, v AS volume, bucket AS timestamp FROM (
    SELECT address, chain_id,
           argMin(open, timestamp) AS o,
           max(high) AS h,
           min(low) AS l,
           argMax(close, timestamp) AS c,
           sum(volume) AS v,
           %s AS bucket
    FROM %s FINAL
    WHERE %s
    GROUP BY address, chain_id, bucket
)`, bucketExpr(q.Interval), table, where)
	return wrapOrdered(inner, args, q.SeriesQuery)
}

// bucketExpr maps an interval onto a calendar-aligned UTC bucket start.
func bucketExpr(iv domrepo.Interval) string {
	switch iv {
	case domrepo.Interval1m:
		return "toStartOfMinute(timestamp)"
	case domrepo.Interval5m:
		return "toStartOfFiveMinutes(timestamp)"
	case domrepo.Interval15m:
		return "toStartOfFifteenMinutes(timestamp)"
	case domrepo.Interval1h:
		return "toStartOfHour(timestamp)"
	case domrepo.Interval4h:
		return "toStartOfInterval(timestamp, INTERVAL 4 hour)"
	case domrepo.Interval1w:
		return "toDateTime(toMonday(timestamp), 'UTC')"
	case domrepo.Interval1M:
		return "toDateTime(toStartOfMonth(timestamp), 'UTC')"
	default:
		return "toStartOfDay(timestamp)"
	}
}

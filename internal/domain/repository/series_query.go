package repository

import (
	"fmt"
	"strings"
	"time"

	"AaveRisk/internal/domain"
	"AaveRisk/pkg/util"
)

// SortOrder is the timestamp ordering of a result set.
type SortOrder int

const (
	Descending SortOrder = iota
	Ascending
)

func (o SortOrder) String() string {
	switch o {
	case Ascending:
		return "ASC"
	case Descending:
		return "DESC"
	default:
		return fmt.Sprintf("SortOrder(%d)", int(o))
	}
}

// ParseSortOrder accepts ASC/DESC in any case. Empty means Descending.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "DESC":
		return Descending, nil
	case "ASC":
		return Ascending, nil
	default:
		return Descending, fmt.Errorf("%w: order %q", domain.ErrInvalidQuery, s)
	}
}

// KeepSide selects which end of the time range a limit retains.
type KeepSide int

const (
	// KeepBySort keeps the first rows in sort order.
	KeepBySort KeepSide = iota
	KeepNewest
	KeepOldest
)

// SeriesQuery is a storage independent candle request. Build it with
// NewSeriesQuery and the chained setters; each setter returns a copy.
type SeriesQuery struct {
	Address string
	ChainID int64
	Start   time.Time // inclusive, zero means unbounded
	End     time.Time // inclusive, zero means unbounded
	Cutoff  time.Time // exclusive, zero means none
	Sort    SortOrder
	Keep    KeepSide
	Max     int // 0 means no limit
}

func NewSeriesQuery(address string, chainID int64) SeriesQuery {
	return SeriesQuery{Address: strings.ToLower(strings.TrimSpace(address)), ChainID: chainID}
}

func (q SeriesQuery) From(t time.Time) SeriesQuery   { q.Start = t.UTC(); return q }
func (q SeriesQuery) To(t time.Time) SeriesQuery     { q.End = t.UTC(); return q }
func (q SeriesQuery) Before(t time.Time) SeriesQuery { q.Cutoff = t.UTC(); return q }
func (q SeriesQuery) Order(o SortOrder) SeriesQuery  { q.Sort = o; return q }
func (q SeriesQuery) Limit(n int) SeriesQuery        { q.Max = n; return q }
func (q SeriesQuery) Keeping(k KeepSide) SeriesQuery { q.Keep = k; return q }

// Aggregate turns the query into a resampled one.
func (q SeriesQuery) Aggregate(iv Interval) AggregateQuery {
	return AggregateQuery{SeriesQuery: q, Interval: iv}
}

// KeepsNewest reports whether a limit must retain the most recent rows.
func (q SeriesQuery) KeepsNewest() bool {
	switch q.Keep {
	case KeepNewest:
		return true
	case KeepOldest:
		return false
	default:
		return q.Sort == Descending
	}
}

// NeedsReorder is true when the retained side differs from the output order,
// so a store must select the window first and sort it afterwards.
func (q SeriesQuery) NeedsReorder() bool {
	if q.Max <= 0 {
		return false
	}
	return q.KeepsNewest() != (q.Sort == Descending)
}

func (q SeriesQuery) Validate() error {
	if q.Address == "" {
		return fmt.Errorf("%w: address required", domain.ErrInvalidQuery)
	}
	if q.ChainID <= 0 {
		return fmt.Errorf("%w: chain id must be positive", domain.ErrInvalidQuery)
	}
	if !q.Start.IsZero() && !q.End.IsZero() && q.Start.After(q.End) {
		return fmt.Errorf("%w: from must be <= to", domain.ErrInvalidQuery)
	}
	if q.Max < 0 {
		return fmt.Errorf("%w: limit must be >= 0", domain.ErrInvalidQuery)
	}
	if q.Sort != Ascending && q.Sort != Descending {
		return fmt.Errorf("%w: unknown order %s", domain.ErrInvalidQuery, q.Sort)
	}
	if q.Keep < KeepBySort || q.Keep > KeepOldest {
		return fmt.Errorf("%w: unknown keep side %d", domain.ErrInvalidQuery, q.Keep)
	}
	return nil
}

// AggregateQuery resamples bars into Interval buckets with first open, max
// high, min low, last close and summed volume.
type AggregateQuery struct {
	SeriesQuery
	Interval Interval
}

func (q AggregateQuery) Validate() error {
	if err := q.SeriesQuery.Validate(); err != nil {
		return err
	}
	if !IsValidInterval(q.Interval) {
		return fmt.Errorf("%w: unknown interval %q", domain.ErrInvalidQuery, q.Interval)
	}
	return nil
}

// MonthlyWindow selects the n most recent monthly bars strictly before the
// start of now's calendar month, oldest first.
func MonthlyWindow(address string, chainID int64, now time.Time, n int) AggregateQuery {
	return NewSeriesQuery(address, chainID).
		Before(util.StartOfMonth(now)).
		Order(Ascending).
		Keeping(KeepNewest).
		Limit(n).
		Aggregate(Interval1M)
}

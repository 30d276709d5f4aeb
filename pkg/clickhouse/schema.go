package clickhouse

import "fmt"

// OHLCSchema returns the DDL for the daily price table. ReplacingMergeTree
// collapses re-ingested bars for the same (chain, address, timestamp).
func OHLCSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    address    LowCardinality(String),
    chain_id   UInt64,
    open       Float64,
    high       Float64,
    low        Float64,
    close      Float64,
    volume     Float64,
    timestamp  DateTime('UTC'),
    ingested_at DateTime('UTC') DEFAULT now()
)
ENGINE = ReplacingMergeTree(ingested_at)
PARTITION BY toYYYYMM(timestamp)
ORDER BY (chain_id, address, timestamp)`, database, table),
	}
}

package config

import (
	"strings"
	"testing"
	"time"
)

const minimal = `
markets:
  - chain: Ethereum
    chain_id: 1
    assets:
      - { name: WETH, underlying: "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", symbol: WETH, decimals: 18 }
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Ingestion.Schedule != "0 0 3 * * *" {
		t.Fatalf("schedule=%q", c.Ingestion.Schedule)
	}
	if c.Ingestion.InterAssetDelay != 500*time.Millisecond {
		t.Fatalf("delay=%v", c.Ingestion.InterAssetDelay)
	}
	if c.Scenario.BollingerWindow != 20 || c.Scenario.BollingerMultiplier != 2 || c.Scenario.SafetyMultiplier != 1.2 {
		t.Fatalf("unexpected scenario defaults %+v", c.Scenario)
	}
	if c.Backend.Type != "clickhouse" || c.ClickHouse.Table != "ohlc_prices" {
		t.Fatalf("unexpected storage defaults")
	}
	if c.Coingecko.CoinsListTTL != 24*time.Hour {
		t.Fatalf("coins list ttl=%v", c.Coingecko.CoinsListTTL)
	}
	if len(c.Markets) != 1 || c.Markets[0].Assets[0].Decimals != 18 {
		t.Fatalf("unexpected markets %+v", c.Markets)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte("scenario:\n  bollinger_window: 30\n" + minimal))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if c.Scenario.BollingerWindow != 30 {
		t.Fatalf("window=%d", c.Scenario.BollingerWindow)
	}
	if c.Scenario.SafetyMultiplier != 1.2 {
		t.Fatalf("sibling default lost: %v", c.Scenario.SafetyMultiplier)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"no markets":      "environment: test\n",
		"bad backend":     "backend:\n  type: sqlite\n" + minimal,
		"kafka no broker": "backend:\n  type: kafka\n" + minimal,
		"duplicate chain": minimal + "  - chain: Ethereum\n    chain_id: 1\n",
		"missing asset":   minimal + "  - chain: Base\n    chain_id: 8453\n    assets:\n      - { name: WETH }\n",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	c, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	env := map[string]string{
		"COINGECKO_API_KEY": "demo",
		"KAFKA_BROKERS":     "k1:9092,k2:9092",
		"BACKEND":           "kafka",
		"LOG_LEVEL":         "debug",
		"SERVER_PORT":       "9090",
	}
	c.ApplyEnv(func(k string) string { return env[k] })
	if c.Coingecko.APIKey != "demo" || c.Backend.Type != "kafka" || c.Log.Level != "debug" || c.Server.Port != 9090 {
		t.Fatalf("env not applied: %+v", c)
	}
	if strings.Join(c.Kafka.Brokers, ",") != "k1:9092,k2:9092" {
		t.Fatalf("brokers=%v", c.Kafka.Brokers)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestPostgresDSN(t *testing.T) {
	c, _ := Parse([]byte(minimal))
	if got := c.PostgresDSN(); !strings.Contains(got, "dbname=aaverisk") || !strings.Contains(got, "sslmode=disable") {
		t.Fatalf("dsn=%q", got)
	}
	c.Postgres.DSN = "postgres://u:p@h/db"
	if c.PostgresDSN() != "postgres://u:p@h/db" {
		t.Fatalf("explicit dsn must win")
	}
}

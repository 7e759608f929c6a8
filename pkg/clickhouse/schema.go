package clickhouse

import "fmt"

// Table names inside the revenue database.
const (
	TableRoomTypes       = "room_types"
	TableOccupancy       = "daily_occupancy"
	TableRevenue         = "daily_revenue"
	TableForecasts       = "forecasts"
	TablePricingRules    = "pricing_rules"
	TableRecommendations = "tariff_recommendations"
)

// SchemaStatements returns the DDL for database. Mutable tables use
// ReplacingMergeTree keyed on the natural key with a version column, so an
// upsert is an insert and reads use FINAL.
func SchemaStatements(database string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	id Int64, code String, name String, capacity Int32, units Int32, base_rate Float64,
	version UInt64
) ENGINE = ReplacingMergeTree(version) ORDER BY id`, database, TableRoomTypes),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	date Date, room_type_id Int64, available Int32, occupied Int32,
	version UInt64
) ENGINE = ReplacingMergeTree(version) PARTITION BY toYYYYMM(date) ORDER BY (date, room_type_id)`, database, TableOccupancy),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	date Date, room_type_id Int64, revenue Float64,
	version UInt64
) ENGINE = ReplacingMergeTree(version) PARTITION BY toYYYYMM(date) ORDER BY (date, room_type_id)`, database, TableRevenue),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	id Int64, date Date, room_type_id Int64,
	occupancy_pct Float64, occupancy_lower Float64, occupancy_upper Float64,
	adr Float64, revpar Float64, manually_adjusted UInt8,
	version UInt64
) ENGINE = ReplacingMergeTree(version) ORDER BY (date, room_type_id)`, database, TableForecasts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	id Int64, name String, kind LowCardinality(String), params String,
	priority Int32, active UInt8, created_at DateTime64(3), updated_at DateTime64(3),
	version UInt64
) ENGINE = ReplacingMergeTree(version) ORDER BY id`, database, TablePricingRules),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
	id Int64, date Date, room_type_id Int64, channel LowCardinality(String),
	base_rate Float64, recommended_rate Float64, approved_rate Float64,
	state LowCardinality(String),
	created_at DateTime64(3), updated_at DateTime64(3),
	approved_at Nullable(DateTime64(3)), exported_at Nullable(DateTime64(3)),
	version UInt64
) ENGINE = ReplacingMergeTree(version) ORDER BY (date, room_type_id, channel)`, database, TableRecommendations),
	}
}

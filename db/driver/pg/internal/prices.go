// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package internal

const (
	// CreatePriceSamplesTable creates the append-only trade-sample ledger,
	// bucketed per (market, item) to 6-hour alignment.
	CreatePriceSamplesTable = `CREATE TABLE IF NOT EXISTS %s (
		market_id INT4 NOT NULL,
		item_def INT4 NOT NULL,
		bucket TIMESTAMPTZ NOT NULL,
		total_price INT8 NOT NULL,
		quantity INT8 NOT NULL,
		daily_high INT8 NOT NULL,
		daily_low INT8 NOT NULL,
		PRIMARY KEY (market_id, item_def, bucket)
	);`

	// UpsertPriceSample folds a trade sample into its bucket row. Closed
	// buckets are never revisited, so this is append-only at bucket
	// granularity.
	UpsertPriceSample = `INSERT INTO price_samples (market_id, item_def, bucket,
			total_price, quantity, daily_high, daily_low)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (market_id, item_def, bucket) DO UPDATE SET
			total_price = price_samples.total_price + EXCLUDED.total_price,
			quantity = price_samples.quantity + EXCLUDED.quantity,
			daily_high = GREATEST(price_samples.daily_high, EXCLUDED.daily_high),
			daily_low = LEAST(price_samples.daily_low, EXCLUDED.daily_low);`

	// SelectWindowSum sums a (market, item)'s ledger over the trailing
	// window starting at $3.
	SelectWindowSum = `SELECT COALESCE(SUM(total_price), 0), COALESCE(SUM(quantity), 0)
		FROM price_samples
		WHERE market_id = $1 AND item_def = $2 AND bucket >= $3;`
)

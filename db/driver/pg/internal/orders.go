// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package internal

const (
	// CreateOrdersTable creates the resting orders table, specified via the
	// %s printf specifier. A NULL quantity encodes the infinite vendor
	// variant; finite rows are always positive.
	CreateOrdersTable = `CREATE TABLE IF NOT EXISTS %s (
		oid BIGSERIAL PRIMARY KEY,
		market_id INT4 NOT NULL,
		item_id INT8,           -- NULL for buy orders, which carry no stack
		item_def INT4 NOT NULL,
		submitter INT8 NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		duration_secs INT8 NOT NULL, -- 0 = never expires
		sell BOOLEAN NOT NULL,
		price INT8 NOT NULL CHECK (price >= 0),
		quantity INT8 CHECK (quantity IS NULL OR quantity > 0),
		corp_wallet BOOLEAN NOT NULL,
		vendor BOOLEAN NOT NULL,
		scope_corp INT8 NOT NULL DEFAULT 0
	);`

	// CreateOrdersLookupIndex indexes the best-counter-order lookup path.
	CreateOrdersLookupIndex = `CREATE INDEX IF NOT EXISTS idx_orders_lookup
		ON %s (market_id, item_def, sell, price);`

	// InsertOrder inserts an order row and returns the assigned ID.
	InsertOrder = `INSERT INTO orders (market_id, item_id, item_def, submitter,
			submitted_at, duration_secs, sell, price, quantity,
			corp_wallet, vendor, scope_corp)
		VALUES ($1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12)
		RETURNING oid;`

	orderColumns = `oid, market_id, item_id, item_def, submitter,
		submitted_at, duration_secs, sell, price, quantity,
		corp_wallet, vendor, scope_corp`

	// SelectOrder retrieves one order row.
	SelectOrder = `SELECT ` + orderColumns + ` FROM orders WHERE oid = $1;`

	// SelectOrderForUpdate retrieves one order row with a row lock, for use
	// inside a settlement transaction.
	SelectOrderForUpdate = `SELECT ` + orderColumns + `
		FROM orders WHERE oid = $1 FOR UPDATE;`

	// UpdateOrderQuantity persists a partial fill.
	UpdateOrderQuantity = `UPDATE orders SET quantity = $1 WHERE oid = $2;`

	// UpdateOrderPrice persists an owner price modification.
	UpdateOrderPrice = `UPDATE orders SET price = $1 WHERE oid = $2;`

	// DeleteOrder removes an order row. Affecting zero rows is benign; the
	// caller lost a cancel/expiry race.
	DeleteOrder = `DELETE FROM orders WHERE oid = $1;`

	// SelectBestSellOrder finds the lowest-priced eligible sell order at or
	// below the bid, excluding the caller's own orders and honoring
	// corporation scope. Ties break FIFO by submission time, then ID. The
	// row is locked so a concurrent fill cannot match the same stock.
	SelectBestSellOrder = `SELECT ` + orderColumns + `
		FROM orders
		WHERE market_id = $1 AND item_def = $2 AND sell
			AND price <= $3
			AND submitter <> $4
			AND (scope_corp = 0 OR scope_corp = $5)
		ORDER BY price ASC, submitted_at ASC, oid ASC
		LIMIT 1
		FOR UPDATE;`

	// SelectBestBuyOrder mirrors SelectBestSellOrder for the highest bid at
	// or above the ask.
	SelectBestBuyOrder = `SELECT ` + orderColumns + `
		FROM orders
		WHERE market_id = $1 AND item_def = $2 AND NOT sell
			AND price >= $3
			AND submitter <> $4
			AND (scope_corp = 0 OR scope_corp = $5)
		ORDER BY price DESC, submitted_at ASC, oid ASC
		LIMIT 1
		FOR UPDATE;`

	// SelectExpiredOrders finds finite, non-vendor, non-scoped orders whose
	// age exceeds duration_secs * $1 (threshold ratio) at time $2. Scoped
	// orders are cleaned up when a member leaves the owning corporation, a
	// separate flow.
	SelectExpiredOrders = `SELECT ` + orderColumns + `
		FROM orders
		WHERE NOT vendor
			AND scope_corp = 0
			AND quantity IS NOT NULL
			AND duration_secs > 0
			AND submitted_at + make_interval(secs => duration_secs * $1) < $2;`

	// SelectMarketOrders lists a market's resting orders.
	SelectMarketOrders = `SELECT ` + orderColumns + `
		FROM orders WHERE market_id = $1
		ORDER BY submitted_at ASC, oid ASC;`

	// SelectSubmitterOrders lists an entity's resting orders.
	SelectSubmitterOrders = `SELECT ` + orderColumns + `
		FROM orders WHERE submitter = $1
		ORDER BY submitted_at ASC, oid ASC;`
)

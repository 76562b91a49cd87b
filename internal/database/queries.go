package database

// Catalog queries
const (
	GetBranchSQL = `
		SELECT id, restaurant_id, code, name, is_active, accept_orders, timezone,
			   operating_hours, minimum_order_amount, service_charge_percentage
		FROM branches WHERE id = $1`

	GetTableSQL = `
		SELECT id, branch_id, number, is_active, status
		FROM restaurant_tables WHERE id = $1`

	GetMenuItemSQL = `
		SELECT id, restaurant_id, name, image, price, discount_price, is_available,
			   available_quantity, variants, addons, branch_overrides, deleted_at
		FROM menu_items WHERE id = $1`

	ListTaxRulesSQL = `
		SELECT id, restaurant_id, COALESCE(branch_id, ''), position, name, type, value,
			   applicable_on, category, applicable_order_types, min_order_amount,
			   max_order_amount, is_active
		FROM tax_rules
		WHERE restaurant_id = $1 AND is_active
		ORDER BY position, id`
)

// Order queries
const (
	orderColumns = `
		id, order_number, restaurant_id, branch_id, table_id, table_number, session_id,
		order_type, customer_name, customer_phone, customer_email, subtotal, taxes,
		total_tax_amount, service_charge_percentage, service_charge_amount, discount_amount,
		total_amount, status, payment_status, payment_method, assigned_staff_id,
		assigned_staff_name, special_instructions, cancellation_reason, ordered_at,
		confirmed_at, preparing_at, ready_at, served_at, completed_at, cancelled_at, updated_at`

	InsertOrderSQL = `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
				$18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33)`

	InsertOrderItemSQL = `
		INSERT INTO order_items (id, order_id, position, menu_item_id, name, image, quantity,
			unit_price, variant, addons, customizations, special_instructions, item_total, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	InsertOrderStatusLogSQL = `
		INSERT INTO order_status_log (id, order_id, from_status, to_status, changed_by, note, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	GetOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	GetOrderItemsSQL = `
		SELECT id, menu_item_id, name, image, quantity, unit_price, variant, addons,
			   customizations, special_instructions, item_total, status
		FROM order_items WHERE order_id = $1
		ORDER BY position`

	GetOrderStatusHistorySQL = `
		SELECT id, order_id, from_status, to_status, changed_by, note, changed_at
		FROM order_status_log
		WHERE order_id = $1
		ORDER BY changed_at, id`

	OrderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	HasActiveOrderSQL = `
		SELECT EXISTS (
			SELECT 1 FROM orders
			WHERE table_id = $1 AND status NOT IN ('completed', 'cancelled'))`

	// UpdateOrderStatusSQL only applies while status and payment are unchanged since the read
	UpdateOrderStatusSQL = `
		UPDATE orders SET
			status = $4, cancellation_reason = $5, confirmed_at = $6, preparing_at = $7,
			ready_at = $8, served_at = $9, completed_at = $10, cancelled_at = $11, updated_at = $12
		WHERE id = $1 AND status = $2 AND payment_status = $3`

	UpdateOrderFieldsSQL = `
		UPDATE orders SET
			payment_status = COALESCE($3, payment_status),
			payment_method = COALESCE($4, payment_method),
			assigned_staff_id = CASE WHEN $5::text IS NULL THEN assigned_staff_id ELSE $5 END,
			assigned_staff_name = CASE WHEN $5::text IS NULL THEN assigned_staff_name ELSE $6 END,
			updated_at = $7
		WHERE id = $1 AND status = $2`

	UpdateOrderItemStatusSQL = `
		UPDATE order_items SET status = $3
		WHERE order_id = $1 AND id = $2`

	NextOrderNumberSQL = `
		INSERT INTO order_number_counters (prefix, day, last_value)
		VALUES ($1, $2, 1)
		ON CONFLICT (prefix, day) DO UPDATE
			SET last_value = order_number_counters.last_value + 1
		RETURNING last_value`
)

// Table and session queries
const (
	LockTableSQL = `SELECT id FROM restaurant_tables WHERE id = $1 FOR UPDATE`

	UpdateTableStatusSQL = `UPDATE restaurant_tables SET status = $2 WHERE id = $1`

	FindActiveSessionSQL = `
		SELECT id FROM customer_sessions
		WHERE table_id = $1 AND status = 'active'
		ORDER BY started_at DESC
		LIMIT 1
		FOR UPDATE`

	LinkSessionSQL = `UPDATE customer_sessions SET order_id = $2 WHERE id = $1`

	CloseSessionSQL = `
		UPDATE customer_sessions SET status = 'closed', closed_at = $2
		WHERE id = $1 AND status = 'active'`
)

// Seed upserts
const (
	UpsertBranchSQL = `
		INSERT INTO branches (id, restaurant_id, code, name, is_active, accept_orders, timezone,
			operating_hours, minimum_order_amount, service_charge_percentage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			restaurant_id = EXCLUDED.restaurant_id, code = EXCLUDED.code, name = EXCLUDED.name,
			is_active = EXCLUDED.is_active, accept_orders = EXCLUDED.accept_orders,
			timezone = EXCLUDED.timezone, operating_hours = EXCLUDED.operating_hours,
			minimum_order_amount = EXCLUDED.minimum_order_amount,
			service_charge_percentage = EXCLUDED.service_charge_percentage`

	UpsertTableSQL = `
		INSERT INTO restaurant_tables (id, branch_id, number, is_active, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			branch_id = EXCLUDED.branch_id, number = EXCLUDED.number, is_active = EXCLUDED.is_active`

	UpsertMenuItemSQL = `
		INSERT INTO menu_items (id, restaurant_id, name, image, price, discount_price, is_available,
			available_quantity, variants, addons, branch_overrides, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			restaurant_id = EXCLUDED.restaurant_id, name = EXCLUDED.name, image = EXCLUDED.image,
			price = EXCLUDED.price, discount_price = EXCLUDED.discount_price,
			is_available = EXCLUDED.is_available, available_quantity = EXCLUDED.available_quantity,
			variants = EXCLUDED.variants, addons = EXCLUDED.addons,
			branch_overrides = EXCLUDED.branch_overrides, deleted_at = EXCLUDED.deleted_at`

	UpsertTaxRuleSQL = `
		INSERT INTO tax_rules (id, restaurant_id, branch_id, position, name, type, value,
			applicable_on, category, applicable_order_types, min_order_amount, max_order_amount, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			restaurant_id = EXCLUDED.restaurant_id, branch_id = EXCLUDED.branch_id,
			position = EXCLUDED.position, name = EXCLUDED.name, type = EXCLUDED.type,
			value = EXCLUDED.value, applicable_on = EXCLUDED.applicable_on,
			category = EXCLUDED.category, applicable_order_types = EXCLUDED.applicable_order_types,
			min_order_amount = EXCLUDED.min_order_amount, max_order_amount = EXCLUDED.max_order_amount,
			is_active = EXCLUDED.is_active`

	UpsertSessionSQL = `
		INSERT INTO customer_sessions (id, table_id, status, started_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`
)

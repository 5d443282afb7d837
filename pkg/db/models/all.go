package models

// All lists every persisted model, in dependency order, for schema tooling
// and sqlite backed tests.
func All() []any {
	return []any{
		&SKU{},
		&VariantOption{},
		&Variant{},
		&Product{},
		&Cart{},
		&SellProduct{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}

package domain

// OrderRepository defines durable access to OrderRecord state.
// Submission writes the provisional record; the reconciler is the only
// steady-state writer; watchers are concurrent readers.
type OrderRepository interface {
	// Upsert merges the partial update into the record, creating it
	// with safe defaults when absent, and returns the merged result.
	Upsert(orderID int64, update OrderUpdate) (*OrderRecord, error)

	// Get returns the record, or nil when not found (not an error).
	Get(orderID int64) (*OrderRecord, error)

	// List returns all records in order-id order.
	List() ([]OrderRecord, error)
}

package outbox

// Row states of an outbox entry persisted inside the same transaction as the
// state change it describes. The relay moves rows from pending to published.
const (
	StatusPending   = "pending"
	StatusPublished = "published"
)

// DefaultBatchSize bounds one relay cycle.
const DefaultBatchSize = 100

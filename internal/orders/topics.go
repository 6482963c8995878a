package orders

const (
	TopicOrderPlaced    = "orders.placed"
	TopicOrderCancelled = "orders.cancelled"
)

// Partition key = order_id so every event of one order stays ordered.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

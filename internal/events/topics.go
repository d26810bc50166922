package events

// Topic constants for domain events emitted by checkout.
const (
	TopicOrderPlaced        = "order.placed"
	TopicOrderStatusChanged = "order.status_changed"
)

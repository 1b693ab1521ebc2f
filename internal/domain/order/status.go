package order

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// validStatuses is the declared value set, in lifecycle order. The engine
// accepts any declared value from any current status: operators may re-open
// or roll back an order.
var validStatuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// Valid reports whether s is one of the five declared statuses.
func (s Status) Valid() bool {
	for _, v := range validStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether s ends the order lifecycle.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// ValidStatuses returns the declared status values in lifecycle order.
// The returned slice is a copy; callers may modify it.
func ValidStatuses() []Status {
	out := make([]Status, len(validStatuses))
	copy(out, validStatuses)
	return out
}

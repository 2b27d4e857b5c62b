package domain

// Status is an order's lifecycle state. Orders advance one step at a time
// toward Delivered; Cancelled is reachable from any non-terminal state.
type Status string

const (
	StatusPending          Status = "pending"
	StatusConfirmed        Status = "confirmed"
	StatusInProduction     Status = "in_production"
	StatusReadyForDelivery Status = "ready_for_delivery"
	StatusDelivered        Status = "delivered"
	StatusCancelled        Status = "cancelled"
)

var statusTransitions = map[Status][]Status{
	StatusPending:          {StatusConfirmed, StatusCancelled},
	StatusConfirmed:        {StatusInProduction, StatusCancelled},
	StatusInProduction:     {StatusReadyForDelivery, StatusCancelled},
	StatusReadyForDelivery: {StatusDelivered, StatusCancelled},
	StatusDelivered:        nil,
	StatusCancelled:        nil,
}

// ParseStatus maps a wire value to a known Status.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	_, ok := statusTransitions[st]
	return st, ok
}

func (s Status) Valid() bool {
	_, ok := statusTransitions[s]
	return ok
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	next, ok := statusTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether moving from s to next is allowed.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

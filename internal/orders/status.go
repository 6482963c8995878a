package orders

type Status string

const (
	StatusConfirmed      Status = "confirmed"
	StatusPickedUp       Status = "picked_up"
	StatusProcessing     Status = "processing"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusConfirmed:      {StatusPickedUp: true, StatusCancelled: true},
	StatusPickedUp:       {StatusProcessing: true},
	StatusProcessing:     {StatusOutForDelivery: true},
	StatusOutForDelivery: {StatusDelivered: true},
	StatusDelivered:      {},
	StatusCancelled:      {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

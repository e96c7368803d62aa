package orders

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusCompleted: true, StatusRefunded: true, StatusCancelled: true},
	StatusCompleted:  {StatusRefunded: true},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// PaymentStatus tracks the money side independently of fulfilment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentAwaiting PaymentStatus = "awaiting_payment"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

var validNextPayment = map[PaymentStatus]map[PaymentStatus]bool{
	PaymentPending:  {PaymentAwaiting: true, PaymentPaid: true, PaymentFailed: true},
	PaymentAwaiting: {PaymentPaid: true, PaymentFailed: true},
	// a failed payment can still be retried by the customer
	PaymentFailed:   {PaymentPaid: true},
	PaymentPaid:     {PaymentRefunded: true},
	PaymentRefunded: {},
}

func CanTransitionPayment(from, to PaymentStatus) bool {
	return validNextPayment[from][to]
}

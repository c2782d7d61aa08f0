package scheduling

import "slices"

// bookingTransitions lists every legal target per status. Statuses with no
// targets are terminal.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCompleted: nil,
	StatusCancelled: nil,
	StatusNoShow:    nil,
}

// paymentTransitions is independent of the booking status: a refunded
// booking keeps whatever booking status it had.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:  {PaymentPaid, PaymentFailed},
	PaymentPaid:     {PaymentRefunded},
	PaymentFailed:   nil,
	PaymentRefunded: nil,
}

func CanTransition(from, to BookingStatus) bool {
	return slices.Contains(bookingTransitions[from], to)
}

func CanChangePayment(from, to PaymentStatus) bool {
	return slices.Contains(paymentTransitions[from], to)
}

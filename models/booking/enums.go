package booking

// BookingStatus is the job lifecycle axis.
type BookingStatus string

const (
	BookingStatusPending        BookingStatus = "pending"
	BookingStatusPaymentPending BookingStatus = "payment_pending"
	BookingStatusConfirmed      BookingStatus = "confirmed"
	BookingStatusInProgress     BookingStatus = "in_progress"
	BookingStatusCompleted      BookingStatus = "completed"
	BookingStatusCancelled      BookingStatus = "cancelled"
	BookingStatusExpired        BookingStatus = "expired"
)

func (bs BookingStatus) String() string {
	return string(bs)
}

func (bs BookingStatus) IsValid() bool {
	switch bs {
	case BookingStatusPending, BookingStatusPaymentPending, BookingStatusConfirmed,
		BookingStatusInProgress, BookingStatusCompleted, BookingStatusCancelled, BookingStatusExpired:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further lifecycle transition is permitted.
func (bs BookingStatus) IsTerminal() bool {
	return bs == BookingStatusCompleted || bs == BookingStatusCancelled || bs == BookingStatusExpired
}

// CanBeCancelled returns true if the booking can still be cancelled.
func (bs BookingStatus) CanBeCancelled() bool {
	return !bs.IsTerminal()
}

// GetAllBookingStatuses returns all valid booking statuses.
func GetAllBookingStatuses() []BookingStatus {
	return []BookingStatus{
		BookingStatusPending,
		BookingStatusPaymentPending,
		BookingStatusConfirmed,
		BookingStatusInProgress,
		BookingStatusCompleted,
		BookingStatusCancelled,
		BookingStatusExpired,
	}
}

// PaymentStatus is the money axis, independent of the job lifecycle.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusAuthorized PaymentStatus = "authorized"
	PaymentStatusPaid       PaymentStatus = "paid"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

func (ps PaymentStatus) String() string {
	return string(ps)
}

func (ps PaymentStatus) IsValid() bool {
	switch ps {
	case PaymentStatusPending, PaymentStatusAuthorized, PaymentStatusPaid,
		PaymentStatusFailed, PaymentStatusRefunded:
		return true
	default:
		return false
	}
}

// HoldsMoney returns true if the gateway is holding or has taken funds.
func (ps PaymentStatus) HoldsMoney() bool {
	return ps == PaymentStatusAuthorized || ps == PaymentStatusPaid
}

// DispatchState is the worker-binding axis, independent of payment.
type DispatchState string

const (
	DispatchStateUnassigned     DispatchState = "unassigned"
	DispatchStateDirectAssigned DispatchState = "direct_assigned"
	DispatchStateBroadcastOpen  DispatchState = "broadcast_open"
	DispatchStateBound          DispatchState = "bound"
)

func (ds DispatchState) String() string {
	return string(ds)
}

// IsAssigned returns true once a worker is bound to the booking.
func (ds DispatchState) IsAssigned() bool {
	return ds == DispatchStateDirectAssigned || ds == DispatchStateBound
}

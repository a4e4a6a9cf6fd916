package constants

// Organization permissions
const (
	// Admin permissions
	PermSuperAdminFull = "homecare-booking.super-admin.full-permit"
	PermOperatorFull   = "homecare-booking.operator.full-permit"
	PermDispatcherFull = "homecare-booking.dispatcher.full-permit"
	PermWorkerFull     = "homecare-booking.worker.full-permit"
	PermCustomerFull   = "homecare-booking.customer.full-permit"

	// Special permissions
	PermAny = "any"
)

// Permission groups for convenience
var (
	BackofficePermissions = []string{
		PermSuperAdminFull,
		PermOperatorFull,
		PermDispatcherFull,
	}
)

package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	RepairOrderStatusReceived   = "RECEIVED"
	RepairOrderStatusInProgress = "IN_PROGRESS"
	RepairOrderStatusCompleted  = "COMPLETED"
	RepairOrderStatusPaid       = "PAID"
	RepairOrderStatusCancelled  = "CANCELLED"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleOwner    = "OWNER"
	UserRoleAdmin    = "ADMIN"
	UserRoleCashier  = "CASHIER"
	UserRoleMechanic = "MECHANIC"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash     = "CASH"
	PaymentMethodQRIS     = "QRIS"
	PaymentMethodTransfer = "TRANSFER"
	PaymentMethodCard     = "CARD"
)

// LineItemsEditable reports whether a repair order in the given status still
// accepts line item changes.
func LineItemsEditable(status string) bool {
	switch status {
	case RepairOrderStatusReceived, RepairOrderStatusInProgress, RepairOrderStatusCompleted:
		return true
	}
	return false
}

// AcceptsPayments reports whether a repair order in the given status can take payments.
func AcceptsPayments(status string) bool {
	switch status {
	case RepairOrderStatusReceived, RepairOrderStatusInProgress, RepairOrderStatusCompleted:
		return true
	}
	return false
}

func IsValidPaymentMethod(s string) bool {
	switch s {
	case PaymentMethodCash, PaymentMethodQRIS, PaymentMethodTransfer, PaymentMethodCard:
		return true
	}
	return false
}

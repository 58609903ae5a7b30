package order

import "errors"

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrDuplicatePayment = errors.New("order already exists for payment")
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const paymentIDConstraint = "orders_payment_id_key"

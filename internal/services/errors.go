package services

import "errors"

// Subscription ledger errors
var (
	ErrDuplicateReference = errors.New("payment reference already exists")
	ErrUnknownReference   = errors.New("unknown payment reference")
	ErrAmountMismatch     = errors.New("verified amount does not match subscription amount")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrSelfSubscription   = errors.New("cannot subscribe to yourself")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrPaymentNotSettled  = errors.New("payment not settled at gateway yet")
)

// Earnings and withdrawal errors
var (
	ErrInsufficientBalance = errors.New("insufficient pending balance")
	ErrBalanceChanged      = errors.New("pending balance changed during withdrawal")
	ErrAlreadyDecided      = errors.New("withdrawal already decided")
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrInvalidOutcome      = errors.New("outcome must be approved or rejected")
	ErrInvalidRate         = errors.New("revenue rate must be in (0, 1]")
	ErrLockNotAcquired     = errors.New("could not acquire lock")
)

// Pricing errors
var (
	ErrPriceTooLow = errors.New("subscription fee is below the minimum")
)

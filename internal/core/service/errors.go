package service

import "errors"

var (
	ErrInvalidPosition   = errors.New("invalid position")
	ErrUnavailable       = errors.New("unavailable")
	ErrCashNotSupported  = errors.New("cash not supported")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrTransactionFailed = errors.New("transaction failed")
	ErrDispenseFailed    = errors.New("dispense failed")
	ErrNoTransaction     = errors.New("no transaction")
	ErrReversalFailed    = errors.New("reversal failed")
	ErrAlreadySettled    = errors.New("payment already settled")
	ErrSlotUnavailable   = errors.New("slot unavailable")
	ErrUnknownItem       = errors.New("unknown item")
)

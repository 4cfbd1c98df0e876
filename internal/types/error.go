// Shared across inventory and vend to avoid import cycle.
package types

import (
	"fmt"

	"github.com/juju/errors"
	"github.com/temoto/vendsim/currency"
)

type ErrorCode uint8

const (
	ErrorNone ErrorCode = iota
	ErrorProductListEmpty
	ErrorCoinListEmpty
	ErrorProductNotFound
	ErrorProductOutOfStock
	ErrorInvalidSelection
	ErrorNoProductSelected
	ErrorInvalidCoinType
	ErrorInsufficientFunds
	ErrorCannotGiveChange
	ErrorCoinLoading
	ErrorProductDelivery
	ErrorIndexOutOfRange
	ErrorMachine
)

var errorCodeNames = [...]string{
	ErrorNone:              "None",
	ErrorProductListEmpty:  "ProductListEmpty",
	ErrorCoinListEmpty:     "CoinListEmpty",
	ErrorProductNotFound:   "ProductNotFound",
	ErrorProductOutOfStock: "ProductOutOfStock",
	ErrorInvalidSelection:  "InvalidSelection",
	ErrorNoProductSelected: "NoProductSelected",
	ErrorInvalidCoinType:   "InvalidCoinType",
	ErrorInsufficientFunds: "InsufficientFunds",
	ErrorCannotGiveChange:  "CannotGiveChange",
	ErrorCoinLoading:       "CoinLoadingError",
	ErrorProductDelivery:   "ProductDeliveryError",
	ErrorIndexOutOfRange:   "IndexOutOfRange",
	ErrorMachine:           "MachineError",
}

func (c ErrorCode) String() string {
	if int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return fmt.Sprintf("ErrorCode(%d)", uint8(c))
}

// Error is the cause of every expected vending failure.
// Credit is set for InsufficientFunds.
type Error struct {
	Code   ErrorCode
	Msg    string
	Credit currency.Amount
}

func (e *Error) Error() string { return e.Msg }

func NewError(code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns ErrorNone for nil, ErrorMachine for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ErrorNone
	}
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Code
	}
	return ErrorMachine
}

func IsCode(err error, code ErrorCode) bool { return err != nil && CodeOf(err) == code }

// IsTerminal: failure ends current transaction. InsufficientFunds is expected
// steady state during coin insertion.
func IsTerminal(err error) bool {
	return err != nil && CodeOf(err) != ErrorInsufficientFunds
}

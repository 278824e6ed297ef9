package swapper

import (
	"errors"
	"fmt"
)

// Kind classifies swapper errors
type Kind string

const (
	KindValidationFailed       Kind = "ValidationFailed"
	KindUnsupportedPair        Kind = "UnsupportedPair"
	KindUnsupportedChain       Kind = "UnsupportedChain"
	KindUnsupportedNamespace   Kind = "UnsupportedNamespace"
	KindResponseError          Kind = "ResponseError"
	KindCheckApprovalFailed    Kind = "CheckApprovalFailed"
	KindApproveInfiniteFailed  Kind = "ApproveInfiniteFailed"
	KindBuildTradeFailed       Kind = "BuildTradeFailed"
	KindExecuteTradeFailed     Kind = "ExecuteTradeFailed"
	KindSignAndBroadcastFailed Kind = "SignAndBroadcastFailed"
	KindUsdRateFailed          Kind = "UsdRateFailed"
	KindTradeQuoteFailed       Kind = "TradeQuoteFailed"
	KindMinMaxFailed           Kind = "MinMaxFailed"
	KindMakeMemoFailed         Kind = "MakeMemoFailed"
	KindPriceUnavailable       Kind = "PriceUnavailable"
	KindAlreadyExists          Kind = "AlreadyExists"
	KindNotFound               Kind = "NotFound"
)

// Sentinels for errors.Is. Matching is by kind anywhere in the chain.
var (
	ErrValidationFailed       = &Error{Kind: KindValidationFailed}
	ErrUnsupportedPair        = &Error{Kind: KindUnsupportedPair}
	ErrUnsupportedChain       = &Error{Kind: KindUnsupportedChain}
	ErrUnsupportedNamespace   = &Error{Kind: KindUnsupportedNamespace}
	ErrResponseError          = &Error{Kind: KindResponseError}
	ErrCheckApprovalFailed    = &Error{Kind: KindCheckApprovalFailed}
	ErrApproveInfiniteFailed  = &Error{Kind: KindApproveInfiniteFailed}
	ErrBuildTradeFailed       = &Error{Kind: KindBuildTradeFailed}
	ErrExecuteTradeFailed     = &Error{Kind: KindExecuteTradeFailed}
	ErrSignAndBroadcastFailed = &Error{Kind: KindSignAndBroadcastFailed}
	ErrUsdRateFailed          = &Error{Kind: KindUsdRateFailed}
	ErrTradeQuoteFailed       = &Error{Kind: KindTradeQuoteFailed}
	ErrMinMaxFailed           = &Error{Kind: KindMinMaxFailed}
	ErrMakeMemoFailed         = &Error{Kind: KindMakeMemoFailed}
	ErrPriceUnavailable       = &Error{Kind: KindPriceUnavailable}
	ErrAlreadyExists          = &Error{Kind: KindAlreadyExists}
	ErrNotFound               = &Error{Kind: KindNotFound}
)

// Error is the error type returned by every swapper operation
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Details map[string]any
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NewError creates an error of the given kind
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps cause with kind. A nil cause returns nil.
func Wrap(kind Kind, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithDetails attaches structured details to the error
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// KindOf returns the kind of the outermost *Error in err's chain, or "".
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// HasKind reports whether any error in err's chain has the given kind
func HasKind(err error, kind Kind) bool {
	return errors.Is(err, &Error{Kind: kind})
}

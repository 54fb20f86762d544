// Package errors defines the error surface of the liquidity pool program.
//
// Program-specific failures carry a small fixed set of numeric codes that the
// host reports as "custom program error: 0x<n>". Conditions the host runtime
// itself defines (missing signature, bad account data, ...) are builtin errors
// without a custom number. Every error keeps a human-readable message meant for
// operator logs.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	ErrCodeInvalidInstruction        = "INVALID_INSTRUCTION"
	ErrCodeInvalidInitializer        = "INVALID_INITIALIZER"
	ErrCodeNotRentExempt             = "NOT_RENT_EXEMPT"
	ErrCodeInvalidRatio              = "INVALID_RATIO"
	ErrCodeAmountOverflow            = "AMOUNT_OVERFLOW"
	ErrCodeDivisionByZero            = "DIVISION_BY_ZERO"
	ErrCodeMissingRequiredSignature  = "MISSING_REQUIRED_SIGNATURE"
	ErrCodeAccountAlreadyInitialized = "ACCOUNT_ALREADY_INITIALIZED"
	ErrCodeUninitializedAccount      = "UNINITIALIZED_ACCOUNT"
	ErrCodeInvalidAccountData        = "INVALID_ACCOUNT_DATA"
	ErrCodeNotEnoughAccountKeys      = "NOT_ENOUGH_ACCOUNT_KEYS"
	ErrCodeIncorrectProgramID        = "INCORRECT_PROGRAM_ID"
	ErrCodeInvalidSeeds              = "INVALID_SEEDS"
	ErrCodeInvalidArgument           = "INVALID_ARGUMENT"
)

// Custom error numbers, in declaration order of the program's error enum.
const (
	NumberInvalidInstruction uint32 = iota
	NumberInvalidInitializer
	NumberNotRentExempt
	NumberInvalidRatio
	NumberAmountOverflow
	NumberDivisionByZero
)

// ProgramError is the error type returned by every program operation.
type ProgramError struct {
	// Code is a unique error code for this error type.
	Code string

	// Number is the numeric code surfaced to callers. Only meaningful when
	// Custom is true.
	Number uint32

	// Custom marks program-defined errors, as opposed to host conditions.
	Custom bool

	// Message is a human-readable error message.
	Message string

	// Cause is the underlying error, if any.
	Cause error

	// Details contains additional error context.
	Details map[string]any
}

// Error implements the error interface.
func (e *ProgramError) Error() string {
	head := e.Code
	if e.Custom {
		head = fmt.Sprintf("%s(0x%x)", e.Code, e.Number)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", head, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", head, e.Message)
}

// Unwrap returns the underlying error.
func (e *ProgramError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches the target.
func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error carrying cause.
// Pre-defined errors are shared values, so they are never mutated in place.
func (e *ProgramError) WithCause(cause error) *ProgramError {
	c := *e
	c.Cause = cause
	return &c
}

// WithDetails returns a copy of the error carrying details.
func (e *ProgramError) WithDetails(details map[string]any) *ProgramError {
	c := *e
	c.Details = details
	return &c
}

// HostCode renders the error the way the host runtime reports it.
func (e *ProgramError) HostCode() string {
	if e.Custom {
		return fmt.Sprintf("custom program error: 0x%x", e.Number)
	}
	return e.Code
}

// NewError creates a new builtin ProgramError and registers its code with
// FromCode.
func NewError(code, message string) *ProgramError {
	return register(&ProgramError{
		Code:    code,
		Message: message,
	})
}

// NewCustomError creates a new program-defined ProgramError.
func NewCustomError(code string, number uint32, message string) *ProgramError {
	return register(&ProgramError{
		Code:    code,
		Number:  number,
		Custom:  true,
		Message: message,
	})
}

var byCode = map[string]*ProgramError{}

func register(e *ProgramError) *ProgramError {
	byCode[e.Code] = e
	return e
}

// Program errors.
var (
	// ErrInvalidInstruction is returned for an unknown opcode or truncated arguments.
	ErrInvalidInstruction = NewCustomError(ErrCodeInvalidInstruction, NumberInvalidInstruction, "invalid instruction")

	// ErrInvalidInitializer is returned when Close is attempted by anyone but the initializer.
	ErrInvalidInitializer = NewCustomError(ErrCodeInvalidInitializer, NumberInvalidInitializer, "invalid initializer")

	// ErrNotRentExempt is returned when the pool state account cannot cover rent exemption.
	ErrNotRentExempt = NewCustomError(ErrCodeNotRentExempt, NumberNotRentExempt, "not rent exempt")

	// ErrInvalidRatio is returned when a deposit does not match the pool ratio.
	ErrInvalidRatio = NewCustomError(ErrCodeInvalidRatio, NumberInvalidRatio, "invalid ratio")

	// ErrAmountOverflow is returned when checked arithmetic overflows.
	ErrAmountOverflow = NewCustomError(ErrCodeAmountOverflow, NumberAmountOverflow, "amount overflow")

	// ErrDivisionByZero is returned when a ratio would be computed with a zero divisor.
	ErrDivisionByZero = NewCustomError(ErrCodeDivisionByZero, NumberDivisionByZero, "division by zero")
)

// Host conditions.
var (
	ErrMissingRequiredSignature  = NewError(ErrCodeMissingRequiredSignature, "missing required signature")
	ErrAccountAlreadyInitialized = NewError(ErrCodeAccountAlreadyInitialized, "account already initialized")
	ErrUninitializedAccount      = NewError(ErrCodeUninitializedAccount, "uninitialized account")
	ErrInvalidAccountData        = NewError(ErrCodeInvalidAccountData, "invalid account data")
	ErrNotEnoughAccountKeys      = NewError(ErrCodeNotEnoughAccountKeys, "not enough account keys")
	ErrIncorrectProgramID        = NewError(ErrCodeIncorrectProgramID, "incorrect program id")
	ErrInvalidSeeds              = NewError(ErrCodeInvalidSeeds, "invalid seeds")
	ErrInvalidArgument           = NewError(ErrCodeInvalidArgument, "invalid argument")
)

var byNumber = map[uint32]*ProgramError{
	NumberInvalidInstruction: ErrInvalidInstruction,
	NumberInvalidInitializer: ErrInvalidInitializer,
	NumberNotRentExempt:      ErrNotRentExempt,
	NumberInvalidRatio:       ErrInvalidRatio,
	NumberAmountOverflow:     ErrAmountOverflow,
	NumberDivisionByZero:     ErrDivisionByZero,
}

// FromNumber maps a custom error number back to its ProgramError.
func FromNumber(n uint32) (*ProgramError, bool) {
	e, ok := byNumber[n]
	return e, ok
}

// FromCode maps an error code string back to its ProgramError.
func FromCode(code string) (*ProgramError, bool) {
	e, ok := byCode[code]
	return e, ok
}

// HostCode renders err the way the host runtime reports it: custom program
// errors as their hex number and builtin conditions as their code. Errors
// outside the program's surface render as their message.
func HostCode(err error) string {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.HostCode()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// Code extracts the code of the first ProgramError in err's chain.
// It returns an empty string when there is none.
func Code(err error) string {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

package errors

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every layer.
const (
	ErrCodeInternal       ErrorCode = "COMMON_001"
	ErrCodeInvalidParam   ErrorCode = "COMMON_002"
	ErrCodeNotFound       ErrorCode = "COMMON_003"
	ErrCodeConflict       ErrorCode = "COMMON_004"
	ErrCodeValidation     ErrorCode = "COMMON_005"
	ErrCodeConfigError    ErrorCode = "COMMON_006"
	ErrCodeNotImplemented ErrorCode = "COMMON_007"
	ErrCodeCancelled      ErrorCode = "COMMON_008"
)

// Simulation error codes.
const (
	// ErrCodeNumericalInstability marks a single Monte Carlo path whose
	// arithmetic degenerated (NaN, Inf, or a balance that escaped the zero
	// floor). The affected path is discarded; the run continues.
	ErrCodeNumericalInstability ErrorCode = "SIM_001"

	// ErrCodeFellerViolation marks CIR parameters that fail 2κθ ≥ σ².
	// Reported as a warning only; discretisation proceeds regardless.
	ErrCodeFellerViolation ErrorCode = "SIM_002"
)

// Valuation error codes.
const (
	// ErrCodeInsufficientData marks a valuation with zero usable paths,
	// either because none were requested or because every path was discarded.
	ErrCodeInsufficientData ErrorCode = "VAL_001"

	// ErrCodeValuationFailed marks an aggregate-level valuation failure that
	// is not attributable to a single path.
	ErrCodeValuationFailed ErrorCode = "VAL_002"
)

// Aliases used at call sites throughout the engine.
const (
	CodeInternal             = ErrCodeInternal
	CodeInvalidParam         = ErrCodeInvalidParam
	CodeNotFound             = ErrCodeNotFound
	CodeConflict             = ErrCodeConflict
	CodeConfig               = ErrCodeConfigError
	CodeNotImplemented       = ErrCodeNotImplemented
	CodeCancelled            = ErrCodeCancelled
	CodeNumericalInstability = ErrCodeNumericalInstability
	CodeFellerViolation      = ErrCodeFellerViolation
	CodeInsufficientData     = ErrCodeInsufficientData
	CodeValuationFailed      = ErrCodeValuationFailed
	CodeOK                   = ErrorCode("OK")
	CodeUnknown              = ErrorCode("UNKNOWN")
)

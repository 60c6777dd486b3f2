package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidPeriod        ErrorCode = 102
	ErrCodeInvalidPosition      ErrorCode = 103
	ErrCodeInvalidTrade         ErrorCode = 104
	ErrCodeInsufficientData     ErrorCode = 105

	// Data/provider errors (200-299)
	ErrCodeDataUnavailable  ErrorCode = 200
	ErrCodeFetchFailed      ErrorCode = 201
	ErrCodeParseFailed      ErrorCode = 202
	ErrCodeProviderTimeout  ErrorCode = 203
	ErrCodeAllProvidersDown ErrorCode = 204

	// Indicator errors (300-399)
	ErrCodeIndicatorCalculation ErrorCode = 300

	// Signal errors (400-499)
	ErrCodeSignalFailed    ErrorCode = 400
	ErrCodeSignalMalformed ErrorCode = 401

	// Sizing/trading errors (500-599)
	ErrCodeDegenerateSizing   ErrorCode = 500
	ErrCodePositionNotFound   ErrorCode = 501
	ErrCodeInvariantViolation ErrorCode = 502

	// Backtest state errors (600-699)
	ErrCodeStateInitFailed  ErrorCode = 600
	ErrCodeStateQueryFailed ErrorCode = 601
	ErrCodeStateWriteFailed ErrorCode = 602
)

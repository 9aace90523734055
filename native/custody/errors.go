package custody

import "errors"

var (
	// ErrAmountZero indicates a deposit or withdrawal carried a non-positive amount.
	ErrAmountZero = errors.New("custody: amount must be positive")
	// ErrValueMismatch indicates the attached native value did not match the declared deposit parameters.
	ErrValueMismatch = errors.New("custody: attached value does not match declared amount")
	// ErrBankCapacityExceeded indicates a native deposit would push holdings above the bank cap.
	ErrBankCapacityExceeded = errors.New("custody: bank capacity exceeded")
	// ErrInsufficientBalance indicates a debit larger than the recorded balance.
	ErrInsufficientBalance = errors.New("custody: insufficient balance")
	// ErrWithdrawLimitExceeded indicates a withdrawal breached the USD ceiling or the per-transaction native cap.
	ErrWithdrawLimitExceeded = errors.New("custody: withdrawal limit exceeded")
	// ErrInvalidOraclePrice indicates the feed reported a non-positive price.
	ErrInvalidOraclePrice = errors.New("custody: oracle price must be positive")
	// ErrStaleOracleData indicates the feed answered from a superseded round.
	ErrStaleOracleData = errors.New("custody: stale oracle round")
	// ErrInvalidOracleDecimals indicates the feed precision differs from the expected constant.
	ErrInvalidOracleDecimals = errors.New("custody: unexpected oracle decimals")
	// ErrUnauthorized indicates the caller lacks the role required by the operation.
	ErrUnauthorized = errors.New("custody: caller lacks required role")
	// ErrZeroAddress indicates a real identity was required but the zero address was supplied.
	ErrZeroAddress = errors.New("custody: zero address not allowed")
	// ErrNativeTransferFailed indicates the outbound native transfer was rejected.
	ErrNativeTransferFailed = errors.New("custody: native transfer failed")
	// ErrTokenTransferFailed indicates the fungible token transfer reported failure.
	ErrTokenTransferFailed = errors.New("custody: token transfer failed")
	// ErrReentrancy indicates a guarded operation was re-entered while already in progress.
	ErrReentrancy = errors.New("custody: reentrant call detected")
	// ErrUnknownAsset indicates no transfer backend is registered for the asset.
	ErrUnknownAsset = errors.New("custody: unknown asset")
)

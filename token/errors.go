package token

import "errors"

var (
	ErrUnknownInstruction    = errors.New("unknown token instruction")
	ErrNotMintAuthority      = errors.New("signer is not the mint authority")
	ErrMintMismatch          = errors.New("account belongs to a different mint")
	ErrDecimalsMismatch      = errors.New("decimals do not match the mint")
	ErrOwnerMismatch         = errors.New("authority is neither owner nor delegate")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientAllowance = errors.New("delegated amount exceeded")
	ErrAddressMismatch       = errors.New("account is not at the derived address")
	ErrMissingExtraAccount   = errors.New("transfer hook extra account not provided")
	ErrInvalidExtraMeta      = errors.New("invalid extra account meta")
	ErrNotTokenAccount       = errors.New("account is not owned by the token program")
)

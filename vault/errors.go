package vault

import "errors"

var (
	ErrUnknownInstruction  = errors.New("unknown vault instruction")
	ErrInvalidProof        = errors.New("merkle proof does not match the active root")
	ErrAlreadyExists       = errors.New("admission record already exists")
	ErrUnauthorized        = errors.New("signer is not the vault administrator")
	ErrNotWhitelisted      = errors.New("authority has no admission record")
	ErrNotTransferring     = errors.New("source account is not in a transfer")
	ErrInsufficientDeposit = errors.New("withdraw exceeds deposited amount")
	ErrNoPendingRoot       = errors.New("no pending merkle root")
	ErrZeroRoot            = errors.New("merkle root must not be zero")
	ErrAccountMismatch     = errors.New("account does not match the vault config")
	ErrInvalidMint         = errors.New("mint is not governed by this vault")
)

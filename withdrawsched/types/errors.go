package types

import (
	errorsmod "cosmossdk.io/errors"
)

// Withdraw scheduler errors
var (
	// ErrUnknownAccount error raised when an account was never loaded into the ledger
	ErrUnknownAccount = errorsmod.Register(ModuleName, 2, "unknown account")

	// ErrVersionNotSettled error raised when a version has a settlement gap below it
	ErrVersionNotSettled = errorsmod.Register(ModuleName, 3, "version not settled")

	// ErrVersionPruned error raised when a version is below the retention floor
	ErrVersionPruned = errorsmod.Register(ModuleName, 4, "version pruned")

	// ErrBalanceRead error raised when the balance reader fails
	ErrBalanceRead = errorsmod.Register(ModuleName, 5, "failed to read balance")

	// ErrInvalidAccount error raised when an account id cannot be decoded
	ErrInvalidAccount = errorsmod.Register(ModuleName, 6, "invalid account")

	// ErrInvalidBalance error raised when a stored or supplied balance is malformed
	ErrInvalidBalance = errorsmod.Register(ModuleName, 7, "invalid balance")

	// ErrInvalidRequest error raised when a replayed request is malformed
	ErrInvalidRequest = errorsmod.Register(ModuleName, 8, "invalid request")
)

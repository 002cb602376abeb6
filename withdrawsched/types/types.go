package types

import (
	"fmt"
	"sort"

	"cosmossdk.io/math"
)

// AccountID identifies a balance-bearing account. It holds the canonical
// bech32 form of the account address so it can be used as a map key.
type AccountID string

// Version is an accumulator version. Settlement for version V moves the
// ledger from V-1 to V.
type Version = uint64

// TxID identifies a transaction, usually the upper-case hex of its hash.
type TxID string

// TxWithdrawRequest carries the amounts a transaction wants to withdraw from
// each account it touches.
type TxWithdrawRequest struct {
	TxID         TxID
	Reservations map[AccountID]uint64
}

// SortedAccounts returns the accounts of the request in canonical order.
func (r TxWithdrawRequest) SortedAccounts() []AccountID {
	return SortAccounts(r.Reservations)
}

// BalanceSettlement is the net balance change of every touched account for a
// single version. Absent accounts have a zero delta.
type BalanceSettlement struct {
	Version        Version
	BalanceChanges map[AccountID]math.Int
}

// SortedAccounts returns the accounts of the settlement in canonical order.
func (s BalanceSettlement) SortedAccounts() []AccountID {
	return SortAccounts(s.BalanceChanges)
}

// SortAccounts returns the keys of m in ascending order.
func SortAccounts[V any](m map[AccountID]V) []AccountID {
	out := make([]AccountID, 0, len(m))
	for account := range m {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ScheduleResult is the final outcome of a withdraw reservation.
type ScheduleResult int

const (
	// SufficientBalance means every reservation of the request was committed.
	SufficientBalance ScheduleResult = iota + 1
	// InsufficientBalance means at least one account could not cover its amount
	// and nothing was committed.
	InsufficientBalance
	// AlreadyScheduled means the transaction id was seen before.
	AlreadyScheduled
)

func (r ScheduleResult) String() string {
	switch r {
	case SufficientBalance:
		return "sufficient_balance"
	case InsufficientBalance:
		return "insufficient_balance"
	case AlreadyScheduled:
		return "already_scheduled"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

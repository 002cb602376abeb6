package withdrawsched

import (
	"context"

	"cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

// BalanceReader supplies the balance of an account as of the scheduler's
// init version.
type BalanceReader interface {
	GetBalance(ctx context.Context, account types.AccountID) (math.Int, error)
}

// BankKeeper is the subset of a bank keeper used by BankBalanceReader.
type BankKeeper interface {
	GetBalance(ctx context.Context, addr sdk.AccAddress, denom string) (math.Int, error)
}

// ResolutionListener can be registered to observe every resolved withdraw
// reservation. Listeners are invoked outside of scheduler locks.
type ResolutionListener interface {
	OnWithdrawResolved(txID types.TxID, version types.Version, result types.ScheduleResult)
}

// Stats is a point-in-time summary of the scheduler state.
type Stats struct {
	Accounts         int
	RegisteredTxs    int
	InitVersion      types.Version
	Floor            types.Version
	SettledWatermark types.Version
}

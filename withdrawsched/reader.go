package withdrawsched

import (
	"context"
	"sync"

	"cosmossdk.io/math"
	"cosmossdk.io/store/prefix"
	storetypes "cosmossdk.io/store/types"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

var (
	_ BalanceReader = (*BankBalanceReader)(nil)
	_ BalanceReader = (*StoreBalanceReader)(nil)
	_ BalanceReader = (*MapBalanceReader)(nil)
)

// BalanceKeyPrefix is the default prefix under which StoreBalanceReader keeps balances.
var BalanceKeyPrefix = []byte{0x01}

// BankBalanceReader reads balances of a single denom from a bank keeper.
type BankBalanceReader struct {
	keeper BankKeeper
	denom  string
}

// NewBankBalanceReader creates a reader for denom backed by keeper.
func NewBankBalanceReader(keeper BankKeeper, denom string) *BankBalanceReader {
	if keeper == nil {
		panic("bank keeper is required")
	}
	return &BankBalanceReader{keeper: keeper, denom: denom}
}

// GetBalance implements BalanceReader.
func (r *BankBalanceReader) GetBalance(ctx context.Context, account types.AccountID) (math.Int, error) {
	addr, err := accAddress(account)
	if err != nil {
		return math.Int{}, err
	}
	return r.keeper.GetBalance(ctx, addr, r.denom)
}

// StoreBalanceReader reads balance snapshots from a KVStore. Balances are kept
// under BalanceKeyPrefix keyed by the raw account address bytes.
type StoreBalanceReader struct {
	store storetypes.KVStore
}

// NewStoreBalanceReader wraps parent with the balance prefix.
func NewStoreBalanceReader(parent storetypes.KVStore) *StoreBalanceReader {
	return &StoreBalanceReader{store: prefix.NewStore(parent, BalanceKeyPrefix)}
}

// SetBalance writes the balance snapshot of account.
func (r *StoreBalanceReader) SetBalance(account types.AccountID, balance math.Int) error {
	addr, err := accAddress(account)
	if err != nil {
		return err
	}
	bz, err := balance.Marshal()
	if err != nil {
		return types.ErrInvalidBalance.Wrap(err.Error())
	}
	r.store.Set(addr, bz)
	return nil
}

// GetBalance implements BalanceReader. Missing accounts have a zero balance.
func (r *StoreBalanceReader) GetBalance(_ context.Context, account types.AccountID) (math.Int, error) {
	addr, err := accAddress(account)
	if err != nil {
		return math.Int{}, err
	}
	bz := r.store.Get(addr)
	if bz == nil {
		return math.ZeroInt(), nil
	}

	var balance math.Int
	if err := balance.Unmarshal(bz); err != nil {
		return math.Int{}, types.ErrInvalidBalance.Wrapf("account %s: %v", account, err)
	}
	return balance, nil
}

// MapBalanceReader serves balances from memory. Missing accounts have a zero
// balance.
type MapBalanceReader struct {
	mtx      sync.RWMutex
	balances map[types.AccountID]math.Int
}

// NewMapBalanceReader creates a reader over a copy of balances.
func NewMapBalanceReader(balances map[types.AccountID]math.Int) *MapBalanceReader {
	copied := make(map[types.AccountID]math.Int, len(balances))
	for account, balance := range balances {
		copied[account] = balance
	}
	return &MapBalanceReader{balances: copied}
}

// SetBalance overrides the balance of account.
func (r *MapBalanceReader) SetBalance(account types.AccountID, balance math.Int) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.balances[account] = balance
}

// GetBalance implements BalanceReader.
func (r *MapBalanceReader) GetBalance(_ context.Context, account types.AccountID) (math.Int, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	if balance, ok := r.balances[account]; ok {
		return balance, nil
	}
	return math.ZeroInt(), nil
}

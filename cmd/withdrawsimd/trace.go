package main

import (
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/pelletier/go-toml"

	"cosmossdk.io/math"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched"
	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

const (
	stepSchedule = "schedule"
	stepSettle   = "settle"
	stepPrune    = "prune"
)

// trace is a replayable sequence of scheduler calls.
//
//	init-version = 0
//
//	[balances]
//	"0x01" = "100"
//
//	[[steps]]
//	kind = "schedule"
//	version = 0
//	  [[steps.withdraws]]
//	  tx = "tx1"
//	  reservations = { "0x01" = 50 }
//	  [[steps.withdraws]]
//	  tx-bytes = "0a0b0c"
//	  reservations = { "0x01" = 10 }
//
//	[[steps]]
//	kind = "settle"
//	version = 1
//	changes = { "0x01" = "-50" }
type trace struct {
	InitVersion uint64            `toml:"init-version"`
	Balances    map[string]string `toml:"balances"`
	Steps       []traceStep       `toml:"steps"`
}

type traceStep struct {
	Kind      string            `toml:"kind"`
	Version   uint64            `toml:"version"`
	Withdraws []traceWithdraw   `toml:"withdraws"`
	Changes   map[string]string `toml:"changes"`
}

// traceWithdraw names its transaction either directly by tx or by the hex
// encoded raw tx bytes, whose hash becomes the tx id.
type traceWithdraw struct {
	Tx           string           `toml:"tx"`
	TxBytes      string           `toml:"tx-bytes"`
	Reservations map[string]int64 `toml:"reservations"`
}

func (w traceWithdraw) txID() (types.TxID, error) {
	if w.TxBytes == "" {
		return types.TxID(w.Tx), nil
	}
	if w.Tx != "" {
		return "", types.ErrInvalidRequest.Wrapf("tx %s: both tx and tx-bytes are set", w.Tx)
	}
	bz, err := hex.DecodeString(w.TxBytes)
	if err != nil {
		return "", types.ErrInvalidRequest.Wrapf("tx-bytes %q: %v", w.TxBytes, err)
	}
	return withdrawsched.TxIDFromBytes(bz), nil
}

// loadTrace reads and unmarshals the trace file at path.
func loadTrace(path string) (*trace, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, err
	}

	var t trace
	if err := tree.Unmarshal(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// genesisBalances decodes the init balance table.
func (t *trace) genesisBalances() (map[types.AccountID]math.Int, error) {
	out := make(map[types.AccountID]math.Int, len(t.Balances))
	for account, amount := range t.Balances {
		id, err := withdrawsched.DecodeAccountID(account)
		if err != nil {
			return nil, err
		}
		balance, ok := math.NewIntFromString(amount)
		if !ok {
			return nil, types.ErrInvalidBalance.Wrapf("account %s: %q", account, amount)
		}
		out[id] = balance
	}
	return out, nil
}

// accounts returns the decoded genesis accounts in canonical order.
func (t *trace) accounts() ([]string, error) {
	out := make([]string, 0, len(t.Balances))
	for account := range t.Balances {
		id, err := withdrawsched.DecodeAccountID(account)
		if err != nil {
			return nil, err
		}
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out, nil
}

func (s traceStep) withdrawRequests() ([]types.TxWithdrawRequest, error) {
	reqs := make([]types.TxWithdrawRequest, 0, len(s.Withdraws))
	for _, w := range s.Withdraws {
		txID, err := w.txID()
		if err != nil {
			return nil, err
		}
		req := types.TxWithdrawRequest{
			TxID:         txID,
			Reservations: make(map[types.AccountID]uint64, len(w.Reservations)),
		}
		for account, amount := range w.Reservations {
			if amount < 0 {
				return nil, fmt.Errorf("tx %s: negative reservation %d for %s", txID, amount, account)
			}
			id, err := withdrawsched.DecodeAccountID(account)
			if err != nil {
				return nil, err
			}
			req.Reservations[id] = uint64(amount)
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func (s traceStep) settlement() (types.BalanceSettlement, error) {
	out := types.BalanceSettlement{
		Version:        s.Version,
		BalanceChanges: make(map[types.AccountID]math.Int, len(s.Changes)),
	}
	for account, amount := range s.Changes {
		id, err := withdrawsched.DecodeAccountID(account)
		if err != nil {
			return out, err
		}
		delta, ok := math.NewIntFromString(amount)
		if !ok {
			return out, types.ErrInvalidBalance.Wrapf("version %d account %s: %q", s.Version, account, amount)
		}
		out.BalanceChanges[id] = delta
	}
	return out, nil
}

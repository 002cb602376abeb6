package withdrawsched

import (
	"encoding/hex"
	"strings"

	comettypes "github.com/cometbft/cometbft/types"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

// TxIDFromBytes returns the transaction id of the given tx bytes.
func TxIDFromBytes(txBytes []byte) types.TxID {
	return types.TxID(strings.ToUpper(hex.EncodeToString(comettypes.Tx(txBytes).Hash())))
}

// AccountIDFromAddress returns the canonical account id of addr.
func AccountIDFromAddress(addr sdk.AccAddress) types.AccountID {
	return types.AccountID(addr.String())
}

// DecodeAccountID decodes an address which can be either hex or bech32
// encoded into its canonical account id.
func DecodeAccountID(account string) (types.AccountID, error) {
	addr, err := DecodeAddress(account)
	if err != nil {
		return "", types.ErrInvalidAccount.Wrapf("%s: %v", account, err)
	}
	return AccountIDFromAddress(addr), nil
}

// DecodeAddress decodes a string address which can be either hex or bech32 encoded.
func DecodeAddress(account string) (sdk.AccAddress, error) {
	if strings.HasPrefix(account, "0x") {
		raw, err := hex.DecodeString(strings.TrimPrefix(account, "0x"))
		if err != nil {
			return nil, err
		}
		return sdk.AccAddress(raw), nil
	}
	return sdk.AccAddressFromBech32(account)
}

// accAddress converts a canonical account id back into an address.
func accAddress(account types.AccountID) (sdk.AccAddress, error) {
	addr, err := DecodeAddress(string(account))
	if err != nil {
		return nil, types.ErrInvalidAccount.Wrapf("%s: %v", account, err)
	}
	return addr, nil
}

package withdrawsched

import (
	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	servertypes "github.com/cosmos/cosmos-sdk/server/types"
)

// DefaultRetainVersions keeps every settled version queryable.
const DefaultRetainVersions = uint64(0)

const (
	flagRetainVersions = "withdraw-scheduler.retain-versions"
	flagMetricsEnabled = "withdraw-scheduler.metrics-enabled"
	flagEagerAccounts  = "withdraw-scheduler.eager-accounts"
)

// Config is the operator facing configuration of the withdraw scheduler.
type Config struct {
	// RetainVersions is the number of settled versions kept queryable below
	// the settled watermark. Zero disables automatic pruning.
	//
	// Pruning also forgets the transaction ids scheduled below the new floor.
	// Such an id submitted again at a live version is treated as new and
	// reserved a second time.
	RetainVersions uint64 `mapstructure:"retain-versions"`

	// MetricsEnabled turns on telemetry emission.
	MetricsEnabled bool `mapstructure:"metrics-enabled"`

	// EagerAccounts are read from the balance reader at construction.
	EagerAccounts []string `mapstructure:"eager-accounts"`
}

// DefaultConfig returns the default settings for Config
func DefaultConfig() Config {
	return Config{
		RetainVersions: DefaultRetainVersions,
		MetricsEnabled: true,
	}
}

// GetConfig load config values from the app options
func GetConfig(appOpts servertypes.AppOptions) Config {
	return Config{
		RetainVersions: cast.ToUint64(appOpts.Get(flagRetainVersions)),
		MetricsEnabled: cast.ToBool(appOpts.Get(flagMetricsEnabled)),
		EagerAccounts:  cast.ToStringSlice(appOpts.Get(flagEagerAccounts)),
	}
}

// AddConfigFlags registers the withdraw scheduler flags on cmd.
func AddConfigFlags(cmd *cobra.Command) {
	cmd.Flags().Uint64(flagRetainVersions, DefaultRetainVersions, "Number of settled versions kept queryable (0 keeps all)")
	cmd.Flags().Bool(flagMetricsEnabled, true, "Emit withdraw scheduler telemetry")
	cmd.Flags().StringSlice(flagEagerAccounts, nil, "Accounts whose balances are loaded at startup")
}

// DefaultConfigTemplate default config template for the withdraw scheduler
const DefaultConfigTemplate = `
###############################################################################
###                         Withdraw Scheduler                              ###
###############################################################################

[withdraw-scheduler]
# Number of settled versions kept queryable below the settled watermark.
# Older versions are folded into the account baselines. 0 keeps every version.
# Transaction ids scheduled below the pruned floor are forgotten.
retain-versions = {{ .WithdrawScheduler.RetainVersions }}

# Emit withdraw scheduler telemetry.
metrics-enabled = {{ .WithdrawScheduler.MetricsEnabled }}

# Accounts whose balances are loaded when the scheduler is created.
eager-accounts = [{{ range $i, $a := .WithdrawScheduler.EagerAccounts }}{{ if $i }}, {{ end }}"{{ $a }}"{{ end }}]
`

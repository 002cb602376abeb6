package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cosmossdk.io/log"

	"github.com/initia-labs/withdraw-scheduler/withdrawsched"
	"github.com/initia-labs/withdraw-scheduler/withdrawsched/types"
)

// resultPrinter writes every resolution, duplicates included, in the order
// the scheduler decided them.
type resultPrinter struct {
	out io.Writer
}

func (p *resultPrinter) OnWithdrawResolved(txID types.TxID, version types.Version, result types.ScheduleResult) {
	fmt.Fprintf(p.out, "%d %s %s\n", version, txID, result)
}

func replayCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [trace-file]",
		Short: "Replay a TOML trace of schedule, settle and prune steps",
		Long: `Replay a TOML trace against a fresh scheduler seeded from the trace balances.
Every resolution is printed as "<version> <tx> <result>" in request order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(v)
			if err != nil {
				return err
			}

			t, err := loadTrace(args[0])
			if err != nil {
				return err
			}

			cfg := withdrawsched.GetConfig(v)
			return runReplay(cmd.Context(), cmd.OutOrStdout(), t, cfg, logger)
		},
	}

	withdrawsched.AddConfigFlags(cmd)
	return cmd
}

// runReplay executes every trace step in order and reports the results to out.
// Contract violations in the trace surface as errors instead of crashing the
// process.
func runReplay(ctx context.Context, out io.Writer, t *trace, cfg withdrawsched.Config, logger log.Logger) error {
	balances, err := t.genesisBalances()
	if err != nil {
		return err
	}
	accounts, err := t.accounts()
	if err != nil {
		return err
	}
	cfg.EagerAccounts = append(cfg.EagerAccounts, accounts...)

	s, err := withdrawsched.NewScheduler(ctx, withdrawsched.NewMapBalanceReader(balances), t.InitVersion, cfg, logger)
	if err != nil {
		return err
	}

	s.RegisterResolutionListener(&resultPrinter{out: out})

	for i, step := range t.Steps {
		if err := replayStep(ctx, out, s, step); err != nil {
			return fmt.Errorf("step %d (%s v%d): %w", i, step.Kind, step.Version, err)
		}
	}

	if err := s.ValidateInvariants(); err != nil {
		return err
	}

	stats := s.Stats()
	fmt.Fprintf(out, "watermark=%d floor=%d accounts=%d txs=%d\n",
		stats.SettledWatermark, stats.Floor, stats.Accounts, stats.RegisteredTxs)
	return nil
}

func replayStep(ctx context.Context, out io.Writer, s *withdrawsched.Scheduler, step traceStep) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("contract violation: %v", r)
		}
	}()

	switch step.Kind {
	case stepSchedule:
		reqs, err := step.withdrawRequests()
		if err != nil {
			return err
		}
		notifications, err := s.ScheduleWithdraws(ctx, step.Version, reqs)
		if err != nil {
			return err
		}
		for txID, n := range notifications {
			if _, err := n.Wait(ctx); err != nil {
				return fmt.Errorf("tx %s: %w", txID, err)
			}
		}
	case stepSettle:
		settlement, err := step.settlement()
		if err != nil {
			return err
		}
		if err := s.SettleBalances(ctx, settlement); err != nil {
			return err
		}
		fmt.Fprintf(out, "settled %d watermark=%d\n", step.Version, s.SettledWatermark())
	case stepPrune:
		s.Prune(step.Version)
		fmt.Fprintf(out, "pruned %d\n", step.Version)
	default:
		return types.ErrInvalidRequest.Wrapf("unknown step kind %q", step.Kind)
	}
	return nil
}

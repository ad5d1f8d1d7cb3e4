package commands

import (
	"context"
	"fmt"
	"math/big"

	"github.com/descilabs/launchpad/internal/staking"
	"github.com/descilabs/launchpad/pkg/amounts"
	"github.com/spf13/cobra"
)

// NewStakeCmd creates the stake command
func NewStakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stake <amount>",
		Short: "Stake BIO tokens",
		Long: `Stake BIO tokens into the project's staking pool.

The amount is in whole tokens, e.g. "1.5". Staking first approves the
pool for the amount, then deposits once the approval confirms.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStakingAction(args[0], func(ctx context.Context, svc *staking.Service, amount *big.Int) error {
				return svc.Stake(ctx, amount)
			}, "Staked")
		},
	}
}

// NewUnstakeCmd creates the unstake command
func NewUnstakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unstake <amount>",
		Short: "Unstake BIO tokens",
		Long:  "Withdraw staked BIO tokens from the project's staking pool.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStakingAction(args[0], func(ctx context.Context, svc *staking.Service, amount *big.Int) error {
				return svc.Unstake(ctx, amount)
			}, "Unstaked")
		},
	}
}

// NewClaimCmd creates the claim command
func NewClaimCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "claim",
		Short: "Claim all pending staking rewards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStakingAction("", func(ctx context.Context, svc *staking.Service, _ *big.Int) error {
				return svc.ClaimRewards(ctx)
			}, "Rewards claimed")
		},
	}
}

// NewCollectCmd creates the collect command
func NewCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect",
		Short: "Collect IP royalties into the staking pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStakingAction("", func(ctx context.Context, svc *staking.Service, _ *big.Int) error {
				return svc.CollectRoyalties(ctx)
			}, "Royalties collected")
		},
	}
}

func runStakingAction(amountArg string, run func(context.Context, *staking.Service, *big.Int) error, doneMsg string) error {
	ctx := context.Background()

	var amount *big.Int
	if amountArg != "" {
		parsed, err := amounts.ParseAmount(amountArg)
		if err != nil {
			return err
		}
		amount = parsed
	}

	app, err := ConnectApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Staking == nil {
		return fmt.Errorf("project not launched: no staking contract available")
	}

	WatchStatus(app.Staking.Tracker())
	if err := run(ctx, app.Staking, amount); err != nil {
		return err
	}

	Success(doneMsg + "!")
	if hash := app.Staking.Tracker().TxHash(); hash != "" {
		fmt.Println(Hint("Transaction: " + hash))
	}
	printStakingData(app)
	return nil
}

func printStakingData(app *App) {
	data := app.Staking.Data()
	if data == nil {
		return
	}
	fields := [][2]string{
		{"Your stake", FormatAmount(data.UserStaked, "BIO")},
		{"Pool total", FormatAmount(data.TotalStaked, "BIO")},
		{"Rewards", FormatAmount(data.PendingRewards, "BIO")},
	}
	if data.PoolShare != "" {
		fields = append(fields, [2]string{"Pool share", data.PoolShare})
	}
	fmt.Println(StatusBox("Staking", fields))
}

package commands

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/descilabs/launchpad/pkg/amounts"
	"github.com/spf13/cobra"
)

// NewCurateCmd creates the curate command group
func NewCurateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "curate",
		Short: "Participate in a project's curation round",
		Long: `Commit BIO to a project's curation round, withdraw a commitment,
claim a refund after a failed round, or launch a graduated project.`,
	}

	cmd.AddCommand(newCurateCommitCmd())
	cmd.AddCommand(newCurateWithdrawCmd())
	cmd.AddCommand(newCurateRefundCmd())
	cmd.AddCommand(newCurateLaunchCmd())

	return cmd
}

func newCurateCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit <amount>",
		Short: "Commit BIO to the curation round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := amounts.ParseAmount(args[0])
			if err != nil {
				return err
			}

			ctx := context.Background()
			app, err := connectCuration(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			WatchStatus(app.Curation.Tracker())
			if err := app.Curation.Commit(ctx, amount); err != nil {
				return err
			}

			Success("Committed!")
			printCurationData(app)
			return nil
		},
	}
}

func newCurateWithdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw your full commitment from the round",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := connectCuration(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			WatchStatus(app.Curation.Tracker())
			if err := app.Curation.Withdraw(ctx); err != nil {
				return err
			}

			Success("Withdrawn!")
			printCurationData(app)
			return nil
		},
	}
}

func newCurateRefundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refund",
		Short: "Claim your refund from a failed round",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := connectCuration(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			WatchStatus(app.Curation.Tracker())
			if err := app.Curation.ClaimRefund(ctx); err != nil {
				return err
			}

			Success("Refund claimed!")
			return nil
		},
	}
}

func newCurateLaunchCmd() *cobra.Command {
	var tokenTemplate, distributionTemplate, rewardToken string

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch a graduated project (admin only)",
		Long: `Graduate the curation round into a launched project, deploying the
project token and distribution contracts from the given templates.
The connected account becomes the project admin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range []struct{ name, hex string }{
				{"--token-template", tokenTemplate},
				{"--distribution-template", distributionTemplate},
				{"--reward-token", rewardToken},
			} {
				if !common.IsHexAddress(arg.hex) {
					return fmt.Errorf("%s: invalid address %q", arg.name, arg.hex)
				}
			}

			ctx := context.Background()
			app, err := connectCuration(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			WatchStatus(app.Curation.Tracker())
			err = app.Curation.Launch(ctx,
				common.HexToAddress(tokenTemplate),
				common.HexToAddress(distributionTemplate),
				common.HexToAddress(rewardToken))
			if err != nil {
				return err
			}

			Success("Project launched!")
			launch, err := app.Curation.LaunchData(ctx)
			if err == nil && launch.Launched {
				fmt.Println(StatusBox("Launch", [][2]string{
					{"Staking", launch.StakingContract.Hex()},
					{"Token", launch.BioToken.Hex()},
				}))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&tokenTemplate, "token-template", "", "Fractional token template address")
	cmd.Flags().StringVar(&distributionTemplate, "distribution-template", "", "Distribution contract template address")
	cmd.Flags().StringVar(&rewardToken, "reward-token", "", "Reward token address")
	cmd.MarkFlagRequired("token-template")
	cmd.MarkFlagRequired("distribution-template")
	cmd.MarkFlagRequired("reward-token")

	return cmd
}

func connectCuration(ctx context.Context) (*App, error) {
	app, err := ConnectApp(ctx)
	if err != nil {
		return nil, err
	}
	if app.Curation == nil {
		app.Close()
		return nil, fmt.Errorf("contracts.curate is not configured")
	}
	return app, nil
}

func printCurationData(app *App) {
	data := app.Curation.Data()
	if data == nil {
		return
	}
	status := "closed"
	if data.Active {
		status = "open"
	}
	fmt.Println(StatusBox("Curation", [][2]string{
		{"Your commit", FormatAmount(data.UserCommitted, "BIO")},
		{"Round total", FormatAmount(data.TotalCommitted, "BIO")},
		{"Limit", FormatAmount(data.CurationLimit, "BIO")},
		{"Round", status},
	}))
}

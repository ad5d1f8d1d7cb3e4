package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCmd creates the status command
func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show wallet, curation, and staking state",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := ConnectApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	snap := app.Session.Snapshot()
	fmt.Println(StatusBox("Wallet", [][2]string{
		{"State", string(snap.State)},
		{"Address", snap.Address.Hex()},
		{"Chain ID", fmt.Sprint(snap.ChainID)},
		{"Balance", FormatAmount(snap.Balance, app.NativeSymbol())},
	}))

	if app.Curation != nil {
		if err := app.Curation.Refresh(ctx); err != nil {
			Warning(fmt.Sprintf("Some curation reads failed: %v", err))
		}
		printCurationData(app)
	}

	if app.Staking != nil {
		if err := app.Staking.Refresh(ctx); err != nil {
			Warning(fmt.Sprintf("Some staking reads failed: %v", err))
		}
		printStakingData(app)
	} else {
		fmt.Println(Hint("Project not launched; staking unavailable."))
	}

	return nil
}

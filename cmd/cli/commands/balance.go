package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewBalanceCmd creates the balance command
func NewBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Show token and native balances",
		Long:  "Display the connected account's BIO token balance and native coin balance.",
		RunE:  runBalance,
	}
}

func runBalance(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	app, err := ConnectApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	snap := app.Session.Snapshot()
	fields := [][2]string{
		{"Address", snap.Address.Hex()},
		{"Chain ID", fmt.Sprint(snap.ChainID)},
	}

	fields = append(fields, [2]string{
		app.NativeSymbol(), FormatAmount(snap.Balance, app.NativeSymbol()),
	})

	if app.Token != nil {
		account, _ := app.Session.Address()
		balance, err := app.Token.BalanceOf(ctx, account)
		if err != nil {
			return fmt.Errorf("failed to get token balance: %w", err)
		}
		symbol, err := app.Token.Symbol(ctx)
		if err != nil || symbol == "" {
			symbol = "BIO"
		}
		fields = append(fields, [2]string{symbol, FormatAmount(balance, symbol)})
	}

	fmt.Println(StatusBox("Balances", fields))
	return nil
}

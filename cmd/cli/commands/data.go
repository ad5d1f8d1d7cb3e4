package commands

import (
	"context"
	"fmt"

	"github.com/descilabs/launchpad/internal/catalog"
	"github.com/descilabs/launchpad/pkg/types"
	"github.com/spf13/cobra"
)

// NewDataCmd creates the data command group
func NewDataCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "data",
		Short: "Browse and download research datasets",
		Long: `List the datasets published by launched projects and download the
ones your account has access to.`,
	}

	cmd.AddCommand(newDataListCmd())
	cmd.AddCommand(newDataProjectsCmd())
	cmd.AddCommand(newDataDownloadCmd())

	return cmd
}

func newDataListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := ConnectApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			datasets := app.Cfg.Download.Datasets
			if len(datasets) == 0 {
				Info("No datasets configured.")
				return nil
			}

			rows := make([][]string, 0, len(datasets))
			for _, ds := range datasets {
				access := "locked"
				if app.Gate.CanDownload(ds) {
					access = "available"
				}
				rows = append(rows, []string{
					ds.ID,
					ds.Name,
					ds.Project,
					catalog.SymbolFor(ds.Project),
					StageBadge(string(catalog.StageFor(ds.Project))),
					access,
				})
			}

			fmt.Println(RenderTable(
				[]string{"ID", "Name", "Project", "Token", "Stage", "Access"},
				rows,
			))
			return nil
		},
	}
}

func newDataProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List platform projects and their lifecycle stage",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := make([][]string, 0)
			for _, slug := range catalog.Projects() {
				rows = append(rows, []string{
					slug,
					catalog.SymbolFor(slug),
					StageBadge(string(catalog.StageFor(slug))),
				})
			}
			fmt.Println(RenderTable([]string{"Project", "Token", "Stage"}, rows))
			return nil
		},
	}
}

func newDataDownloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "download <dataset-id>",
		Short: "Download a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			app, err := ConnectApp(ctx)
			if err != nil {
				return err
			}
			defer app.Close()

			var dataset *types.Dataset
			for i := range app.Cfg.Download.Datasets {
				if app.Cfg.Download.Datasets[i].ID == args[0] {
					dataset = &app.Cfg.Download.Datasets[i]
					break
				}
			}
			if dataset == nil {
				return fmt.Errorf("unknown dataset %q", args[0])
			}

			// A whitelist edit mid-transfer takes effect for the next
			// download attempt.
			watchCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			if err := app.WatchWhitelist(watchCtx); err != nil {
				Warning(fmt.Sprintf("Whitelist reload unavailable: %v", err))
			}

			d := app.Downloader()
			d.OnProgress(func(id string, p types.DownloadProgress) {
				if p.Status != types.DownloadInProgress {
					return
				}
				if p.Determinate {
					fmt.Printf("\r%s", ProgressBar(p.Percent, 40))
				} else {
					fmt.Printf("\rDownloading %s...", p.FileName)
				}
			})

			saved, err := d.Download(ctx, *dataset)
			fmt.Println()
			if err != nil {
				return err
			}

			Success("Downloaded " + dataset.Name)
			fmt.Println(Hint("Saved to " + saved))
			return nil
		},
	}
}

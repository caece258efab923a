package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/biomech/coretex/internal/entity"
	"github.com/biomech/coretex/internal/model"
)

// DefaultDownloadWorkers bounds concurrent sample downloads.
const DefaultDownloadWorkers = 8

// NewDatasetCommand creates the "dataset" command group.
func NewDatasetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Work with Coretex datasets",
	}
	cmd.AddCommand(newDatasetDownloadCommand())
	return cmd
}

// datasetDownloadFlags holds the flag values for "dataset download".
type datasetDownloadFlags struct {
	workers     int
	ignoreCache bool
}

func newDatasetDownloadCommand() *cobra.Command {
	flags := &datasetDownloadFlags{}

	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download every sample of a dataset into local storage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID("dataset", args[0])
			if err != nil {
				return err
			}
			if flags.workers < 1 {
				return model.NewCLIError(model.ExitGeneralError, "--workers must be at least 1")
			}

			s, err := openSession()
			if err != nil {
				return err
			}
			defer s.Close()

			env, err := s.env(ctx)
			if err != nil {
				return err
			}
			dataset, err := entity.FetchDataset(ctx, env, id)
			if err != nil {
				return model.WrapCLIError(model.ExitNetworkError, fmt.Sprintf("failed to fetch dataset %d", id), err)
			}

			out := cmd.OutOrStdout()
			if !IsJSONOutput() {
				progressEcho(out, "Downloading %d samples of dataset %s...", dataset.Count(), dataset.Name)
			}
			if err := dataset.Download(ctx, flags.ignoreCache, flags.workers); err != nil {
				return model.WrapCLIError(model.ExitNetworkError, fmt.Sprintf("failed to download dataset %d", id), err)
			}

			if IsJSONOutput() {
				return printJSON(out, map[string]any{
					"id":      dataset.ID,
					"name":    dataset.Name,
					"samples": dataset.Count(),
					"path":    dataset.Path(),
				})
			}
			successEcho(out, "Dataset %s downloaded to %s.", highlight(dataset.Name), dataset.Path())
			return nil
		},
	}

	cmd.Flags().IntVar(&flags.workers, "workers", DefaultDownloadWorkers, "Concurrent sample downloads")
	cmd.Flags().BoolVar(&flags.ignoreCache, "ignore-cache", false, "Download samples that are already cached")
	return cmd
}

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/biomech/coretex/internal/entity"
	"github.com/biomech/coretex/internal/model"
)

// NewExperimentCommand creates the "experiment" command group.
func NewExperimentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Work with Coretex experiments",
	}
	cmd.AddCommand(newExperimentStatusCommand())
	return cmd
}

// parseID converts a positional id argument.
func parseID(kind, raw string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, model.NewCLIError(model.ExitGeneralError, fmt.Sprintf("invalid %s id %q", kind, raw))
	}
	return id, nil
}

func newExperimentStatusCommand() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "status <id> <status>",
		Short: "Set the status of an experiment",
		Long: `Set the status of an experiment. The status is given by name or number:
queued (1), preparingToStart (2), inProgress (3), completedWithSuccess (4),
completedWithError (5), stopped (6), stopping (7).

Examples:
  coretex experiment status 1024 completedWithSuccess
  coretex experiment status 1024 5 --message "Dataset could not be downloaded"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID("experiment", args[0])
			if err != nil {
				return err
			}
			status, err := entity.ParseExperimentStatus(args[1])
			if err != nil {
				return model.WrapCLIError(model.ExitGeneralError, "invalid status", err)
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
			experiment, err := entity.FetchExperiment(ctx, env, id)
			if err != nil {
				return model.WrapCLIError(model.ExitNetworkError, fmt.Sprintf("failed to fetch experiment %d", id), err)
			}
			if err := experiment.UpdateStatus(ctx, status, message, true); err != nil {
				return model.WrapCLIError(model.ExitNetworkError, "failed to update experiment status", err)
			}

			out := cmd.OutOrStdout()
			if IsJSONOutput() {
				return printJSON(out, map[string]any{
					"id":      experiment.ID,
					"status":  status.String(),
					"message": experiment.LastStatusMessage(),
				})
			}
			successEcho(out, "Experiment %s is now %s.", highlight(experiment.Name), highlight(status.String()))
			return nil
		},
	}

	cmd.Flags().StringVar(&message, "message", "", "Status message (default: the status' standard message)")
	return cmd
}

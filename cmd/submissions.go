package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sports-intake/internal/intake"
	"github.com/sells-group/sports-intake/internal/model"
	"github.com/sells-group/sports-intake/internal/queue"
)

var submissionsCmd = &cobra.Command{
	Use:     "submissions",
	Aliases: []string{"subs"},
	Short:   "Inspect and drive submissions",
	Long:    "Commands for listing, viewing, uploading and re-extracting submissions.",
}

// cliActor is the identity CLI commands act as. Without --as the operator
// acts as the system administrator.
func cliActor(cmd *cobra.Command) model.Actor {
	as, _ := cmd.Flags().GetString("as")
	if as == "" {
		return model.SystemActor
	}
	return model.Actor{ID: as, Role: model.RoleMember}
}

// cliDispatcher runs extraction in this process (local driver) or hands it
// to the Temporal workers. The returned wait blocks until in-process
// extraction has finished.
func cliDispatcher(ctx context.Context, env *appEnv) (queue.Dispatcher, func(), error) {
	if cfg.Queue.Driver == "temporal" {
		c, err := queue.DialTemporal(cfg.Queue)
		if err != nil {
			return nil, nil, err
		}
		return queue.NewTemporalDispatcher(c, cfg.Queue.TaskQueue), c.Close, nil
	}

	if cfg.Anthropic.Key == "" {
		return nil, nil, eris.New("anthropic.key is required to extract (INTAKE_ANTHROPIC_KEY)")
	}
	runner, err := env.newRunner()
	if err != nil {
		return nil, nil, err
	}
	q := queue.NewLocal(env.parking(runner), queue.WithWorkers(1), queue.WithTaskTimeout(taskTimeout()))
	wait := func() {
		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*taskTimeout())
		defer cancel()
		q.Shutdown(waitCtx)
	}
	return q, wait, nil
}

// -- submissions list --

var submissionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List submissions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		status, _ := cmd.Flags().GetString("status")
		kind, _ := cmd.Flags().GetString("kind")
		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")

		subs, err := env.newService(nil).List(ctx, cliActor(cmd), model.SubmissionFilter{
			OwnerID: owner,
			Status:  model.Status(status),
			Kind:    model.Kind(kind),
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "submissions list")
		}
		if len(subs) == 0 {
			fmt.Fprintln(os.Stderr, "No submissions found.")
			return nil
		}
		formatSubmissionsList(os.Stdout, subs)
		return nil
	},
}

// -- submissions show --

var submissionsShowCmd = &cobra.Command{
	Use:   "show <submission-id>",
	Short: "Show a submission with its draft and findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		sub, err := env.newService(nil).Get(ctx, cliActor(cmd), args[0])
		if err != nil {
			return eris.Wrap(err, "submissions show")
		}
		format, _ := cmd.Flags().GetString("format")
		return writeSubmission(os.Stdout, sub, format)
	},
}

// -- submissions create --

var submissionsCreateCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Upload a document and extract it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}

		kind, _ := cmd.Flags().GetString("kind")
		noExtract, _ := cmd.Flags().GetBool("no-extract")
		hints := model.Hints{}
		hints.Sport, _ = cmd.Flags().GetString("sport")
		hints.Gender, _ = cmd.Flags().GetString("gender")
		hints.Season, _ = cmd.Flags().GetString("season")
		hints.School, _ = cmd.Flags().GetString("school")
		hints.City, _ = cmd.Flags().GetString("city")

		var d queue.Dispatcher
		wait := func() {}
		if !noExtract {
			if d, wait, err = cliDispatcher(ctx, env); err != nil {
				return err
			}
		}
		svc := env.newService(d)

		start := time.Now()
		sub, err := svc.Create(ctx, cliActor(cmd), intake.CreateRequest{
			Kind:     model.Kind(kind),
			Filename: filepath.Base(args[0]),
			Artifact: data,
			Hints:    hints,
			Extract:  !noExtract,
		})
		if err != nil {
			wait()
			return eris.Wrap(err, "submissions create")
		}
		wait()

		zap.L().Info("submission created",
			zap.String("submission_id", sub.ID),
			zap.Duration("elapsed", time.Since(start)),
		)
		if sub, err = env.Store.GetSubmission(ctx, sub.ID); err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		return writeSubmission(os.Stdout, sub, format)
	},
}

// -- submissions extract --

var submissionsExtractCmd = &cobra.Command{
	Use:   "extract <submission-id>",
	Short: "Re-run extraction for a draft or failed submission",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		d, wait, err := cliDispatcher(ctx, env)
		if err != nil {
			return err
		}
		_, err = env.newService(d).RequestExtraction(ctx, cliActor(cmd), args[0])
		wait()
		if err != nil {
			return eris.Wrap(err, "submissions extract")
		}

		sub, err := env.Store.GetSubmission(ctx, args[0])
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		return writeSubmission(os.Stdout, sub, format)
	},
}

func init() {
	submissionsCmd.PersistentFlags().String("as", "", "act as this member id instead of the system administrator")

	submissionsListCmd.Flags().String("status", "", "filter by status (draft, processing, completed, failed)")
	submissionsListCmd.Flags().String("kind", "", "filter by kind (score_sheet, schedule, roster)")
	submissionsListCmd.Flags().String("owner", "", "filter by owner id")
	submissionsListCmd.Flags().Int("limit", 50, "max number of submissions to display")

	for _, c := range []*cobra.Command{submissionsShowCmd, submissionsCreateCmd, submissionsExtractCmd} {
		c.Flags().String("format", "yaml", "output format (json, yaml)")
	}

	submissionsCreateCmd.Flags().String("kind", "", "document kind (score_sheet, schedule, roster)")
	submissionsCreateCmd.Flags().Bool("no-extract", false, "store the upload as a draft without extracting")
	submissionsCreateCmd.Flags().String("sport", "", "sport hint")
	submissionsCreateCmd.Flags().String("gender", "", "gender hint")
	submissionsCreateCmd.Flags().String("season", "", "season hint (e.g. 2025-26)")
	submissionsCreateCmd.Flags().String("school", "", "school hint")
	submissionsCreateCmd.Flags().String("city", "", "city hint")
	_ = submissionsCreateCmd.MarkFlagRequired("kind")

	submissionsCmd.AddCommand(submissionsListCmd)
	submissionsCmd.AddCommand(submissionsShowCmd)
	submissionsCmd.AddCommand(submissionsCreateCmd)
	submissionsCmd.AddCommand(submissionsExtractCmd)
	rootCmd.AddCommand(submissionsCmd)
}

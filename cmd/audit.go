package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/sports-intake/internal/model"
)

var auditCmd = &cobra.Command{
	Use:       "audit <target-type> <target-id>",
	Short:     "Show the audit history of a submission, finding or game",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{model.TargetSubmission, model.TargetFinding, model.TargetGame},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		switch args[0] {
		case model.TargetSubmission, model.TargetFinding, model.TargetGame:
		default:
			return eris.Errorf("unknown target type %q (submission, finding, game)", args[0])
		}

		env, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Audit.List(ctx, args[0], args[1])
		if err != nil {
			return eris.Wrap(err, "audit")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No audit entries found.")
			return nil
		}
		formatAudit(os.Stdout, entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
}

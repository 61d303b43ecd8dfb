package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/treeverse/pgpack/pkg/logging"
	"github.com/treeverse/pgpack/pkg/upgrade"
	"github.com/treeverse/pgpack/pkg/version"
)

const upgradeSummaryTemplate = `{{ if .UpToDate -}}
Schema {{ .Schema | bold }} is up to date at revision {{ .From | green }}.
{{- else -}}
Schema {{ .Schema | bold }} {{ if .DryRun }}would be{{ else }}was{{ end }} upgraded from {{ .From | yellow }} to {{ .To | green }}: {{ .Drops }} objects dropped, {{ .Modules }} modules reinstalled.
{{- end }}
`

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade the managed schema to the target revision",
	Long: `Plan the upgrade from the installed revision to the target revision and
run it in one transaction. The upgrade aborts before changing anything when
user tables, indexes or views depend on objects the upgrade changes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		cfg := loadConfig()
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		output, _ := cmd.Flags().GetString("output")
		targetFlag, _ := cmd.Flags().GetString("target")
		yes, _ := cmd.Flags().GetBool("yes")

		target, err := upgradeTarget(targetFlag, cfg.TargetRevision)
		if err != nil {
			return err
		}
		s, err := connect(ctx, cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		ctx = logging.AddFields(ctx, logging.Fields{logging.SchemaFieldKey: cfg.Schema})

		u, err := newUpgrader(cfg, s)
		if err != nil {
			return err
		}
		plan, err := u.Plan(ctx, target)
		if err != nil {
			return err
		}
		if dryRun {
			if err := writePlan(plan, output); err != nil {
				return err
			}
		} else {
			if !yes && isTerminal && !plan.Empty() {
				label := fmt.Sprintf("Upgrade %s from %s to %s, dropping %d objects", plan.Schema, plan.From, plan.To, len(plan.Drops))
				ok, err := promptConfirm(label)
				if err != nil {
					return err
				}
				if !ok {
					Write("Upgrade aborted.\n", nil)
					return nil
				}
			}
			if err := upgrade.Apply(ctx, s.db, plan); err != nil {
				return err
			}
		}
		// keep stdout for the script
		w := os.Stdout
		if dryRun && output == "-" {
			w = os.Stderr
		}
		WriteTo(upgradeSummaryTemplate, struct {
			Schema   string
			From     string
			To       string
			UpToDate bool
			DryRun   bool
			Drops    int
			Modules  int
		}{
			Schema:   plan.Schema,
			From:     plan.From.String(),
			To:       plan.To.String(),
			UpToDate: plan.Status == upgrade.StatusUpToDate,
			DryRun:   dryRun,
			Drops:    len(plan.Drops),
			Modules:  len(plan.Modules),
		}, w)
		return nil
	},
}

// upgradeTarget prefers the --target flag over the configured revision.
func upgradeTarget(flag string, configured func() (version.Revision, error)) (version.Revision, error) {
	if flag == "" {
		return configured()
	}
	rev, err := version.ParseRevision(flag)
	if err != nil {
		return version.Revision{}, fmt.Errorf("--target: %w", err)
	}
	return rev, nil
}

func promptConfirm(label string) (bool, error) {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	if errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func writePlan(plan *upgrade.Plan, output string) error {
	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if plan.Empty() {
		return nil
	}
	_, err := plan.WriteTo(w)
	return err
}

//nolint:gochecknoinits
func init() {
	upgradeCmd.Flags().Bool("dry-run", false, "write the upgrade script instead of running it")
	upgradeCmd.Flags().StringP("output", "o", "-", "file the dry run script is written to, '-' for stdout")
	upgradeCmd.Flags().BoolP("yes", "y", false, "apply without asking for confirmation")
	upgradeCmd.Flags().String("target", "", "target revision (default from revision.target or revision.file)")
	rootCmd.AddCommand(upgradeCmd)
}

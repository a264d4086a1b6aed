/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/clinops/dashboard-gin/internal/config"
	"github.com/clinops/dashboard-gin/internal/container"
	"github.com/spf13/cobra"
)

// upgradeCmd represents the upgrade command
var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Migrate templates to a newer schema version",
	Long: `Migrate dashboard templates to a target schema version.

A single template is migrated atomically: on any step failure the
template is restored to its pre-migration state. With --study all
templates referenced by the study's dashboards are migrated one by
one and failures do not stop the remaining templates.

Use --dry-run to see the migration report without persisting anything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		templateID, _ := cmd.Flags().GetString("template")
		studyID, _ := cmd.Flags().GetString("study")
		target, _ := cmd.Flags().GetString("target")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		planOnly, _ := cmd.Flags().GetBool("plan")

		if (templateID == "") == (studyID == "") {
			return fmt.Errorf("exactly one of --template and --study is required")
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctr, err := container.NewContainer(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize container: %w", err)
		}
		defer ctr.Close()

		if target == "" {
			target = ctr.SchemaRegistry().Latest().Version
		}

		var result interface{}
		switch {
		case planOnly:
			if templateID == "" {
				return fmt.Errorf("--plan requires --template")
			}
			result, err = ctr.MigrationService().Plan(templateID, target)
		case templateID != "":
			result, err = ctr.MigrationService().Migrate(cmd.Context(), templateID, target, dryRun)
		default:
			result, err = ctr.MigrationService().MigrateStudy(cmd.Context(), studyID, target, dryRun)
		}
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(upgradeCmd)

	upgradeCmd.Flags().String("config", "", "Config file path (default: config.yaml)")
	upgradeCmd.Flags().String("template", "", "Template ID to migrate")
	upgradeCmd.Flags().String("study", "", "Study ID whose referenced templates are migrated")
	upgradeCmd.Flags().String("target", "", "Target schema version (default: latest registered version)")
	upgradeCmd.Flags().Bool("dry-run", false, "Report the migration without persisting changes")
	upgradeCmd.Flags().Bool("plan", false, "Print the migration plan without executing it")
}

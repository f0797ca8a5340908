package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"tenant-vault/internal/config"
	"tenant-vault/internal/restore"
)

var (
	restoreTables     []string
	restoreStrategy   string
	restoreSafety     bool
	restoreNotes      string
	restorePassphrase string
	restoreYes        bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-job-id>",
	Short: "Restore a backup into the database",
	Long: `Restore the document produced by a completed backup job.

Conflict strategies:
  replace  wipe each target table completely, then insert the backup's rows
  skip     insert only rows whose primary key does not exist yet
  merge    overwrite existing rows field-for-field by primary key

The replace strategy deletes ALL rows of each target table, not just one
tenant's. Pass --safety-backup to snapshot the database first.

Examples:
  tenant-vault restore backup-20260829-120000-a1b2c3d4 --strategy merge
  tenant-vault restore backup-20260829-120000-a1b2c3d4 --strategy replace --safety-backup
  tenant-vault restore backup-20260829-120000-a1b2c3d4 --tables users,roles --strategy skip`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

var restoreListCmd = &cobra.Command{
	Use:   "restore-logs",
	Short: "List recent restore runs",
	RunE:  runRestoreList,
}

func init() {
	restoreCmd.Flags().StringSliceVar(&restoreTables, "tables", nil, "restore only these tables")
	restoreCmd.Flags().StringVar(&restoreStrategy, "strategy", "skip", "conflict strategy (replace, skip, merge)")
	restoreCmd.Flags().BoolVar(&restoreSafety, "safety-backup", false, "run a full backup before restoring")
	restoreCmd.Flags().StringVar(&restoreNotes, "notes", "", "free-form notes recorded on the restore log")
	restoreCmd.Flags().StringVar(&restorePassphrase, "passphrase", "", "decryption passphrase for encrypted backups")
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "skip the confirmation prompt")

	rootCmd.AddCommand(restoreCmd, restoreListCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx, func(cfg *config.Config) error {
		if restorePassphrase != "" {
			cfg.Encryption.Enabled = true
			cfg.Encryption.Passphrase = restorePassphrase
		}
		return nil
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	if restore.ConflictStrategy(restoreStrategy) == restore.StrategyReplace && !restoreYes {
		rt.printer.Warnf("The replace strategy wipes every row of each target table.")
		if !confirm("Continue? [y/N]: ") {
			rt.printer.Plainf("Aborted.")
			return nil
		}
	}

	log, err := rt.restores.Run(ctx, restore.Request{
		BackupJobID:        args[0],
		TargetTables:       restoreTables,
		Strategy:           restore.ConflictStrategy(restoreStrategy),
		CreateSafetyBackup: restoreSafety,
		Notes:              restoreNotes,
		RequestedBy:        actorID,
	})
	if err != nil {
		rt.printer.Failf("Restore failed: %v", err)
		return err
	}

	rt.printer.Successf("Restore %s completed", log.ID)
	rt.printer.Plainf("  strategy: %s", log.Strategy)
	rt.printer.Plainf("  tables:   %s", strings.Join(log.TablesRestored, ", "))
	rt.printer.Plainf("  records:  %d", log.RecordsRestored)
	return nil
}

func runRestoreList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rt, err := newRuntime(ctx, nil)
	if err != nil {
		return err
	}
	defer rt.Close()

	logs, err := rt.repo.ListRestoreLogs(ctx, 20)
	if err != nil {
		return err
	}
	rt.printer.Headingf("%-38s %-36s %-9s %-10s %10s  %s",
		"ID", "BACKUP JOB", "STRATEGY", "STATUS", "RECORDS", "CREATED")
	for _, log := range logs {
		rt.printer.Plainf("%-38s %-36s %-9s %-10s %10d  %s",
			log.ID, log.BackupJobID, log.Strategy, log.Status,
			log.RecordsRestored, log.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func confirm(prompt string) bool {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

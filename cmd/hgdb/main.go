package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/asboyob/hassio-google-drive-backup/internal/app"
	"github.com/asboyob/hassio-google-drive-backup/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
func newApp(cmd *cobra.Command) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// promptSecret reads a secret from the terminal without echo, falling back
// to a plain line read when stdin is not a terminal.
func promptSecret(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	if term.IsTerminal(int(os.Stdin.Fd())) {
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return string(secret), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

var rootCmd = &cobra.Command{
	Use:   "hgdb",
	Short: "Sync Home Assistant snapshots to a remote archive",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		token, err := promptSecret("Supervisor token (leave empty to fill in later): ")
		if err != nil {
			return err
		}
		cfg.Supervisor.Token = token

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Supervisor: %s (%s)\n", cfg.Supervisor.Type, cfg.Supervisor.URL)
		fmt.Printf("Archive:    %s (%s)\n", cfg.Archive.Type, cfg.Archive.Name)
		fmt.Printf("Retention:  drive=%d ha=%d\n", cfg.Retention.MaxInDrive, cfg.Retention.MaxInHA)
		fmt.Printf("Encrypted:  %t\n", cfg.Encryption.EncryptUploads)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage encryption keys",
}

var configKeysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the upload encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := promptSecret("Passphrase for the private key: ")
		if err != nil {
			return err
		}
		if err := a.SetupEncryption(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}

		fmt.Println("Encryption keys generated.")
		return nil
	},
}

// status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View snapshot status in both stores",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		snapshots, err := a.Status(cmd.Context())
		if err != nil {
			return err
		}

		if len(snapshots) == 0 {
			fmt.Println("No snapshots found.")
			return nil
		}

		for _, s := range snapshots {
			fmt.Printf("%-10s  %-25s  %s  %8s  %s\n",
				s.Slug(),
				s.Name(),
				s.Date().Format("2006-01-02 15:04:05"),
				s.SizeString(),
				s.Status(),
			)
		}
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Upload new snapshots and apply retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Sync(cmd.Context()); err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		fmt.Println("Sync complete.")
		return nil
	},
}

// backup command
var backupCmd = &cobra.Command{
	Use:   "backup NAME",
	Short: "Create a new snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		retainDrive, _ := cmd.Flags().GetBool("retain-drive")
		retainHA, _ := cmd.Flags().GetBool("retain-ha")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		s, err := a.Backup(cmd.Context(), args[0], password, retainDrive, retainHA)
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}

		fmt.Printf("Created snapshot %s (%s)\n", s.Slug(), s.Name())
		return nil
	},
}

// upload command
var uploadCmd = &cobra.Command{
	Use:   "upload SLUG",
	Short: "Upload one snapshot to the archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Upload(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}

		fmt.Printf("Uploaded snapshot %s\n", args[0])
		return nil
	},
}

// restore command
var restoreCmd = &cobra.Command{
	Use:   "restore SLUG",
	Short: "Restore an archived snapshot into the supervisor",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if encrypted, _ := cmd.Flags().GetBool("encrypted"); encrypted {
			passphrase, err = promptSecret("Passphrase for the private key: ")
			if err != nil {
				return err
			}
		}

		if err := a.Restore(cmd.Context(), args[0], passphrase); err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}

		fmt.Printf("Restored snapshot %s\n", args[0])
		return nil
	},
}

// retain command
var retainCmd = &cobra.Command{
	Use:   "retain SLUG",
	Short: "Protect a snapshot from automatic pruning",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		drive, _ := cmd.Flags().GetBool("drive")
		haSide, _ := cmd.Flags().GetBool("ha")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Retain(cmd.Context(), args[0], drive, haSide); err != nil {
			return fmt.Errorf("retain failed: %w", err)
		}

		fmt.Printf("Retention updated for %s (drive=%t ha=%t)\n", args[0], drive, haSide)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View sync history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			fmt.Println("No events recorded.")
			return nil
		}

		for _, e := range events {
			fmt.Printf("%s  %-15s  %-10s  %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"),
				e.Operation,
				e.Slug,
				e.Detail,
			)
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	configKeysCmd.AddCommand(configKeysInitCmd)

	backupCmd.Flags().String("password", "", "Protect the snapshot with a password")
	backupCmd.Flags().Bool("retain-drive", false, "Never prune the archive copy")
	backupCmd.Flags().Bool("retain-ha", false, "Never prune the supervisor copy")

	restoreCmd.Flags().Bool("encrypted", false, "Prompt for the key passphrase before restoring")

	retainCmd.Flags().Bool("drive", false, "Retain the archive copy")
	retainCmd.Flags().Bool("ha", false, "Retain the supervisor copy")

	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of events to show")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(retainCmd)
	rootCmd.AddCommand(historyCmd)
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tidy-go/internal/app"
	"tidy-go/internal/config"
	"tidy-go/internal/encryption"
	"tidy-go/internal/tidy"
	"tidy-go/internal/watch"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, string, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, "", fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, "", fmt.Errorf("reading config: %w", err)
	}
	return cfg, defaults["config_path"], nil
}

// newApp reads the config and creates a TidyApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. app.OpScan).
func newApp(operation string) (*app.TidyApp, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewTidyApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// closeApp closes a and reports a close failure unless the command
// already failed.
func closeApp(a *app.TidyApp, err *error) {
	if cerr := a.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "tidy",
	Short:        "Organize downloads by content, filing duplicates separately",
	SilenceUsage: true,
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
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"], defaults["home_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Host ID:     %s\n", hostID)
		fmt.Printf("Base Dir:    %s\n", defaults["base_dir"])
		fmt.Printf("Output Root: %s\n", cfg.Organizer.OutputRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		printConfig(os.Stdout, cfg)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Generate the key pair used to encrypt store snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}

		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
		if err != nil {
			return err
		}
		if !enc.NeedsPassphrase() {
			return fmt.Errorf("encryption type %q has no keys; set encryption.type = \"age\"", cfg.Encryption.Type)
		}

		pass, err := readPassphrase("New passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return err
		}
		if pass != confirm {
			return fmt.Errorf("passphrases do not match")
		}

		if err := enc.Setup(pass); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s (passphrase protected)\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Organize the watch folders once",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		verbose, _ := cmd.Flags().GetBool("verbose")

		a, err := newApp(app.OpScan)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		summary, err := a.Scan(cmd.Context())
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}

		printSummary(os.Stdout, summary, verbose)
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Organize files as they arrive until interrupted",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		settle, _ := cmd.Flags().GetDuration("settle")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(app.OpWatch)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		fmt.Printf("Watching %d folder(s); press Ctrl-C to stop\n", len(a.Layout().WatchDirs))
		err = a.Watch(ctx, settle, func(o *tidy.Outcome) {
			if o.Action != tidy.ActionIgnored {
				fmt.Println(formatOutcome(o))
			}
		})
		if err != nil {
			return err
		}
		fmt.Println("Stopped.")
		return nil
	},
}

// lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup FILE",
	Short: "Show where a file's content was filed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpLookup)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		res, err := a.Lookup(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("%s  %s\n", shortHash(res.Hash), res.Path)
		if res.Record == nil {
			fmt.Println("Not filed yet.")
			return nil
		}
		fmt.Printf("Filed as %s on %s\n", res.Record.OriginalPath, res.Record.OrganizedAt.Local().Format("2006-01-02 15:04:05"))
		return nil
	},
}

// records command
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List recently filed content",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(app.OpRecords)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		records, err := a.Records(limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No files organized yet.")
			return nil
		}

		for _, r := range records {
			fmt.Printf("%s  %s  %10d  %s\n",
				shortHash(r.ContentHash),
				r.OrganizedAt.Local().Format("2006-01-02 15:04:05"),
				r.SizeBytes,
				r.OriginalPath,
			)
		}
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View scan history",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(app.OpHistory)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		runs, err := a.History(limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No scans recorded.")
			return nil
		}

		for _, r := range runs {
			duration := ""
			if r.FinishedAt.Valid {
				duration = r.FinishedAt.Time.Sub(r.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-12s  %s  %-8s  processed:%d moved:%d duplicates:%d skipped:%d  %s\n",
				r.ID,
				r.Operation,
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Status,
				r.Processed, r.Moved, r.Duplicates, r.Skipped,
				duration,
			)
		}
		return nil
	},
}

// store command
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the hash store and its vault snapshots",
}

var storeBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a snapshot of the hash store to the vault",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpStoreBackup)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		version, err := a.BackupStore()
		if err != nil {
			return fmt.Errorf("backup failed: %w", err)
		}
		fmt.Printf("Uploaded snapshot version %d\n", version)
		return nil
	},
}

var storeRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the hash store with the vault's latest snapshot",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpStoreRestore)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		var pass string
		if a.NeedsPassphrase() {
			if pass, err = readPassphrase("Passphrase: "); err != nil {
				return err
			}
		}

		version, err := a.RestoreStore(pass)
		if err != nil {
			return fmt.Errorf("restore failed: %w", err)
		}
		fmt.Printf("Restored snapshot version %d\n", version)
		return nil
	},
}

var storeInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show hash store details",
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		a, err := newApp(app.OpStoreInfo)
		if err != nil {
			return err
		}
		defer closeApp(a, &err)

		info, err := a.StoreInfo()
		if err != nil {
			return err
		}
		printStoreInfo(os.Stdout, info)
		return nil
	},
}

func init() {
	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)

	// store subcommands
	storeCmd.AddCommand(storeBackupCmd)
	storeCmd.AddCommand(storeRestoreCmd)
	storeCmd.AddCommand(storeInfoCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().BoolP("verbose", "v", false, "Show every file's outcome")
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("settle", watch.DefaultSettle, "How long a file must be quiet before it is organized")
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.Flags().IntP("limit", "n", 20, "Maximum number of records to show")
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of scans to show")
	rootCmd.AddCommand(storeCmd)
}

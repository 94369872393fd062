package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/intelliinspect/internal/cli"
	"github.com/Veraticus/intelliinspect/internal/common"
	"github.com/Veraticus/intelliinspect/internal/config"
	"github.com/Veraticus/intelliinspect/internal/report"
)

var version = "dev"

// app is the state shared by the commands of one invocation.
type app struct {
	v         *viper.Viper
	settings  *config.Settings
	logCloser io.Closer
	stdout    io.Writer
	stderr    io.Writer
	cfgFile   string
}

// runError carries the command context used in the error document.
type runError struct {
	err     error
	context string
}

func (e *runError) Error() string { return e.err.Error() }
func (e *runError) Unwrap() error { return e.err }

func failed(command string, err error) error {
	if err == nil {
		return nil
	}
	return &runError{context: command, err: err}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "inspect",
		Short: "Time-windowed pass/fail model training and simulation for production line data",
		Long: `inspect trains a gradient-boosted pass/fail classifier on one date range of a
CSV of production measurements and scores another range with it.

Every command writes exactly one JSON document to stdout. Diagnostics go to stderr.`,
		PersistentPreRunE: a.initConfig,
		SilenceErrors:     true,
		SilenceUsage:      true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: $HOME/.config/inspect/config.yaml)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("log-format", "console", "log format (console, json)")
	flags.String("log-file", "", "also write logs to this rotated file")
	flags.String("journal", "", "record runs in this SQLite database")
	flags.String("backend", config.BackendGBDT, "classifier backend (gbdt, lightgbm)")
	flags.String("charset", "utf-8", "CSV character set (utf-8, latin1, windows-1252, gbk, shift_jis)")
	flags.Bool("progress", false, "show boosting progress on stderr")

	_ = a.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("logging.format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("logging.file", flags.Lookup("log-file"))
	_ = a.v.BindPFlag("journal.path", flags.Lookup("journal"))
	_ = a.v.BindPFlag("backend", flags.Lookup("backend"))
	_ = a.v.BindPFlag("data.charset", flags.Lookup("charset"))
	_ = a.v.BindPFlag("progress", flags.Lookup("progress"))

	rootCmd.AddCommand(trainCmd(a))
	rootCmd.AddCommand(simulateCmd(a))
	rootCmd.AddCommand(profileCmd(a))
	rootCmd.AddCommand(runsCmd(a))
	rootCmd.AddCommand(versionCmd(a))
	return rootCmd
}

func (a *app) initConfig(_ *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(config.DefaultConfigDir())
		a.v.AddConfigPath(".")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}

	a.v.SetEnvPrefix("INSPECT")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	settings, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.settings = settings

	closer, err := common.SetupLogger(settings.Logging.Level, settings.Logging.Format, common.LogFile{
		Path:       settings.Logging.File,
		MaxSizeMB:  settings.Logging.MaxSizeMB,
		MaxBackups: settings.Logging.MaxBackups,
		MaxAgeDays: settings.Logging.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	a.logCloser = closer
	return nil
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}
	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stderr)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	defer func() {
		if a.logCloser != nil {
			_ = a.logCloser.Close()
		}
	}()
	if err == nil {
		return common.ExitOK
	}

	msg := err.Error()
	code := common.ExitFailure
	var re *runError
	if errors.As(err, &re) {
		msg = common.ErrorMessage(re.context, re.err)
		code = common.ExitCode(re.err)
		if code == common.ExitFailure {
			common.LogError(nil, re.err, "Command failed", common.Fields{"command": re.context})
		}
	}
	if writeErr := report.Write(stdout, report.Error{Message: msg}); writeErr != nil {
		common.LogError(nil, writeErr, "Failed to write error document", nil)
	}
	return code
}

func main() {
	interrupts := cli.NewInterruptHandler(os.Stderr)
	ctx := interrupts.HandleInterrupts(context.Background())

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	interrupts.Stop()
	os.Exit(code)
}

func versionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(_ *cobra.Command, _ []string) error {
			return report.Write(a.stdout, map[string]string{"version": version})
		},
	}
}

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/Vigil/internal/auth"
	"github.com/turtacn/Vigil/internal/auth/pam"
	"github.com/turtacn/Vigil/internal/catalog"
	"github.com/turtacn/Vigil/internal/config"
	"github.com/turtacn/Vigil/internal/environ"
	"github.com/turtacn/Vigil/internal/login"
	"github.com/turtacn/Vigil/internal/monitor"
	"github.com/turtacn/Vigil/internal/supervisor"
	"github.com/turtacn/Vigil/internal/ui"
	"github.com/turtacn/Vigil/internal/vt"
	"github.com/turtacn/Vigil/internal/xorg"
	"github.com/turtacn/Vigil/pkg/consts"
	"github.com/turtacn/Vigil/pkg/logger"
	"github.com/turtacn/Vigil/pkg/protocol"
)

var (
	cfgFile string
	preview bool
	noLog   bool
)

var rootCmd = &cobra.Command{
	Use:          "vigil",
	Short:        "Vigil: a terminal login manager",
	SilenceUsage: true,
	RunE:         runLoginManager,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", consts.DefaultConfigPath, "config file path")
	rootCmd.Flags().BoolVar(&preview, "preview", false, "show the prompt without switching terminals or starting sessions")
	rootCmd.Flags().BoolVar(&noLog, "nolog", false, "disable logging")
	rootCmd.AddCommand(logoutCmd, configCmd, envsCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*protocol.Config, error) {
	return config.Load(cfgFile, cmd.Flags().Changed("config"))
}

// inSession reports the user of the session we are running in, if any.
func inSession() (string, bool) {
	user := os.Getenv(consts.EnvUser)
	return user, user != ""
}

func mode() consts.AppMode {
	if preview {
		return consts.ModePreview
	}
	return consts.ModeRun
}

func logPath(cfg *protocol.Config) string {
	switch {
	case noLog:
		return ""
	case preview:
		return consts.PreviewLogPath
	default:
		return cfg.Log.Path
	}
}

func runLoginManager(cmd *cobra.Command, args []string) error {
	if user, ok := inSession(); ok && !preview {
		return fmt.Errorf("already in an authenticated session as %s; run with --preview or use `vigil logout`", user)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Log.Level, logPath(cfg)); err != nil {
		return fmt.Errorf("failed to set up logging, fix the error or pass --nolog: %w", err)
	}
	defer logger.Close()
	monitor.InitMetrics(cfg.Metrics.Listen)

	entries, err := catalog.List(cfg.EnvironmentsDir)
	if err != nil {
		logger.Log.Warn("Failed to list environments", "dir", cfg.EnvironmentsDir, "err", err)
	}
	logger.Log.Info("Booting Vigil...", "mode", mode(), "tty", cfg.TTY, "environments", len(entries))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var starter login.Starter
	if preview {
		starter = previewStarter{}
	} else {
		console := vt.NewConsole()
		vt.SwitchOrWarn(console, cfg.TTY)
		starter = supervisor.New(supervisor.Config{
			TTY:        cfg.TTY,
			InboxPath:  cfg.Handshake.InboxPath,
			OutboxPath: cfg.Handshake.OutboxPath,
			Verbose:    cfg.Handshake.Verbose,
		}, environ.New(catalog.KindX.String()), xorg.New(cfg.X, cfg.TTY), console)
	}

	wf := login.New(ctx, pam.New(cfg.PAMService), starter)
	err = ui.Run(ctx, wf, entries)

	// A supervised session observes the cancellation and tears down.
	stop()
	wf.Wait()
	logger.Log.Info("Vigil is shutting down")
	return err
}

// previewStarter stands in for the supervisor in preview mode.
type previewStarter struct{}

func (previewStarter) Start(_ context.Context, entry catalog.Entry, id *auth.Identity) error {
	logger.Log.Info("Preview: Skipping session start", "user", id.Username, "session", entry.Name)
	return id.Invalidate()
}

// Personal.AI order the ending

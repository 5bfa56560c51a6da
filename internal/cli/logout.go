package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/turtacn/Vigil/internal/handshake"
	verrors "github.com/turtacn/Vigil/pkg/errors"
	"github.com/turtacn/Vigil/pkg/logger"
)

const logoutSettle = time.Second

type logoutRequester interface {
	RequestLogout() error
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out of the current Vigil session",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitWriter("error", io.Discard)

		if _, ok := inSession(); !ok {
			fmt.Fprintln(cmd.ErrOrStderr(), "Cannot logout without being in an authenticated session")
			os.Exit(1)
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
			os.Exit(1)
		}

		client := handshake.NewClient(cfg.Handshake.InboxPath, cfg.Handshake.OutboxPath)
		client.Timeout = cfg.Handshake.AckTimeout
		if code := requestLogout(cmd.OutOrStdout(), cmd.ErrOrStderr(), client, logoutSettle); code != 0 {
			os.Exit(code)
		}
	},
}

// requestLogout performs the handshake and returns the process exit code.
func requestLogout(stdout, stderr io.Writer, client logoutRequester, settle time.Duration) int {
	fmt.Fprintln(stdout, "Requesting a logout")
	err := client.RequestLogout()
	switch {
	case err == nil:
		fmt.Fprintln(stdout, "Logging out...")
		time.Sleep(settle)
		return 0
	case verrors.HasCode(err, verrors.ErrCodePermissionDenied):
		fmt.Fprintln(stderr, "No permission to logout. Logout should be run with root privileges")
	default:
		fmt.Fprintf(stderr, "Failed to communicate with Vigil session. Reason: %v\n", err)
	}
	return 1
}

// Personal.AI order the ending

// Command menuctl is a terminal client for the restaurant menu: browse a
// menu, keep a cart and manage the owner session. State that a browser keeps
// in local storage lives in the session store (a directory by default).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	svcerrors "github.com/R3E-Network/menu_layer/internal/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errReported) {
			printError(err)
		}
		os.Exit(1)
	}
}

func printError(err error) {
	se := svcerrors.GetServiceError(err)
	if se == nil || len(se.Details) == 0 || se.Code != svcerrors.CodeValidation {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", se.Message)
	fields := make([]string, 0, len(se.Details))
	for f := range se.Details {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		fmt.Fprintf(os.Stderr, "  %s: %v\n", f, se.Details[f])
	}
}

// errReported means a toast already told the user what went wrong.
var errReported = errors.New("reported")

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	e := &env{opts: opts}

	root := &cobra.Command{
		Use:           "menuctl",
		Short:         "Browse restaurant menus and manage a cart from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return e.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.envFile, "env", ".env", "Path to a .env file (ignored when missing)")
	flags.StringVar(&opts.configFile, "config", "", "Path to a YAML config file (default $MENU_CONFIG)")
	flags.StringVar(&opts.sessionBackend, "session", "", "Session backend: file, redis or memory (default file)")
	flags.StringVar(&opts.sessionDir, "session-dir", "", "Directory for the file session backend")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newLoginCmd(e),
		newRegisterCmd(e),
		newLogoutCmd(e),
		newWhoamiCmd(e),
		newForgotPasswordCmd(e),
		newMenuCmd(e),
		newStatsCmd(e),
		newCartCmd(e),
	)
	return root
}

package commands

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wondertwin-ai/subtrack/internal/config"
	"github.com/wondertwin-ai/subtrack/internal/notify"
	"github.com/wondertwin-ai/subtrack/internal/session"
)

// skipSession marks commands that only need the configuration.
const skipSession = "subtrack/skip-session"

// errShown wraps an error whose message has already been printed as a
// notification.
type errShown struct{ err error }

func (e errShown) Error() string { return e.err.Error() }
func (e errShown) Unwrap() error { return e.err }

type app struct {
	configPath string
	baseURL    string
	noColor    bool

	cfg     config.Config
	logger  *slog.Logger
	sess    *session.Session
	sessOpt []session.Option
}

// Execute runs the CLI with the process arguments.
func Execute(ctx context.Context) error {
	root := NewRoot()
	err := root.ExecuteContext(ctx)
	if err != nil {
		var shown errShown
		if !errors.As(err, &shown) {
			color.New(color.FgRed).Fprintln(root.ErrOrStderr(), "Error:", err)
		}
	}
	return err
}

// NewRoot builds the command tree. Options are passed to the session.
func NewRoot(opts ...session.Option) *cobra.Command {
	a := &app{sessOpt: opts}

	root := &cobra.Command{
		Use:           "subtrack",
		Short:         "Track recurring subscriptions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.noColor {
				color.NoColor = true
			}
			if err := a.loadConfig(cmd); err != nil {
				return err
			}
			if cmd.Annotations[skipSession] != "" {
				return nil
			}
			sess, err := session.New(a.cfg, append([]session.Option{session.WithLogger(a.logger)}, a.sessOpt...)...)
			if err != nil {
				return err
			}
			a.sess = sess
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.sess != nil {
				a.sess.Detach()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/subtrack/config.yaml)")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "subscription service URL, overrides the config file and environment")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(listCmd(a), addCmd(a), editCmd(a), deleteCmd(a), configCmd(a))
	return root
}

func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("base-url") {
		cfg.BaseURL = a.baseURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.logger = cfg.Logger(cmd.ErrOrStderr())
	return nil
}

// report prints the live notification and marks err as shown when it
// carried one.
func (a *app) report(cmd *cobra.Command, err error) error {
	n := a.sess.View().Notice
	if n == nil {
		return err
	}
	printNotice(cmd, *n)
	if err != nil {
		return errShown{err}
	}
	return nil
}

func printNotice(cmd *cobra.Command, n notify.Notification) {
	if n.Severity == notify.SeverityError {
		color.New(color.FgRed).Fprintln(cmd.ErrOrStderr(), n.Text)
		return
	}
	color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), n.Text)
}

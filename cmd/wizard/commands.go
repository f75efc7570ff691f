package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/ganot/stepwise/internal/apiclient"
	"github.com/ganot/stepwise/internal/config"
	domain "github.com/ganot/stepwise/internal/domain/wizard"
	"github.com/ganot/stepwise/internal/transport"
	"github.com/ganot/stepwise/internal/tui"
	"github.com/ganot/stepwise/internal/wizard"
)

// options are the global flags, defaulted from configuration.
type options struct {
	baseURL  string
	token    string
	tenantID string
	wizardID string
	timeout  time.Duration
	verbose  bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cfg := config.Default()

	root := &cobra.Command{
		Use:   "wizard",
		Short: "Work through a stepwise wizard from the terminal",
		Long: `wizard talks to a stepwise server. Progress is saved on every step,
so an interrupted run resumes where it stopped.

Connection settings default to STEPWISE_URL, STEPWISE_TOKEN and
STEPWISE_TENANT, or the client section of STEPWISE_CONFIG_PATH.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load()
			if err != nil {
				return err
			}
			applyDefaults(cmd, opts, loaded.Client)
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.baseURL, "url", cfg.Client.BaseURL, "server base URL")
	flags.StringVar(&opts.token, "token", "", "bearer token")
	flags.StringVar(&opts.tenantID, "tenant", cfg.Client.TenantID, "tenant ID")
	flags.StringVar(&opts.wizardID, "wizard", domain.TaxOnboardingID, "wizard ID")
	flags.DurationVar(&opts.timeout, "timeout", cfg.Client.Timeout, "per-request timeout")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		newRunCmd(opts),
		newStatusCmd(opts),
		newQuotaCmd(opts),
		newDefinitionCmd(opts),
		newTokenCmd(),
	)
	return root
}

// applyDefaults fills flags the user did not set from configuration.
func applyDefaults(cmd *cobra.Command, opts *options, cfg config.ClientConfig) {
	flags := cmd.Flags()
	if !flags.Changed("url") {
		opts.baseURL = cfg.BaseURL
	}
	if !flags.Changed("token") {
		opts.token = cfg.Token
	}
	if !flags.Changed("tenant") {
		opts.tenantID = cfg.TenantID
	}
	if !flags.Changed("timeout") {
		opts.timeout = cfg.Timeout
	}
}

func (o *options) client() *apiclient.Client {
	return apiclient.New(o.baseURL, apiclient.WithToken(o.token), apiclient.WithTimeout(o.timeout))
}

func (o *options) logger() *slog.Logger {
	if !o.verbose {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (o *options) controller() (*wizard.Controller, error) {
	def, err := domain.DefaultCatalog().Get(o.wizardID)
	if err != nil {
		return nil, err
	}
	client := o.client()
	return wizard.New(wizard.Config{
		Definition:  def,
		TenantID:    o.tenantID,
		Progress:    client.Progress,
		Suggestions: client.Suggestions,
		Quotas:      client.Quotas,
		Submitter:   client.Submissions,
		Logger:      o.logger(),
	})
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open the interactive wizard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := opts.controller()
			if err != nil {
				return err
			}
			final, err := tea.NewProgram(tui.New(cmd.Context(), ctrl), tea.WithContext(cmd.Context())).Run()
			if err != nil {
				return fmt.Errorf("running wizard: %w", err)
			}
			if m, ok := final.(tui.Model); ok && m.Receipt() != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s at %s\n", m.Receipt().ID, m.Receipt().SubmittedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show saved progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			def, err := domain.DefaultCatalog().Get(opts.wizardID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			saved, err := opts.client().Progress.Load(cmd.Context(), opts.tenantID, opts.wizardID)
			if errors.Is(err, wizard.ErrNotFound) {
				fmt.Fprintln(out, "No saved progress.")
				return nil
			}
			if err != nil {
				return describe(err)
			}

			fmt.Fprintf(out, "%s: step %d of %d (saved %s)\n", def.Title, saved.CurrentStep, def.TotalSteps(), saved.UpdatedAt.Format(time.RFC3339))
			for i, step := range def.Steps {
				draft, ok := saved.Drafts[step.Key]
				state := "not started"
				if ok {
					if errs := step.Validate(draft); len(errs) == 0 {
						state = "complete"
					} else {
						state = fmt.Sprintf("%d issue(s)", len(errs))
					}
				}
				fmt.Fprintf(out, "  %d. %-22s %s\n", i+1, step.Title, state)
			}
			return nil
		},
	}
}

func newQuotaCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show the suggestion quota",
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := opts.client().Quotas.Get(cmd.Context(), opts.tenantID)
			if err != nil {
				return describe(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Suggestions: %d of %d used, %d left, resets %s\n",
				q.Used, q.Limit, q.Remaining(), q.ResetsAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newDefinitionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "definition",
		Short: "Print the wizard definition served by the server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := opts.client().Definition(cmd.Context(), opts.tenantID, opts.wizardID)
			if err != nil {
				return describe(err)
			}
			var buf bytes.Buffer
			if err := json.Indent(&buf, raw, "", "  "); err != nil {
				return fmt.Errorf("formatting definition: %w", err)
			}
			buf.WriteByte('\n')
			_, err = buf.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		tenant string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed tenant token for servers in jwt auth mode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("STEPWISE_JWT_SECRET is not set")
			}
			token, err := transport.NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer).Issue(tenant, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenant, "for", "", "tenant the token is valid for")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("for")
	return cmd
}

// describe turns a client error into the message the wizard UI would show.
func describe(err error) error {
	notice := wizard.Describe(err)
	return fmt.Errorf("%s (%w)", notice.Message, err)
}

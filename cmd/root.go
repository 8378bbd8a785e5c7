package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/teemow/gmailauth/internal/google"
	"github.com/teemow/gmailauth/internal/instrumentation"
	"github.com/teemow/gmailauth/internal/logging"
)

// version will be set by main
var version = "dev"

// SetVersion sets the version reported by the version command
func SetVersion(v string) {
	version = v
}

// options holds the persistent flags shared by all commands.
type options struct {
	credentialsPath string
	tokenPath       string
	port            int
	timeout         time.Duration
	noBrowser       bool
	logLevel        string
	debug           bool

	// gmailEndpoint overrides the Gmail API base URL (hidden, for testing against a fake).
	gmailEndpoint string

	logger *slog.Logger
}

// newRootCmd builds the gmailauth command tree
func newRootCmd() *cobra.Command {
	o := &options{}

	cmd := &cobra.Command{
		Use:   "gmailauth",
		Short: "Obtain a read-only Gmail OAuth token and verify it",
		Long: `gmailauth obtains an OAuth2 token for Gmail's read-only API.

It reuses the cached token when it is still valid, refreshes it when it has
expired, and otherwise opens the Google consent page in your browser. The
resulting token is stored for the next run.

Running gmailauth without a subcommand is the same as "gmailauth login".`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.complete(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, o)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.credentialsPath, "credentials", google.DefaultClientSecretPath, "Path to the OAuth client secret JSON downloaded from the Google Cloud Console. Can also use GMAILAUTH_CREDENTIALS env var.")
	flags.StringVar(&o.tokenPath, "token", google.DefaultTokenPath(), "Path of the cached token file. Can also use GMAILAUTH_TOKEN env var.")
	flags.IntVar(&o.port, "port", 0, "Loopback port for the authorization redirect (0 picks a free port)")
	flags.DurationVar(&o.timeout, "timeout", google.DefaultAuthorizationTimeout, "How long to wait for consent in the browser")
	flags.BoolVar(&o.noBrowser, "no-browser", false, "Do not open a browser, only print the authorization URL")
	flags.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn or error. Can also use GMAILAUTH_LOG_LEVEL env var.")
	flags.BoolVar(&o.debug, "debug", false, "Enable debug logging (same as --log-level=debug)")
	flags.StringVar(&o.gmailEndpoint, "gmail-endpoint", "", "Override the Gmail API base URL")
	_ = flags.MarkHidden("gmail-endpoint")

	cmd.AddCommand(newLoginCmd(o))
	cmd.AddCommand(newStatusCmd(o))
	cmd.AddCommand(newLogoutCmd(o))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute is the main entry point for the CLI application
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		os.Exit(1)
	}
}

// complete loads .env, applies environment fallbacks for flags that were not
// set on the command line and sets up logging.
func (o *options) complete(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	flags := cmd.Flags()
	if !flags.Changed("credentials") {
		if v := os.Getenv("GMAILAUTH_CREDENTIALS"); v != "" {
			o.credentialsPath = v
		}
	}
	if !flags.Changed("token") {
		if v := os.Getenv("GMAILAUTH_TOKEN"); v != "" {
			o.tokenPath = v
		}
	}
	if !flags.Changed("log-level") {
		if v := os.Getenv("GMAILAUTH_LOG_LEVEL"); v != "" {
			o.logLevel = v
		}
	}

	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}
	if o.debug {
		level = slog.LevelDebug
	}
	o.logger = logging.NewLogger(cmd.ErrOrStderr(), level)
	slog.SetDefault(o.logger)
	return nil
}

// newManager wires the file token store, the refresher and the browser flow.
// metrics may be nil.
func (o *options) newManager(prompt io.Writer, metrics *instrumentation.Metrics) *google.Manager {
	loader := google.FileClientConfig(o.credentialsPath)

	authOpts := []google.AuthorizerOption{
		google.WithPort(o.port),
		google.WithTimeout(o.timeout),
		google.WithPromptWriter(prompt),
		google.WithAuthorizerLogger(logging.NewSlogAdapter(o.logger)),
	}
	if o.noBrowser {
		authOpts = append(authOpts, google.WithBrowser(nil))
	}

	return google.NewManager(
		google.NewFileTokenStore(o.tokenPath),
		google.NewOAuthRefresher(loader),
		google.NewLocalServerAuthorizer(loader, authOpts...),
		google.WithLogger(o.logger),
		google.WithMetrics(metrics),
	)
}

// startInstrumentation creates the telemetry provider configured from the environment.
// The returned function flushes it and must be called before exiting.
func (o *options) startInstrumentation(ctx context.Context) (*instrumentation.Provider, func(), error) {
	config := instrumentation.DefaultConfig()
	config.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	if provider.Enabled() {
		o.logger.Debug("instrumentation enabled",
			"metrics_exporter", config.MetricsExporter,
			"tracing_exporter", config.TracingExporter,
			"textfile", config.TextfilePath)
	}

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			o.logger.Warn("error during instrumentation shutdown", logging.Err(err))
		}
	}
	return provider, shutdown, nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/gmailauth/internal/gmail"
	"github.com/teemow/gmailauth/internal/google"
	"github.com/teemow/gmailauth/internal/logging"
)

func newLoginCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Obtain a valid Gmail token and print the account it belongs to",
		Long: `Load the cached token, refresh it if it has expired, or run the browser
authorization flow when there is no usable token. The resulting token is saved
and checked against the Gmail API by reading the mailbox profile.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, o)
		},
	}
}

func runLogin(cmd *cobra.Command, o *options) error {
	ctx := cmd.Context()

	provider, shutdown, err := o.startInstrumentation(ctx)
	if err != nil {
		return err
	}
	defer shutdown()

	manager := o.newManager(cmd.ErrOrStderr(), provider.Metrics())

	factoryOpts := []gmail.FactoryOption{gmail.WithMetrics(provider.Metrics())}
	if o.gmailEndpoint != "" {
		factoryOpts = append(factoryOpts, gmail.WithEndpoint(o.gmailEndpoint))
	}

	client, outcome, err := google.AcquireClient[*gmail.Client](ctx, manager, gmail.NewFactory(factoryOpts...))
	if err != nil {
		return err
	}

	profile, err := client.Profile(ctx)
	if err != nil {
		return err
	}

	o.logger.Debug("login complete",
		logging.Outcome(outcome.String()),
		logging.UserHash(profile.EmailAddress),
		logging.Path(o.tokenPath))

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as: %s\n", profile.EmailAddress)
	return nil
}

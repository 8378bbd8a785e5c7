package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/gmailauth/internal/logging"
)

func newLogoutCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the cached token",
		Long: `Remove the cached token file. The next login will open the consent page
again. The grant itself is not revoked; remove it under
https://myaccount.google.com/permissions if needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.newManager(cmd.ErrOrStderr(), nil).Forget(cmd.Context()); err != nil {
				return err
			}
			o.logger.Debug("token removed", logging.Path(o.tokenPath))
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", o.tokenPath)
			return nil
		},
	}
}

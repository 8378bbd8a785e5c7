package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/gmailauth/internal/google"
)

func newStatusCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the cached token without contacting Google",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd, o)
		},
	}
}

func runStatus(cmd *cobra.Command, o *options) error {
	out := cmd.OutOrStdout()
	manager := o.newManager(cmd.ErrOrStderr(), nil)

	cred, err := manager.Stored(cmd.Context())
	if errors.Is(err, google.ErrNoToken) {
		_, _ = fmt.Fprintf(out, "Not logged in (no token at %s)\n", o.tokenPath)
		return nil
	}
	if err != nil {
		return err
	}

	required := manager.Scopes()
	state := "valid"
	switch {
	case !cred.HasScopes(required):
		state = "missing required scopes"
	case cred.Expired() && cred.Refreshable():
		state = "expired (will be refreshed on next login)"
	case cred.Expired():
		state = "expired"
	}

	_, _ = fmt.Fprintf(out, "Token file:    %s\n", o.tokenPath)
	_, _ = fmt.Fprintf(out, "Status:        %s\n", state)
	if expiry := cred.Expiry(); !expiry.IsZero() {
		_, _ = fmt.Fprintf(out, "Expiry:        %s\n", expiry.Local().Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(out, "Refresh token: %s\n", presence(cred.Refreshable()))
	_, _ = fmt.Fprintf(out, "Scopes:        %s\n", strings.Join(cred.Scopes, " "))
	return nil
}

func presence(ok bool) string {
	if ok {
		return "present"
	}
	return "absent"
}

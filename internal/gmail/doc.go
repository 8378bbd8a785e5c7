// Package gmail provides the Gmail client handle returned after authentication.
//
// The handle is built from an already valid credential and is only used here for a
// connectivity check: Profile returns the authenticated mailbox address.
//
//	client, _, err := google.AcquireClient[*gmail.Client](ctx, manager, gmail.NewFactory())
//	if err != nil {
//	    return err
//	}
//	profile, err := client.Profile(ctx)
package gmail

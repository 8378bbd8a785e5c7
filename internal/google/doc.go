// Package google obtains and caches the OAuth2 credential used to talk to Gmail.
//
// A Manager resolves a credential valid for RequiredScopes:
//
//  1. the stored credential is used as-is when it is unexpired and carries the scopes;
//  2. an expired credential with a refresh token is refreshed once; a refresh token the
//     provider rejects falls back to interactive authorization;
//  3. otherwise the user authorizes the application in a browser, and the redirect is
//     received on a loopback listener.
//
// New or refreshed credentials are written to the TokenStore; a valid stored
// credential is never rewritten. Missing or corrupt token files are treated as
// "not logged in".
//
// The token store, refresher, authorizer and client factory are interfaces so the
// flow can be exercised without a browser or network:
//
//	loader := google.FileClientConfig("credentials.json")
//	m := google.NewManager(
//	    google.NewFileTokenStore(google.DefaultTokenPath()),
//	    google.NewOAuthRefresher(loader),
//	    google.NewLocalServerAuthorizer(loader),
//	)
//	client, outcome, err := google.AcquireClient[*gmail.Client](ctx, m, gmail.NewFactory())
package google

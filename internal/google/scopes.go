package google

import (
	gmail "google.golang.org/api/gmail/v1"
)

// RequiredScopes is the fixed scope set every stored credential must carry.
// It is never widened at runtime; a credential missing any of these scopes is
// discarded and the user is asked to authorize again.
var RequiredScopes = []string{
	gmail.GmailReadonlyScope, // Read-only access to messages and settings
}

// hasScopes reports whether granted is a superset of required.
func hasScopes(granted, required []string) bool {
	set := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		set[s] = struct{}{}
	}
	for _, s := range required {
		if _, ok := set[s]; !ok {
			return false
		}
	}
	return true
}

// copyScopes returns a copy of scopes so callers cannot mutate RequiredScopes.
func copyScopes(scopes []string) []string {
	if scopes == nil {
		return nil
	}
	out := make([]string, len(scopes))
	copy(out, scopes)
	return out
}

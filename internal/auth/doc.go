// Package auth drives a browsing session from "unknown" to "authenticated"
// against the two-hop login flow: the portal landing page asks for the RUT
// identifier, then hands off to the external identity provider for the full
// credential pair.
//
// The flow is a small state machine: try restoring a persisted session,
// validate it with a forced reload, and only fall into the login hops when
// validation fails. Each hop returns a typed outcome instead of throwing;
// only the URL classification at the boundaries decides overall success.
// Every success path re-saves the session (refresh on success).
package auth

package auth

import "strings"

// Rules captures the URL classification for the target platform.
type Rules struct {
	// TargetHost is the learning platform's domain.
	TargetHost string
	// IdentityHost is the external identity provider's domain.
	IdentityHost string
}

// Authenticated classifies a URL as an authenticated landing. The check runs
// on the full URL, not just the host: identity-provider pages often carry the
// target host inside a redirect parameter, and the platform's own login pages
// live on the target host.
func (r Rules) Authenticated(url string) bool {
	return strings.Contains(url, r.TargetHost) &&
		!strings.Contains(url, "login") &&
		!strings.Contains(url, r.IdentityHost)
}

// OnIdentityProvider reports whether the URL still points at the identity
// provider, which after a submit means the login attempt failed.
func (r Rules) OnIdentityProvider(url string) bool {
	return strings.Contains(url, r.IdentityHost)
}

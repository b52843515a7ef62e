package auth

import (
	"context"
	"log/slog"
	"time"

	"aulagrab/internal/browser"
	"aulagrab/internal/config"
	"aulagrab/internal/logging"
	"aulagrab/internal/session"
)

// Pager is the page-control capability the authenticator consumes.
// *browser.Page satisfies it; tests script it.
type Pager interface {
	Reload(ctx context.Context) error
	CurrentURL(ctx context.Context) (string, error)
	WaitVisible(ctx context.Context, sel string, timeout time.Duration) browser.Outcome
	SendKeys(ctx context.Context, sel, value string) error
	Clear(ctx context.Context, sel string) error
	PressEnter(ctx context.Context, sel string) error
	ClickFirst(ctx context.Context, matchers []browser.Matcher, perMatcher time.Duration) (browser.Matcher, browser.Outcome)
	PollURLStable(ctx context.Context, interval time.Duration, consecutive int, timeout time.Duration) (string, browser.Outcome)
	Cookies(ctx context.Context) ([]session.Cookie, error)
	SetCookies(ctx context.Context, cookies []session.Cookie) error
}

// Selector fallbacks, ordered by how often the respective markup variant has
// been observed. The portal does not guarantee exact markup, so the RUT field
// is matched by placeholder, id, or name.
const (
	portalRutField   = `input[placeholder*="Rut"], input[id*="rut"], input[name*="rut"]`
	identityRunField = `input[name="run"], input[id="run"]`
	identityPwdField = `input[name="password"], input[id="password"]`
)

var portalSubmitMatchers = []browser.Matcher{
	browser.XPath("acceder text button", `//button[contains(translate(., 'ACDER', 'acder'), 'acceder')]`),
	browser.CSS("portal login button", `#btnLogin`),
}

var identitySubmitMatchers = []browser.Matcher{
	browser.CSS("submit button", `button[type="submit"]`),
	browser.CSS("submit input", `input[type="submit"]`),
	browser.CSS("btn-submit id", `#btn-submit`),
	browser.CSS("primary button", `.btn-primary`),
	browser.CSS("login-submit id", `#login-submit`),
}

// Authenticator establishes an authenticated browsing session.
type Authenticator struct {
	rules    Rules
	creds    config.Credentials
	sessions *session.Store
	logger   *slog.Logger

	probeTimeout    time.Duration
	settle          time.Duration
	redirectTimeout time.Duration
	pollInterval    time.Duration
}

// New wires an authenticator from configuration. Missing credentials disable
// the login hops; session restore and validation still run.
func New(cfg *config.Config, sessions *session.Store, logger *slog.Logger) *Authenticator {
	return &Authenticator{
		rules: Rules{
			TargetHost:   cfg.Portal.TargetHost,
			IdentityHost: cfg.Portal.IdentityHost,
		},
		creds:           cfg.Credentials(),
		sessions:        sessions,
		logger:          logging.NewComponentLogger(logger, "auth"),
		probeTimeout:    time.Duration(cfg.Portal.ProbeTimeoutSeconds) * time.Second,
		settle:          time.Duration(cfg.Portal.SettleSeconds) * time.Second,
		redirectTimeout: time.Duration(cfg.Portal.RedirectTimeoutSeconds) * time.Second,
		pollInterval:    500 * time.Millisecond,
	}
}

// Login drives the state machine against the page. It never fails hard: hop
// errors collapse into the boolean outcome, and the two URL classifications
// at the boundaries decide success.
func (a *Authenticator) Login(ctx context.Context, pg Pager) bool {
	a.restoreSession(ctx, pg)

	if url := a.currentURL(ctx, pg); a.rules.Authenticated(url) {
		a.logger.Info("session valid, already authenticated", logging.String("url", url))
		a.persist(ctx, pg)
		return true
	}

	if a.creds.Empty() {
		a.logger.Warn("no credentials configured; cannot run login hops")
		return false
	}

	a.localPortalHop(ctx, pg)

	if a.federatedProviderHop(ctx, pg) {
		return true
	}

	// A hop may have completed the flow even when its own bookkeeping
	// reported failure; the URL is the only authority.
	if url := a.currentURL(ctx, pg); a.rules.Authenticated(url) {
		a.persist(ctx, pg)
		return true
	}
	return false
}

// restoreSession applies a persisted cookie set and forces a reload so the
// subsequent URL classification sees the session's effect.
func (a *Authenticator) restoreSession(ctx context.Context, pg Pager) {
	cookies, ok, err := a.sessions.Load()
	if err != nil {
		a.logger.Warn("failed to load persisted session", logging.Error(err))
		return
	}
	if !ok {
		return
	}
	if err := pg.SetCookies(ctx, cookies); err != nil {
		a.logger.Warn("failed to apply persisted session", logging.Error(err))
		return
	}
	a.logger.Info("restored persisted session", logging.Int("cookies", len(cookies)))

	if url := a.currentURL(ctx, pg); url != "" && url != "about:blank" {
		if err := pg.Reload(ctx); err != nil {
			a.logger.Warn("session validation reload failed", logging.Error(err))
		}
		browser.Settle(ctx, a.settle)
	}
}

// localPortalHop handles the portal landing page's RUT field. Absence of the
// field is not an error: the flow is already past this hop.
func (a *Authenticator) localPortalHop(ctx context.Context, pg Pager) {
	if outcome := pg.WaitVisible(ctx, portalRutField, a.probeTimeout); outcome != browser.OutcomeOK {
		a.logger.Debug("portal landing not present", logging.String("outcome", outcome.String()))
		return
	}
	a.logger.Info("portal landing page found, entering identifier")

	if err := pg.SendKeys(ctx, portalRutField, a.creds.Run); err != nil {
		a.logger.Warn("failed to fill identifier field", logging.Error(err))
		return
	}
	if err := pg.PressEnter(ctx, portalRutField); err != nil {
		a.logger.Debug("enter keypress failed", logging.Error(err))
	}
	// The portal validates the identifier over AJAX before enabling the
	// proceed control; there is no DOM condition to poll for.
	browser.Settle(ctx, a.settle)

	if m, outcome := pg.ClickFirst(ctx, portalSubmitMatchers, 2*time.Second); outcome == browser.OutcomeNotFound {
		a.logger.Debug("no proceed control found; assuming keypress submitted")
	} else {
		a.logger.Info("clicked proceed control", logging.String("matcher", m.Desc))
	}

	if _, outcome := pg.PollURLStable(ctx, a.pollInterval, 2, a.probeTimeout); outcome != browser.OutcomeOK {
		a.logger.Debug("portal navigation did not settle", logging.String("outcome", outcome.String()))
	}
}

// federatedProviderHop fills the identity provider's credential form and
// classifies the post-submit URL.
func (a *Authenticator) federatedProviderHop(ctx context.Context, pg Pager) bool {
	if outcome := pg.WaitVisible(ctx, identityRunField, a.probeTimeout); outcome != browser.OutcomeOK {
		// The local hop alone may have completed the flow.
		if url := a.currentURL(ctx, pg); a.rules.Authenticated(url) {
			a.persist(ctx, pg)
			return true
		}
		a.logger.Debug("identity provider form not present", logging.String("outcome", outcome.String()))
		return false
	}
	a.logger.Info("identity provider form found, filling credentials")

	if err := pg.Clear(ctx, identityRunField); err != nil {
		a.logger.Debug("failed to clear identifier field", logging.Error(err))
	}
	if err := pg.SendKeys(ctx, identityRunField, a.creds.Run); err != nil {
		a.logger.Warn("failed to fill identifier", logging.Error(err))
		return false
	}
	if err := pg.SendKeys(ctx, identityPwdField, a.creds.Password); err != nil {
		a.logger.Warn("failed to fill secret", logging.Error(err))
		return false
	}
	// Client-side keyup handlers enable the submit control.
	browser.Settle(ctx, a.settle)

	m, outcome := pg.ClickFirst(ctx, identitySubmitMatchers, 2*time.Second)
	if outcome == browser.OutcomeNotFound {
		a.logger.Warn("identity provider submit control not found")
		return false
	}
	a.logger.Info("submitted identity provider form", logging.String("matcher", m.Desc))

	// The provider side redirects asynchronously across several hops with no
	// completion signal; poll until the URL holds still.
	url, outcome := pg.PollURLStable(ctx, a.pollInterval, 3, a.redirectTimeout)
	if outcome != browser.OutcomeOK {
		a.logger.Debug("redirect chain did not settle", logging.String("outcome", outcome.String()))
		url = a.currentURL(ctx, pg)
	}
	if a.rules.OnIdentityProvider(url) {
		a.logger.Warn("still on identity provider after submit; login failed", logging.String("url", url))
		return false
	}
	a.logger.Info("login succeeded", logging.String("url", url))
	a.persist(ctx, pg)
	return true
}

// persist re-saves the live session. Refresh on success: both restored and
// freshly established sessions are written back.
func (a *Authenticator) persist(ctx context.Context, pg Pager) {
	cookies, err := pg.Cookies(ctx)
	if err != nil {
		a.logger.Warn("failed to read cookies for persistence", logging.Error(err))
		return
	}
	if err := a.sessions.Save(cookies); err != nil {
		a.logger.Warn("failed to persist session", logging.Error(err))
		return
	}
	a.logger.Info("session persisted", logging.Int("cookies", len(cookies)))
}

func (a *Authenticator) currentURL(ctx context.Context, pg Pager) string {
	url, err := pg.CurrentURL(ctx)
	if err != nil {
		a.logger.Debug("failed to read current url", logging.Error(err))
		return ""
	}
	return url
}

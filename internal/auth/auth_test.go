package auth

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aulagrab/internal/browser"
	"aulagrab/internal/config"
	"aulagrab/internal/logging"
	"aulagrab/internal/session"
)

// fakePager scripts the page-control capability so the state machine can be
// exercised without a browser.
type fakePager struct {
	url      string
	reloadTo string
	visible  map[string]browser.Outcome

	// url to land on after each submit control is clicked; empty means the
	// respective control is absent.
	afterPortalSubmit   string
	afterIdentitySubmit string

	cookies     []session.Cookie
	applied     [][]session.Cookie
	typed       map[string]string
	reloadCount int
}

func newFakePager(url string) *fakePager {
	return &fakePager{
		url:     url,
		visible: map[string]browser.Outcome{},
		typed:   map[string]string{},
		cookies: []session.Cookie{{Name: "MoodleSession", Value: "live", Domain: "auladigital.sence.cl", Path: "/"}},
	}
}

func (f *fakePager) Reload(context.Context) error {
	f.reloadCount++
	if f.reloadTo != "" {
		f.url = f.reloadTo
	}
	return nil
}

func (f *fakePager) CurrentURL(context.Context) (string, error) { return f.url, nil }

func (f *fakePager) WaitVisible(_ context.Context, sel string, _ time.Duration) browser.Outcome {
	if outcome, ok := f.visible[sel]; ok {
		return outcome
	}
	return browser.OutcomeTimeout
}

func (f *fakePager) SendKeys(_ context.Context, sel, value string) error {
	f.typed[sel] = value
	return nil
}

func (f *fakePager) Clear(_ context.Context, sel string) error {
	delete(f.typed, sel)
	return nil
}

func (f *fakePager) PressEnter(context.Context, string) error { return nil }

func (f *fakePager) ClickFirst(_ context.Context, matchers []browser.Matcher, _ time.Duration) (browser.Matcher, browser.Outcome) {
	identity := strings.Contains(matchers[0].Query, "submit")
	if identity {
		if f.afterIdentitySubmit == "" {
			return browser.Matcher{}, browser.OutcomeNotFound
		}
		f.url = f.afterIdentitySubmit
		return matchers[0], browser.OutcomeOK
	}
	if f.afterPortalSubmit == "" {
		return browser.Matcher{}, browser.OutcomeNotFound
	}
	f.url = f.afterPortalSubmit
	return matchers[0], browser.OutcomeOK
}

func (f *fakePager) PollURLStable(context.Context, time.Duration, int, time.Duration) (string, browser.Outcome) {
	return f.url, browser.OutcomeOK
}

func (f *fakePager) Cookies(context.Context) ([]session.Cookie, error) { return f.cookies, nil }

func (f *fakePager) SetCookies(_ context.Context, cookies []session.Cookie) error {
	f.applied = append(f.applied, cookies)
	return nil
}

func newTestAuthenticator(t *testing.T, withCreds bool) (*Authenticator, *session.Store) {
	t.Helper()
	if withCreds {
		t.Setenv(config.EnvRun, "12345678-9")
		t.Setenv(config.EnvPassword, "hunter2")
	} else {
		t.Setenv(config.EnvRun, "")
		t.Setenv(config.EnvPassword, "")
	}
	cfg := config.Default()
	store := session.NewStore(filepath.Join(t.TempDir(), session.FileName))
	a := New(&cfg, store, logging.NewNop())
	// Collapse the bounded waits so state machine tests run instantly.
	a.probeTimeout = 10 * time.Millisecond
	a.settle = 0
	a.redirectTimeout = 10 * time.Millisecond
	a.pollInterval = time.Millisecond
	return a, store
}

func TestRestoredSessionShortCircuits(t *testing.T) {
	a, store := newTestAuthenticator(t, true)
	if err := store.Save([]session.Cookie{{Name: "MoodleSession", Value: "stale"}}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	pg := newFakePager("https://auladigital.sence.cl/course/view.php?id=1")
	if !a.Login(context.Background(), pg) {
		t.Fatal("expected restored session to authenticate")
	}
	if len(pg.applied) != 1 {
		t.Fatalf("expected persisted cookies applied once, got %d", len(pg.applied))
	}
	if pg.reloadCount != 1 {
		t.Fatalf("expected a validation reload, got %d", pg.reloadCount)
	}

	// Refresh on success: the live cookie set replaces the stale one.
	saved, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("expected re-saved session, ok=%v err=%v", ok, err)
	}
	if saved[0].Value != "live" {
		t.Fatalf("session not refreshed, got %+v", saved)
	}
}

func TestStaleSessionLandingOnLoginProceedsToHops(t *testing.T) {
	a, store := newTestAuthenticator(t, false)
	if err := store.Save([]session.Cookie{{Name: "MoodleSession", Value: "stale"}}); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	pg := newFakePager("https://auladigital.sence.cl/course/view.php?id=1")
	// The validation reload bounces to the login page.
	pg.reloadTo = "https://auladigital.sence.cl/login/index.php"

	if a.Login(context.Background(), pg) {
		t.Fatal("stale session without credentials must not authenticate")
	}
	if pg.reloadCount != 1 {
		t.Fatal("expected a validation reload")
	}
}

func TestFullTwoHopLogin(t *testing.T) {
	a, store := newTestAuthenticator(t, true)

	pg := newFakePager("https://sence.example/landing")
	pg.visible[portalRutField] = browser.OutcomeOK
	pg.visible[identityRunField] = browser.OutcomeOK
	pg.afterPortalSubmit = "https://claveunica.gob.cl/accounts/login/"
	pg.afterIdentitySubmit = "https://auladigital.sence.cl/my/"

	if !a.Login(context.Background(), pg) {
		t.Fatal("expected full login to succeed")
	}
	if pg.typed[identityPwdField] != "hunter2" {
		t.Fatalf("secret not filled: %+v", pg.typed)
	}
	if _, ok, _ := store.Load(); !ok {
		t.Fatal("expected session persisted after login")
	}
}

func TestStillOnIdentityProviderIsFailure(t *testing.T) {
	a, store := newTestAuthenticator(t, true)

	pg := newFakePager("https://claveunica.gob.cl/accounts/login/")
	pg.visible[identityRunField] = browser.OutcomeOK
	// Submit "navigates" but the URL never leaves the provider.
	pg.afterIdentitySubmit = "https://claveunica.gob.cl/accounts/login/?error=1"

	if a.Login(context.Background(), pg) {
		t.Fatal("expected failure while still on identity provider")
	}
	if _, ok, _ := store.Load(); ok {
		t.Fatal("failed login must not persist a session")
	}
}

func TestIdentityFieldsAbsentButAlreadyOnTarget(t *testing.T) {
	a, store := newTestAuthenticator(t, true)

	// The local hop alone completed the flow; the provider form never shows.
	pg := newFakePager("https://sence.example/landing")
	pg.visible[portalRutField] = browser.OutcomeOK
	pg.afterPortalSubmit = "https://auladigital.sence.cl/my/"

	if !a.Login(context.Background(), pg) {
		t.Fatal("expected success when the portal hop finishes the flow")
	}
	if _, ok, _ := store.Load(); !ok {
		t.Fatal("expected session persisted")
	}
}

func TestNoCredentialsSkipsHops(t *testing.T) {
	a, _ := newTestAuthenticator(t, false)

	pg := newFakePager("https://sence.example/landing")
	pg.visible[portalRutField] = browser.OutcomeOK

	if a.Login(context.Background(), pg) {
		t.Fatal("expected failure without credentials")
	}
	if len(pg.typed) != 0 {
		t.Fatalf("login hops must not run without credentials, typed=%+v", pg.typed)
	}
}

package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"aulagrab/internal/artifactkey"
	"aulagrab/internal/auth"
	"aulagrab/internal/browser"
	"aulagrab/internal/config"
	"aulagrab/internal/journal"
	"aulagrab/internal/logging"
	"aulagrab/internal/scrape"
	"aulagrab/internal/services"
	"aulagrab/internal/session"
	"aulagrab/internal/textutil"
)

// Tab is the full capability of the shared browser tab: page reading for the
// scrape stages plus the control surface the authenticator drives.
type Tab interface {
	scrape.Pager
	auth.Pager
}

// Env carries everything the stages share: configuration, shard-resolved
// directories, the artifact key deriver, the optional run journal, and the
// lazily started browser session. The browser launches on the first Page
// call and runs the login flow once; stages that stay on cached data never
// touch it.
type Env struct {
	Config  *config.Config
	Logger  *slog.Logger
	Deriver *artifactkey.Deriver
	Journal *journal.Store

	Shard       string
	DataDir     string
	DownloadDir string
	MergedDir   string

	mu             sync.Mutex
	tab            Tab
	closeTab       func()
	loginAttempted bool

	authenticator *auth.Authenticator
	launch        func(ctx context.Context) (Tab, func(), error)
}

// NewEnv resolves shard directories, builds the key deriver, and wires the
// authenticator. The journal may be nil; everything else is required.
func NewEnv(cfg *config.Config, logger *slog.Logger, jrnl *journal.Store) (*Env, error) {
	shard := textutil.SanitizeShard(cfg.Portal.Filter)
	env := &Env{
		Config:      cfg,
		Logger:      logger,
		Journal:     jrnl,
		Shard:       shard,
		DataDir:     config.ShardDir(cfg.Paths.DataDir, shard),
		DownloadDir: config.ShardDir(cfg.Paths.DownloadDir, shard),
		MergedDir:   config.ShardDir(cfg.Paths.MergedDir, shard),
	}

	deriver, err := artifactkey.New(cfg.Timezone)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "pipeline", "timezone", cfg.Timezone, err)
	}
	env.Deriver = deriver

	for _, dir := range []string{env.DataDir, env.DownloadDir, env.MergedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, services.Wrap(services.ErrStructural, "pipeline", "create directory", dir, err)
		}
	}

	sessions := session.NewStore(filepath.Join(env.DataDir, session.FileName))
	env.authenticator = auth.New(cfg, sessions, logger)
	env.launch = env.launchBrowser
	return env, nil
}

// Page returns the shared tab, launching the browser and running the login
// flow on first use. A failed login degrades the session rather than failing
// the call: the stages behind it then see the unauthenticated pages and fail
// per item or come back empty. Only losing the browser itself is fatal.
// Implements scrape.PageSource.
func (e *Env) Page(ctx context.Context) (scrape.Pager, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tab == nil {
		tab, closeTab, err := e.launch(ctx)
		if err != nil {
			return nil, services.Wrap(services.ErrStructural, "pipeline", "launch browser", "", err)
		}
		e.tab = tab
		e.closeTab = closeTab
	}

	if !e.loginAttempted {
		e.loginAttempted = true
		if err := e.tab.Navigate(ctx, e.Config.Portal.CourseURL); err != nil {
			return nil, services.Wrap(services.ErrStructural, "pipeline", "open portal", e.Config.Portal.CourseURL, err)
		}
		if !e.authenticator.Login(ctx, e.tab) {
			e.Logger.Warn("login flow did not reach the platform; continuing unauthenticated",
				logging.String("course_url", e.Config.Portal.CourseURL))
		}
	}
	return e.tab, nil
}

// Close tears down the browser session if one was started.
func (e *Env) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closeTab != nil {
		e.closeTab()
		e.tab = nil
		e.closeTab = nil
		e.loginAttempted = false
	}
}

func (e *Env) launchBrowser(ctx context.Context) (Tab, func(), error) {
	e.Logger.Info("launching browser",
		logging.Bool("headless", e.Config.Browser.Headless))
	br, err := browser.Launch(ctx, browser.Options{
		Headless:   e.Config.Browser.Headless,
		NavTimeout: time.Duration(e.Config.Browser.NavTimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, nil, err
	}
	return br.Page(), br.Close, nil
}

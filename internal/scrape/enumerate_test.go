package scrape

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"aulagrab/internal/config"
	"aulagrab/internal/fileutil"
	"aulagrab/internal/logging"
)

func enumerateFixture(t *testing.T, filter string) (*Enumerator, *fakePager, string) {
	t.Helper()
	cfg := config.Default()
	cfg.Portal.CourseURL = "https://auladigital.sence.cl/course/view.php?id=7"
	cfg.Portal.Filter = filter

	pg := &fakePager{
		url: cfg.Portal.CourseURL,
		anchors: []map[string]string{
			{"text": "Módulo 4: Clase 1", "link": "https://auladigital.sence.cl/mod/bigbluebuttonbn/view.php?id=1"},
			{"text": "Módulo 4: Clase 1 (copia)", "link": "https://auladigital.sence.cl/mod/bigbluebuttonbn/view.php?id=1"},
			{"text": "Módulo 5: Clase 1", "link": "https://auladigital.sence.cl/mod/bigbluebuttonbn/view.php?id=2"},
		},
		rows: map[string][]map[string]string{
			"https://auladigital.sence.cl/mod/bigbluebuttonbn/view.php?id=1": {
				{"name": "Mon, 5 Jan 2026, 5:50 PM Presentation", "link": "/mod/bigbluebuttonbn/bbb_view.php?rec=abc"},
			},
			"https://auladigital.sence.cl/mod/bigbluebuttonbn/view.php?id=2": {
				{"name": "Tue, 6 Jan 2026, 9:00 AM Presentation", "link": "https://auladigital.sence.cl/playback/x"},
			},
		},
	}

	dir := t.TempDir()
	e := NewEnumerator(&fakeSource{pg: pg}, &cfg, dir, logging.NewNop())
	return e, pg, dir
}

func TestEnumerateWritesModulesAndSessions(t *testing.T) {
	e, _, dir := enumerateFixture(t, "")

	stats, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// Three anchors, one duplicate link: two modules scraped.
	if stats.Processed != 2 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	var list ModuleList
	if err := fileutil.ReadJSON(filepath.Join(dir, ModuleListFile), &list); err != nil {
		t.Fatalf("read module list: %v", err)
	}
	if len(list.Modules) != 3 {
		t.Fatalf("module list must keep all anchors, got %d", len(list.Modules))
	}

	var first SessionFile
	if err := fileutil.ReadJSON(filepath.Join(dir, "session_1_modulo_4_clase_1.json"), &first); err != nil {
		t.Fatalf("read session file: %v", err)
	}
	got := first.BBBSession.Recordings
	if len(got) != 1 {
		t.Fatalf("expected one recording, got %+v", got)
	}
	if got[0].PlaybackLink != "https://auladigital.sence.cl/mod/bigbluebuttonbn/bbb_view.php?rec=abc" {
		t.Fatalf("relative link not absolutized: %q", got[0].PlaybackLink)
	}
	if got[0].Type != "Presentation" {
		t.Fatalf("unexpected type: %q", got[0].Type)
	}
}

func TestEnumerateFilterSelectsModules(t *testing.T) {
	e, pg, dir := enumerateFixture(t, "módulo 5")

	stats, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Processed != 1 {
		t.Fatalf("expected one matched module, got %+v", stats)
	}
	if len(pg.navigated) != 1 || pg.navigated[0] != "https://auladigital.sence.cl/mod/bigbluebuttonbn/view.php?id=2" {
		t.Fatalf("wrong navigation: %v", pg.navigated)
	}
	if _, err := os.Stat(filepath.Join(dir, "session_1_modulo_5_clase_1.json")); err != nil {
		t.Fatalf("session file missing: %v", err)
	}
}

func TestEnumerateZeroMatchesIsNotAnError(t *testing.T) {
	e, _, dir := enumerateFixture(t, "no such module")

	stats, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("zero matches must not error: %v", err)
	}
	if stats.Processed != 0 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	// The module list is still written.
	if _, err := os.Stat(filepath.Join(dir, ModuleListFile)); err != nil {
		t.Fatalf("module list missing: %v", err)
	}
}

func TestEnumerateModuleFailureContinuesBatch(t *testing.T) {
	e, pg, _ := enumerateFixture(t, "")
	pg.navErr = map[string]error{
		"https://auladigital.sence.cl/mod/bigbluebuttonbn/view.php?id=1": errBrowserDown,
	}

	stats, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("per-module failure must not abort: %v", err)
	}
	if stats.Processed != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

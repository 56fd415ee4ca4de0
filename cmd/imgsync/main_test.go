package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	work   string
	docDir string
	imgDir string
	server *httptest.Server
}

// setupCLITestEnv creates a site with the default src layout in a temp
// working directory and serves two images over HTTP.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	t.Setenv("IMGSYNC_LOG_LEVEL", "error")
	work := t.TempDir()
	t.Chdir(work)

	env := &cliTestEnv{
		work:   work,
		docDir: filepath.Join(work, "src"),
		imgDir: filepath.Join(work, "src", ".vuepress", "public"),
	}
	for _, dir := range []string{env.docDir, env.imgDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pic.jpg", "/guide/shot.png":
			_, _ = w.Write([]byte("image:" + r.URL.Path))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(env.server.Close)
	return env
}

func (e *cliTestEnv) writeDoc(t *testing.T, rel, text string) string {
	t.Helper()
	path := filepath.Join(e.docDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestDefaultCommandLocalizesDocuments(t *testing.T) {
	env := setupCLITestEnv(t)
	guide := env.writeDoc(t, "guide.md", "![x]("+env.server.URL+"/pic.jpg)")
	nested := env.writeDoc(t, "guide/setup.md", "![a]("+env.server.URL+"/guide/shot.png) ![b]("+env.server.URL+"/missing.png)")

	out, _, err := runCLI(t, "-n")
	if err != nil {
		t.Fatalf("imgsync: %v", err)
	}
	requireContains(t, out, "[1/2] guide/setup.md")
	requireContains(t, out, "[2/2] guide.md")
	requireContains(t, out, "download failed")
	requireContains(t, out, "[2/2] analysis complete, processed 2 images")

	if got := readFile(t, guide); got != "![x](/images/pic.jpg)" {
		t.Fatalf("guide.md = %q", got)
	}
	wantNested := "![a](/images/guide/shot.png) ![b](" + env.server.URL + "/missing.png)"
	if got := readFile(t, nested); got != wantNested {
		t.Fatalf("guide/setup.md = %q", got)
	}
	if got := readFile(t, filepath.Join(env.imgDir, "images", "guide", "shot.png")); got != "image:/guide/shot.png" {
		t.Fatalf("asset = %q", got)
	}
}

func TestMissingDocumentRootFails(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, "-n", "-d", filepath.Join(env.work, "nope"))
	if err == nil {
		t.Fatal("expected error for missing document root")
	}
	requireContains(t, err.Error(), "Document root")
}

func TestSyncJSONSummary(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeDoc(t, "guide.md", "![x]("+env.server.URL+"/pic.jpg)")

	out, _, err := runCLI(t, "sync", "-n", "--format", "json")
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	var summary struct {
		RunID   string `json:"run_id"`
		Fetched int    `json:"fetched"`
		Changed int    `json:"changed"`
	}
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode summary: %v\n%s", err, out)
	}
	if summary.RunID == "" || summary.Fetched != 1 || summary.Changed != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestSyncRejectsUnknownFormat(t *testing.T) {
	setupCLITestEnv(t)
	if _, _, err := runCLI(t, "sync", "-n", "--format", "xml"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestHistoryListsRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeDoc(t, "guide.md", "![x]("+env.server.URL+"/pic.jpg)")
	if _, _, err := runCLI(t, "-n"); err != nil {
		t.Fatalf("imgsync: %v", err)
	}

	out, _, err := runCLI(t, "history", "--format", "json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []struct {
		ID      string `json:"id"`
		Fetched int    `json:"fetched"`
	}
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v\n%s", err, out)
	}
	if len(runs) != 1 || runs[0].Fetched != 1 {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	detail, _, err := runCLI(t, "history", "--run", runs[0].ID[:8])
	if err != nil {
		t.Fatalf("history --run: %v", err)
	}
	requireContains(t, detail, "guide.md")
	requireContains(t, detail, "fetched")
}

func TestAuditReportsRemoteImages(t *testing.T) {
	env := setupCLITestEnv(t)
	env.writeDoc(t, "todo.md", "---\ntitle: Todo\n---\n![x](https://cdn.example/a.png)\n\n    ![code](https://cdn.example/in-code.png)\n")
	env.writeDoc(t, "done.md", "![x](/images/a.png)")

	out, _, err := runCLI(t, "audit", "--format", "json")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	var entries []auditEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode audit: %v\n%s", err, out)
	}
	if len(entries) != 1 || entries[0].Document != "todo.md" || entries[0].Title != "Todo" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if len(entries[0].Remote) != 1 {
		t.Fatalf("code block image should not be reported: %v", entries[0].Remote)
	}

	if _, _, err := runCLI(t, "audit", "--strict"); err == nil {
		t.Fatal("expected --strict to fail with remote images present")
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	setupCLITestEnv(t)

	out, _, err := runCLI(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, _, err := runCLI(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}

func TestStatusReportsDirectories(t *testing.T) {
	setupCLITestEnv(t)
	out, _, err := runCLI(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Document root:")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "Run lock:")
}

func TestVersionFlag(t *testing.T) {
	out, _, err := runCLI(t, "--version")
	if err != nil {
		t.Fatalf("--version: %v", err)
	}
	requireContains(t, out, "imgsync "+version)
}

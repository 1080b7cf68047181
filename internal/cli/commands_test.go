package cli

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rescale/dlxt/internal/codec"
	"github.com/rescale/dlxt/internal/config"
	"github.com/rescale/dlxt/internal/pipeline"
)

func serveFiles(t *testing.T, files map[string][]byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func gz(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := codec.Encode(codec.Gzip, &buf, strings.NewReader(s)); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func lines(s string) []string {
	return strings.Fields(strings.TrimSpace(s))
}

func TestDownloadCommand(t *testing.T) {
	srv := serveFiles(t, map[string][]byte{"/a.txt": []byte("A"), "/b.txt": []byte("B")})
	dir := t.TempDir()

	out, _, err := runCLI(t, "download", "-d", dir, "--json-logs",
		srv.URL+"/a.txt", srv.URL+"/b.txt", srv.URL+"/missing.txt")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if got := lines(out); len(got) != 2 {
		t.Errorf("printed %v, want two paths", got)
	}
	for name, want := range map[string]string{"a.txt": "A", "b.txt": "B"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil || string(data) != want {
			t.Errorf("%s = %q, %v", name, data, err)
		}
	}
}

func TestDownloadCommand_RenameFromFlag(t *testing.T) {
	srv := serveFiles(t, map[string][]byte{"/f.zip": []byte("new")})
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f.zip"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, "download", "-d", dir, "--on-duplicate", "rename", srv.URL+"/f.zip")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if got := lines(out); len(got) != 1 || filepath.Base(got[0]) != "f2.zip" {
		t.Errorf("printed %v, want .../f2.zip", got)
	}
}

func TestDownloadCommand_RequiresArgs(t *testing.T) {
	if _, _, err := runCLI(t, "download"); err == nil {
		t.Error("expected an argument error")
	}
}

func TestExtractCommand(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	archive := filepath.Join(in, "hello.txt.gz")
	if err := os.WriteFile(archive, gz(t, "hello"), 0644); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(in, "readme.md")
	if err := os.WriteFile(other, []byte("# hi"), 0644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := runCLI(t, "extract", "-d", out, "--on-unsupported", "copy", archive, other)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got := lines(stdout); len(got) != 1 || got[0] != archive {
		t.Errorf("printed %v, want [%s]", got, archive)
	}
	if data, _ := os.ReadFile(filepath.Join(out, "hello.txt")); string(data) != "hello" {
		t.Errorf("hello.txt = %q", data)
	}
	if _, err := os.Stat(filepath.Join(out, "readme.md")); err != nil {
		t.Errorf("readme.md should be copied: %v", err)
	}
	if _, err := os.Stat(archive); err != nil {
		t.Errorf("extract must not delete the archive: %v", err)
	}
}

func TestFetchCommand(t *testing.T) {
	srv := serveFiles(t, map[string][]byte{
		"/data.csv.gz": gz(t, "a,b\n"),
		"/page.html":   []byte("<html></html>"),
	})
	dir := t.TempDir()

	stdout, stderr, err := runCLI(t, "fetch", "-d", dir, srv.URL+"/data.csv.gz", srv.URL+"/page.html")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "data.csv")); string(data) != "a,b\n" {
		t.Errorf("data.csv = %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "data.csv.gz")); !os.IsNotExist(err) {
		t.Error("consumed archive should be removed")
	}
	if got := lines(stdout); len(got) != 1 || filepath.Base(got[0]) != "page.html" {
		t.Errorf("printed %v, want the remaining page.html", got)
	}
	if !strings.Contains(stderr, "2 downloaded, 1 extracted, 1 removed") {
		t.Errorf("summary missing:\n%s", stderr)
	}
}

func TestFetchCommand_KeepArchivesFromEnv(t *testing.T) {
	srv := serveFiles(t, map[string][]byte{"/k.gz": gz(t, "k")})
	dir := t.TempDir()
	t.Setenv("DLXT_KEEP_ARCHIVES", "true")

	if _, _, err := runCLI(t, "fetch", "-d", dir, srv.URL+"/k.gz"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "k.gz")); err != nil {
		t.Errorf("archive should be kept: %v", err)
	}
}

func TestRemaining(t *testing.T) {
	got := remaining(pipeline.Result{
		Downloaded: []string{"a", "b", "c"},
		Removed:    []string{"b"},
	})
	if strings.Join(got, ",") != "a,c" {
		t.Errorf("remaining = %v", got)
	}
}

func TestPromptProxyPassword(t *testing.T) {
	var out bytes.Buffer
	pw, err := promptProxyPassword(0, &out, "alice", "proxy.corp", func(int) ([]byte, error) {
		return []byte("s3cret\n"), nil
	})
	if err != nil || pw != "s3cret" {
		t.Errorf("got %q, %v", pw, err)
	}
	if !strings.Contains(out.String(), "alice@proxy.corp") {
		t.Errorf("prompt = %q", out.String())
	}

	if _, err := promptProxyPassword(0, &out, "u", "h", func(int) ([]byte, error) { return nil, nil }); err == nil {
		t.Error("empty password should be rejected")
	}
	readErr := errors.New("tty gone")
	if _, err := promptProxyPassword(0, &out, "u", "h", func(int) ([]byte, error) { return nil, readErr }); !errors.Is(err, readErr) {
		t.Errorf("expected wrapped read error, got %v", err)
	}
}

func TestEnsureProxyPassword_NotNeeded(t *testing.T) {
	cfg := config.Default()
	if err := ensureProxyPassword(cfg, os.Stdin, &bytes.Buffer{}); err != nil {
		t.Errorf("no-proxy should not prompt: %v", err)
	}
}

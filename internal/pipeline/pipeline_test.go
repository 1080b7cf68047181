package pipeline

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rescale/dlxt/internal/codec"
	dlhttp "github.com/rescale/dlxt/internal/http"
	"github.com/rescale/dlxt/internal/transfer"
	"github.com/rescale/dlxt/internal/util/tar"
)

func gzipTar(t *testing.T, name, content string) []byte {
	t.Helper()
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, name), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	var raw, gz bytes.Buffer
	if err := tar.Create(src, &raw); err != nil {
		t.Fatal(err)
	}
	if err := codec.Encode(codec.Gzip, &gz, &raw); err != nil {
		t.Fatal(err)
	}
	return gz.Bytes()
}

func newServer(t *testing.T, files map[string][]byte) *httptest.Server {
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

func newEngine(srv *httptest.Server) *transfer.Multi {
	return transfer.NewMulti(dlhttp.WrapClient(srv.Client(), nil), transfer.Options{MaxParallel: 2})
}

func TestRun_DownloadExtractRemove(t *testing.T) {
	srv := newServer(t, map[string][]byte{
		"/x.tar.gz":  gzipTar(t, "inside.txt", "unpacked"),
		"/a.zip":     []byte("PK\x03\x04"),
		"/notes.txt": []byte("plain"),
	})
	dir := t.TempDir()

	res, err := Run(context.Background(), Options{Engine: newEngine(srv)}, []string{
		srv.URL + "/x.tar.gz",
		srv.URL + "/a.zip",
		srv.URL + "/notes.txt",
		srv.URL + "/missing.gz",
	}, dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Downloaded) != 3 {
		t.Errorf("Downloaded = %v, want 3 paths", res.Downloaded)
	}
	archive := filepath.Join(dir, "x.tar.gz")
	if len(res.Extracted) != 1 || res.Extracted[0] != archive {
		t.Errorf("Extracted = %v, want [%s]", res.Extracted, archive)
	}
	if len(res.Removed) != 1 || res.Removed[0] != archive {
		t.Errorf("Removed = %v", res.Removed)
	}

	if got, err := os.ReadFile(filepath.Join(dir, "inside.txt")); err != nil || string(got) != "unpacked" {
		t.Errorf("inside.txt = %q, %v", got, err)
	}
	for _, gone := range []string{"x.tar.gz", "x.tar", "missing.gz"} {
		if _, err := os.Stat(filepath.Join(dir, gone)); !os.IsNotExist(err) {
			t.Errorf("%s should not exist", gone)
		}
	}
	for _, kept := range []string{"a.zip", "notes.txt"} {
		if _, err := os.Stat(filepath.Join(dir, kept)); err != nil {
			t.Errorf("%s should be kept: %v", kept, err)
		}
	}
}

func TestRun_KeepArchives(t *testing.T) {
	srv := newServer(t, map[string][]byte{"/k.tar.gz": gzipTar(t, "k.txt", "k")})
	dir := t.TempDir()

	res, err := Run(context.Background(), Options{Engine: newEngine(srv), KeepArchives: true},
		[]string{srv.URL + "/k.tar.gz"}, dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Extracted) != 1 || len(res.Removed) != 0 {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "k.tar.gz")); err != nil {
		t.Errorf("archive should be kept: %v", err)
	}
}

func TestRun_ExtractFailureKeepsDownloads(t *testing.T) {
	srv := newServer(t, map[string][]byte{"/broken.tar.gz": []byte("<html>oops</html>")})
	dir := t.TempDir()

	res, err := Run(context.Background(), Options{Engine: newEngine(srv)},
		[]string{srv.URL + "/broken.tar.gz"}, dir)
	if err == nil {
		t.Fatal("expected extraction error")
	}
	if len(res.Downloaded) != 1 || len(res.Removed) != 0 {
		t.Errorf("result = %+v", res)
	}
	if _, err := os.Stat(filepath.Join(dir, "broken.tar.gz")); err != nil {
		t.Errorf("failed archive should stay on disk: %v", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	srv := newServer(t, map[string][]byte{"/c.gz": []byte("c")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, Options{Engine: newEngine(srv)}, []string{srv.URL + "/c.gz"}, t.TempDir())
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(res.Extracted) != 0 {
		t.Errorf("nothing should be extracted: %+v", res)
	}
}

func TestRun_NoEngine(t *testing.T) {
	if _, err := Run(context.Background(), Options{}, nil, t.TempDir()); err == nil {
		t.Error("expected error without an engine")
	}
}

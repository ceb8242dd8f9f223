package sftp

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"3tcapital/saftprocessor/internal/core/saft"
	"3tcapital/saftprocessor/internal/infrastructure/resilience"
	"3tcapital/saftprocessor/internal/testutil"
)

type fakeInfo struct {
	name string
	dir  bool
}

func (i fakeInfo) Name() string       { return i.name }
func (i fakeInfo) Size() int64        { return 0 }
func (i fakeInfo) Mode() fs.FileMode  { return 0o644 }
func (i fakeInfo) ModTime() time.Time { return time.Time{} }
func (i fakeInfo) IsDir() bool        { return i.dir }
func (i fakeInfo) Sys() any           { return nil }

// fakeFS is an in-memory tree keyed by full path; directories map to nil content.
type fakeFS struct {
	files   map[string]string
	dirs    map[string][]string
	failDir map[string]bool
	removed []string
	closed  bool
}

func (f *fakeFS) ReadDir(p string) ([]os.FileInfo, error) {
	if f.failDir[p] {
		return nil, errors.New("permission denied")
	}
	names, ok := f.dirs[p]
	if !ok {
		return nil, os.ErrNotExist
	}
	infos := make([]os.FileInfo, 0, len(names))
	for _, n := range names {
		_, isDir := f.dirs[path.Join(p, n)]
		infos = append(infos, fakeInfo{name: n, dir: isDir})
	}
	return infos, nil
}

func (f *fakeFS) Open(p string) (io.ReadCloser, error) {
	content, ok := f.files[p]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(content)), nil
}

func (f *fakeFS) Remove(p string) error {
	if _, ok := f.files[p]; !ok {
		return os.ErrNotExist
	}
	delete(f.files, p)
	f.removed = append(f.removed, p)
	return nil
}

func (f *fakeFS) Close() error {
	f.closed = true
	return nil
}

func newFakeFS() *fakeFS {
	return &fakeFS{
		dirs: map[string][]string{
			"uploads":           {"509999999", "510000000", "readme.txt"},
			"uploads/509999999": {"FR202Y2025_7-Gramido.xml", "NC202Y2025_7-Gramido.xml", "FR-notes.txt", "other.xml"},
			"uploads/510000000": {"FR1Y2025_1-Porto.xml"},
			"gcs":               {"509999999"},
			"gcs/509999999":     {"opengcs-509999999-Gramido.xml", "opengcs-1-Other.xml"},
		},
		files: map[string]string{
			"uploads/509999999/FR202Y2025_7-Gramido.xml":  "<AuditFile/>",
			"uploads/509999999/NC202Y2025_7-Gramido.xml":  "<AuditFile/>",
			"uploads/510000000/FR1Y2025_1-Porto.xml":      "<AuditFile/>",
			"gcs/509999999/opengcs-509999999-Gramido.xml": "<OpenGCs/>",
		},
		failDir: map[string]bool{},
	}
}

func newTestSource(t *testing.T, fs *fakeFS) *Source {
	t.Helper()
	s := NewSource(Config{
		Host:        "sftp.test",
		RemoteRoot:  "uploads",
		OpenGCsRoot: "gcs",
		DownloadDir: t.TempDir(),
		Breaker:     resilience.Settings{MaxFailures: 2},
	}, testutil.NewNullLogger())
	s.dial = func(context.Context) (fileSystem, error) { return fs, nil }
	return s
}

func names(docs []saft.RemoteDocument) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Filename)
	}
	sort.Strings(out)
	return out
}

func TestSource_List(t *testing.T) {
	fs := newFakeFS()
	fs.failDir["uploads/510000000"] = true
	s := newTestSource(t, fs)

	docs, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	got := names(docs)
	want := []string{"FR202Y2025_7-Gramido.xml", "NC202Y2025_7-Gramido.xml"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("List = %v, want %v", got, want)
	}
	for _, d := range docs {
		if d.AccountFolder != "509999999" || d.RemotePath != "uploads/509999999/"+d.Filename {
			t.Errorf("unexpected document %+v", d)
		}
	}
}

func TestSource_ListOpenGCs(t *testing.T) {
	s := newTestSource(t, newFakeFS())

	docs, err := s.ListOpenGCs(context.Background())
	if err != nil {
		t.Fatalf("ListOpenGCs: %v", err)
	}
	if got := names(docs); len(got) != 1 || got[0] != "opengcs-509999999-Gramido.xml" {
		t.Errorf("ListOpenGCs = %v", got)
	}
}

func TestSource_ListRootFailure(t *testing.T) {
	fs := newFakeFS()
	fs.failDir["uploads"] = true
	s := newTestSource(t, fs)

	_, err := s.List(context.Background())
	var fetchErr *saft.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.File != "" {
		t.Fatalf("expected cycle-level FetchError, got %v", err)
	}
}

func TestSource_FetchAndDelete(t *testing.T) {
	fs := newFakeFS()
	s := newTestSource(t, fs)
	ctx := context.Background()

	doc := saft.RemoteDocument{
		Filename:      "FR202Y2025_7-Gramido.xml",
		RemotePath:    "uploads/509999999/FR202Y2025_7-Gramido.xml",
		AccountFolder: "509999999",
	}
	fetched, err := s.Fetch(ctx, doc)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if filepath.Base(filepath.Dir(fetched.LocalPath)) != "509999999" {
		t.Errorf("local copy should live under the account folder: %s", fetched.LocalPath)
	}
	content, err := os.ReadFile(fetched.LocalPath)
	if err != nil || string(content) != "<AuditFile/>" {
		t.Errorf("local content = %q, %v", content, err)
	}

	if err := s.Delete(ctx, fetched); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(fs.removed) != 1 || fs.removed[0] != doc.RemotePath {
		t.Errorf("removed = %v", fs.removed)
	}

	_, err = s.Fetch(ctx, doc)
	var fetchErr *saft.FetchError
	if !errors.As(err, &fetchErr) || fetchErr.File != doc.Filename {
		t.Errorf("fetching a deleted file should be a per-file FetchError, got %v", err)
	}
	if fs.closed {
		t.Error("a missing file must not drop the session")
	}
}

func TestSource_DialFailureOpensBreaker(t *testing.T) {
	s := newTestSource(t, newFakeFS())
	dials := 0
	s.dial = func(context.Context) (fileSystem, error) {
		dials++
		return nil, errors.New("connection refused")
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.List(ctx); err == nil {
			t.Fatal("expected error")
		}
	}
	if dials != 2 {
		t.Errorf("dials = %d, want 2 before the breaker opens", dials)
	}
	_, err := s.List(ctx)
	if !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
}

func TestFileFilters(t *testing.T) {
	tests := []struct {
		name   string
		folder string
		file   string
		audit  bool
		gcs    bool
	}{
		{"invoice", "1", "FR1Y2025_1-A.xml", true, false},
		{"credit note", "1", "NC1Y2025_1-A.xml", true, false},
		{"wrong extension", "1", "FR1Y2025_1-A.txt", false, false},
		{"unknown prefix", "1", "XX1.xml", false, false},
		{"opengcs of folder", "509", "opengcs-509-Loja.xml", false, true},
		{"opengcs of other folder", "509", "opengcs-1-Loja.xml", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAuditFile(tt.folder, tt.file); got != tt.audit {
				t.Errorf("isAuditFile = %v, want %v", got, tt.audit)
			}
			if got := isOpenGCsFile(tt.folder, tt.file); got != tt.gcs {
				t.Errorf("isOpenGCsFile = %v, want %v", got, tt.gcs)
			}
		})
	}
}

func TestSource_HostKeyRequired(t *testing.T) {
	s := NewSource(Config{Host: "h", Password: "x"}, testutil.NewNullLogger())
	if _, err := s.hostKeyCallback(); err == nil {
		t.Error("expected error without known hosts or explicit opt-out")
	}
	s.cfg.InsecureIgnoreHostKey = true
	if _, err := s.hostKeyCallback(); err != nil {
		t.Errorf("insecure opt-out should succeed: %v", err)
	}
	s.cfg.Password = ""
	if _, err := s.authMethods(); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestSource_Check(t *testing.T) {
	s := newTestSource(t, newFakeFS())
	s.dial = func(context.Context) (fileSystem, error) { return nil, errors.New("connection refused") }
	ctx := context.Background()

	if err := s.Check(ctx); err != nil {
		t.Fatalf("closed breaker should be healthy: %v", err)
	}
	for i := 0; i < 2; i++ {
		_, _ = s.List(ctx)
	}
	if err := s.Check(ctx); !errors.Is(err, resilience.ErrOpen) {
		t.Errorf("expected ErrOpen after repeated dial failures, got %v", err)
	}
}

package action

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markvault/markvault/internal/bookmarks"
	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/github"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// fakeCreds is an in-memory credential store.
type fakeCreds struct {
	creds *github.Credentials
}

func (f *fakeCreds) GetGitHubCredentials(ctx context.Context) (*github.Credentials, error) {
	if f.creds == nil {
		return nil, github.ErrNoCredentials
	}
	return f.creds, nil
}

// fakeRemote records uploads and serves canned files.
type fakeRemote struct {
	files       map[string][]byte
	validateErr error
	putErr      error
	puts        []string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{files: make(map[string][]byte)}
}

func (f *fakeRemote) Validate(ctx context.Context) (string, error) {
	if f.validateErr != nil {
		return "", f.validateErr
	}
	return "octocat", nil
}

func (f *fakeRemote) EnsureRepo(ctx context.Context, repo string) error { return nil }

func (f *fakeRemote) GetFile(ctx context.Context, repo, path string) ([]byte, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, errors.New("file not found: " + path)
	}
	return content, nil
}

func (f *fakeRemote) PutFile(
	ctx context.Context,
	repo, path string,
	content []byte,
	message string,
) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.files[path] = content
	f.puts = append(f.puts, path)
	return nil
}

func (f *fakeRemote) DeleteFile(ctx context.Context, repo, path, message string) error {
	delete(f.files, path)
	return nil
}

func (f *fakeRemote) ListDir(ctx context.Context, repo, dir string) ([]string, error) {
	var names []string
	for path := range f.files {
		if strings.HasPrefix(path, dir+"/") {
			names = append(names, strings.TrimPrefix(path, dir+"/"))
		}
	}
	return names, nil
}

func dialerFor(remote *fakeRemote) github.Dialer {
	return func(token string) github.RemoteRepo { return remote }
}

func seedBookmarks(t *testing.T) *bookmarks.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := bookmarks.NewMemoryStore()
	folder, err := store.Create(ctx, "", "Work", "")
	require.NoError(t, err)
	_, err = store.Create(ctx, folder.ID, "Go docs", "https://go.dev/doc/")
	require.NoError(t, err)
	_, err = store.Create(ctx, "", "News", "http://news.example.com")
	require.NoError(t, err)
	return store
}

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()
	backup := HandlerFunc(func(ctx context.Context, t *domain.Task) (string, error) {
		return "backup", nil
	})
	r.Register(domain.ActionTypeBackup, backup)
	r.RegisterCustom("noop", HandlerFunc(func(ctx context.Context, t *domain.Task) (string, error) {
		return "noop", nil
	}))

	h, err := r.Resolve(domain.BackupAction{Operation: domain.BackupOperationBackup})
	require.NoError(t, err)
	details, err := h.Run(context.Background(), &domain.Task{})
	require.NoError(t, err)
	assert.Equal(t, "backup", details)

	_, err = r.Resolve(domain.PushAction{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")

	h, err = r.Resolve(domain.CustomAction{Handler: "noop"})
	require.NoError(t, err)
	require.NotNil(t, h)

	_, err = r.Resolve(domain.CustomAction{Handler: "mystery"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported type")
}

func backupTask(op domain.BackupOperation) *domain.Task {
	return &domain.Task{
		ID:      "task-1-test",
		Trigger: domain.ManualTrigger{},
		Action: domain.BackupAction{
			Operation: op,
			Target:    "octocat/bookmarks",
		},
	}
}

func TestBackupUploadsSnapshot(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	store := seedBookmarks(t)
	h := NewBackupHandler(
		&fakeCreds{creds: &github.Credentials{Token: "tok"}},
		dialerFor(remote),
		store,
		testLogger(),
	)

	details, err := h.Run(ctx, backupTask(domain.BackupOperationBackup))
	require.NoError(t, err)
	assert.Contains(t, details, "uploaded snapshot")
	require.Len(t, remote.puts, 1)

	var snapshot Snapshot
	require.NoError(t, json.Unmarshal(remote.files[remote.puts[0]], &snapshot))
	assert.Equal(t, 1, snapshot.Version)
	assert.Len(t, snapshot.Roots, 2)
}

func TestBackupFailsFastWithoutCredentials(t *testing.T) {
	ctx := context.Background()
	h := NewBackupHandler(&fakeCreds{}, dialerFor(newFakeRemote()), seedBookmarks(t), testLogger())

	_, err := h.Run(ctx, backupTask(domain.BackupOperationBackup))
	assert.ErrorIs(t, err, domain.ErrCredential)
}

func TestRestorePicksLatestSnapshot(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	older := Snapshot{Version: 1, Roots: []*bookmarks.Node{{Title: "Old"}}}
	newer := Snapshot{Version: 1, Roots: []*bookmarks.Node{
		{Title: "Restored", Children: []*bookmarks.Node{
			{Title: "Example", URL: "https://example.com"},
		}},
	}}
	olderRaw, err := json.Marshal(older)
	require.NoError(t, err)
	newerRaw, err := json.Marshal(newer)
	require.NoError(t, err)
	remote.files["backups/bookmarks-20240101T000000.json"] = olderRaw
	remote.files["backups/bookmarks-20250101T000000.json"] = newerRaw

	store := seedBookmarks(t)
	h := NewBackupHandler(
		&fakeCreds{creds: &github.Credentials{Token: "tok"}},
		dialerFor(remote),
		store,
		testLogger(),
	)

	details, err := h.Run(ctx, backupTask(domain.BackupOperationRestore))
	require.NoError(t, err)
	assert.Contains(t, details, "bookmarks-20250101T000000.json")

	roots, err := store.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, "Restored", roots[0].Title)
}

func TestRestoreFailsWhenNoSnapshots(t *testing.T) {
	ctx := context.Background()
	h := NewBackupHandler(
		&fakeCreds{creds: &github.Credentials{Token: "tok"}},
		dialerFor(newFakeRemote()),
		seedBookmarks(t),
		testLogger(),
	)

	_, err := h.Run(ctx, backupTask(domain.BackupOperationRestore))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no snapshots")
}

func TestOrganizeDeleteByURLPattern(t *testing.T) {
	ctx := context.Background()
	store := seedBookmarks(t)
	h := NewOrganizeHandler(store, testLogger())

	task := &domain.Task{
		Trigger: domain.ManualTrigger{},
		Action: domain.OrganizeAction{
			Operations: []domain.OrganizeOp{
				{
					Kind:   domain.OrganizeOpDelete,
					Filter: domain.OrganizeFilter{URLPattern: `^http://`},
				},
			},
		},
	}
	details, err := h.Run(ctx, task)
	require.NoError(t, err)
	assert.Equal(t, "delete 1/1", details)

	remaining, err := store.Search(ctx, func(n *bookmarks.Node) bool { return true })
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Go docs", remaining[0].Title)
}

func TestOrganizeValidateCountsItemFailures(t *testing.T) {
	ctx := context.Background()
	store := bookmarks.NewMemoryStore()
	_, err := store.Create(ctx, "", "Good", "https://example.com")
	require.NoError(t, err)
	_, err = store.Create(ctx, "", "Bad", "ftp://example.com")
	require.NoError(t, err)

	h := NewOrganizeHandler(store, testLogger())
	task := &domain.Task{
		Trigger: domain.ManualTrigger{},
		Action: domain.OrganizeAction{
			Operations: []domain.OrganizeOp{{Kind: domain.OrganizeOpValidate}},
		},
	}

	_, err = h.Run(ctx, task)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 item failures")
	assert.Contains(t, err.Error(), "validate 1/2")
}

func TestOrganizeRenameTemplate(t *testing.T) {
	ctx := context.Background()
	store := bookmarks.NewMemoryStore()
	created, err := store.Create(ctx, "", "docs", "https://go.dev")
	require.NoError(t, err)

	h := NewOrganizeHandler(store, testLogger())
	task := &domain.Task{
		Trigger: domain.ManualTrigger{},
		Action: domain.OrganizeAction{
			Operations: []domain.OrganizeOp{
				{
					Kind:          domain.OrganizeOpRename,
					Filter:        domain.OrganizeFilter{TitlePattern: `^docs$`},
					TitleTemplate: "[archived] {title}",
				},
			},
		},
	}
	_, err = h.Run(ctx, task)
	require.NoError(t, err)

	got, err := store.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "[archived] docs", got.Title)
}

func TestPushFullTree(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	h := NewPushHandler(
		&fakeCreds{creds: &github.Credentials{Token: "tok"}},
		dialerFor(remote),
		seedBookmarks(t),
		testLogger(),
	)

	task := &domain.Task{
		Trigger: domain.ManualTrigger{},
		Action: domain.PushAction{
			Repo: "octocat/mirror",
			Path: "bookmarks.html",
		},
	}
	details, err := h.Run(ctx, task)
	require.NoError(t, err)
	assert.Contains(t, details, "bookmarks.html")

	doc := string(remote.files["bookmarks.html"])
	assert.Contains(t, doc, "NETSCAPE-Bookmark-file-1")
	assert.Contains(t, doc, "Go docs")
}

func TestSelectivePushKeepsOrderAndRejectsUnknownIDs(t *testing.T) {
	ctx := context.Background()
	store := bookmarks.NewMemoryStore()
	a, err := store.Create(ctx, "", "Alpha", "https://a.example.com")
	require.NoError(t, err)
	b, err := store.Create(ctx, "", "Beta", "https://b.example.com")
	require.NoError(t, err)

	remote := newFakeRemote()
	h := NewPushHandler(
		&fakeCreds{creds: &github.Credentials{Token: "tok"}},
		dialerFor(remote),
		store,
		testLogger(),
	)

	task := &domain.Task{
		Trigger: domain.ManualTrigger{},
		Action: domain.SelectivePushAction{
			Repo:        "octocat/mirror",
			Path:        "picks.html",
			BookmarkIDs: []string{b.ID, a.ID},
		},
	}
	_, err = h.Run(ctx, task)
	require.NoError(t, err)

	doc := string(remote.files["picks.html"])
	assert.Less(t, strings.Index(doc, "Beta"), strings.Index(doc, "Alpha"))

	task.Action = domain.SelectivePushAction{
		Repo:        "octocat/mirror",
		Path:        "picks.html",
		BookmarkIDs: []string{"ghost"},
	}
	_, err = h.Run(ctx, task)
	assert.ErrorIs(t, err, bookmarks.ErrNodeNotFound)
}

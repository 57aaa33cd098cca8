package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/markvault/markvault/internal/bookmarks"
	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/github"
)

// snapshotDir is the repository directory backup snapshots live under.
const snapshotDir = "backups"

// Snapshot is the JSON document a backup uploads and a restore consumes.
type Snapshot struct {
	Version    int               `json:"version"`
	ExportedAt int64             `json:"exportedAt"`
	Roots      []*bookmarks.Node `json:"roots"`
}

// BackupHandler uploads bookmark snapshots to a remote repository and
// restores them. Restore is gated to manually triggered tasks by the
// executor before the handler ever runs.
type BackupHandler struct {
	creds     github.CredentialStore
	dial      github.Dialer
	bookmarks bookmarks.Store
	logger    *slog.Logger
	now       func() time.Time
}

// NewBackupHandler wires a backup handler.
func NewBackupHandler(
	creds github.CredentialStore,
	dial github.Dialer,
	store bookmarks.Store,
	logger *slog.Logger,
) *BackupHandler {
	return &BackupHandler{
		creds:     creds,
		dial:      dial,
		bookmarks: store,
		logger:    logger.With("component", "backup_handler"),
		now:       time.Now,
	}
}

// Run implements Handler.
func (h *BackupHandler) Run(ctx context.Context, task *domain.Task) (string, error) {
	act, ok := task.Action.(domain.BackupAction)
	if !ok {
		return "", fmt.Errorf("unsupported type: %T for backup handler", task.Action)
	}

	creds, err := h.creds.GetGitHubCredentials(ctx)
	if err != nil {
		return "", err
	}
	remote := h.dial(creds.Token)
	login, err := remote.Validate(ctx)
	if err != nil {
		return "", err
	}
	h.logger.Debug("credentials validated", "login", login, "task_id", task.ID)

	if err := remote.EnsureRepo(ctx, act.Target); err != nil {
		return "", err
	}

	switch act.Operation {
	case domain.BackupOperationBackup:
		return h.backup(ctx, remote, act)
	case domain.BackupOperationRestore:
		return h.restore(ctx, remote, act)
	default:
		return "", fmt.Errorf("unsupported type: backup operation %q", act.Operation)
	}
}

func (h *BackupHandler) backup(
	ctx context.Context,
	remote github.RemoteRepo,
	act domain.BackupAction,
) (string, error) {
	roots, err := h.bookmarks.Tree(ctx)
	if err != nil {
		return "", fmt.Errorf("read bookmark tree: %w", err)
	}

	now := h.now()
	snapshot := Snapshot{
		Version:    1,
		ExportedAt: now.UnixMilli(),
		Roots:      roots,
	}
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	path := fmt.Sprintf("%s/bookmarks-%s.json", snapshotDir, now.UTC().Format("20060102T150405"))
	message := fmt.Sprintf("Bookmark backup %s", now.UTC().Format(time.RFC3339))
	if err := remote.PutFile(ctx, act.Target, path, payload, message); err != nil {
		return "", err
	}
	return fmt.Sprintf("uploaded snapshot %s (%d roots)", path, len(roots)), nil
}

func (h *BackupHandler) restore(
	ctx context.Context,
	remote github.RemoteRepo,
	act domain.BackupAction,
) (string, error) {
	name := act.Options.Snapshot
	if name == "" {
		names, err := remote.ListDir(ctx, act.Target, snapshotDir)
		if err != nil {
			return "", err
		}
		if len(names) == 0 {
			return "", fmt.Errorf("no snapshots found in %s/%s", act.Target, snapshotDir)
		}
		// Snapshot names embed a sortable UTC timestamp; the lexical max is
		// the most recent.
		sort.Strings(names)
		name = names[len(names)-1]
	}

	payload, err := remote.GetFile(ctx, act.Target, snapshotDir+"/"+name)
	if err != nil {
		return "", err
	}
	var snapshot Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return "", fmt.Errorf("decode snapshot %s: %w", name, err)
	}

	// The whole replacement forest is assembled before any live mutation, so
	// a run abandoned mid-restore never leaves the tree half overwritten.
	if err := h.bookmarks.ReplaceAll(ctx, snapshot.Roots); err != nil {
		return "", fmt.Errorf("replace bookmark tree: %w", err)
	}
	return fmt.Sprintf("restored snapshot %s (%d roots)", name, len(snapshot.Roots)), nil
}

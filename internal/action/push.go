package action

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/markvault/markvault/internal/bookmarks"
	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/github"
)

// PushHandler renders bookmarks to Netscape bookmark HTML and uploads the
// document to a repository path. It serves both full-tree push actions and
// selective push actions with a user-curated, explicitly ordered subset.
type PushHandler struct {
	creds     github.CredentialStore
	dial      github.Dialer
	bookmarks bookmarks.Store
	logger    *slog.Logger
	now       func() time.Time
}

// NewPushHandler wires a push handler.
func NewPushHandler(
	creds github.CredentialStore,
	dial github.Dialer,
	store bookmarks.Store,
	logger *slog.Logger,
) *PushHandler {
	return &PushHandler{
		creds:     creds,
		dial:      dial,
		bookmarks: store,
		logger:    logger.With("component", "push_handler"),
		now:       time.Now,
	}
}

// Run implements Handler.
func (h *PushHandler) Run(ctx context.Context, task *domain.Task) (string, error) {
	var repo, path, message, doc string
	var count int

	switch act := task.Action.(type) {
	case domain.PushAction:
		roots, err := h.bookmarks.Tree(ctx)
		if err != nil {
			return "", fmt.Errorf("read bookmark tree: %w", err)
		}
		doc = bookmarks.Render(roots)
		count = len(roots)
		repo, path, message = act.Repo, act.Path, act.CommitMessage

	case domain.SelectivePushAction:
		nodes := make([]*bookmarks.Node, 0, len(act.BookmarkIDs))
		for _, id := range act.BookmarkIDs {
			node, err := h.bookmarks.Get(ctx, id)
			if err != nil {
				return "", fmt.Errorf("resolve selected bookmark: %w", err)
			}
			nodes = append(nodes, node)
		}
		doc = bookmarks.RenderFlat(nodes)
		count = len(nodes)
		repo, path, message = act.Repo, act.Path, act.CommitMessage

	default:
		return "", fmt.Errorf("unsupported type: %T for push handler", task.Action)
	}

	if message == "" {
		message = fmt.Sprintf("Bookmark push %s", h.now().UTC().Format(time.RFC3339))
	}

	creds, err := h.creds.GetGitHubCredentials(ctx)
	if err != nil {
		return "", err
	}
	remote := h.dial(creds.Token)
	if _, err := remote.Validate(ctx); err != nil {
		return "", err
	}
	if err := remote.EnsureRepo(ctx, repo); err != nil {
		return "", err
	}
	if err := remote.PutFile(ctx, repo, path, []byte(doc), message); err != nil {
		return "", err
	}
	return fmt.Sprintf("pushed %d entries to %s/%s", count, repo, path), nil
}

package action

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/markvault/markvault/internal/bookmarks"
	"github.com/markvault/markvault/internal/domain"
)

// OrganizeHandler runs an ordered list of sub-operations against the live
// bookmark tree. Each sub-operation is independently filtered and
// independently counted; the action as a whole succeeds only when no
// per-item write failed.
type OrganizeHandler struct {
	bookmarks bookmarks.Store
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrganizeHandler wires an organize handler.
func NewOrganizeHandler(store bookmarks.Store, logger *slog.Logger) *OrganizeHandler {
	return &OrganizeHandler{
		bookmarks: store,
		logger:    logger.With("component", "organize_handler"),
		now:       time.Now,
	}
}

// opResult tallies one sub-operation.
type opResult struct {
	kind    domain.OrganizeOpKind
	ok      int
	failed  int
	details []string
}

// Run implements Handler.
func (h *OrganizeHandler) Run(ctx context.Context, task *domain.Task) (string, error) {
	act, ok := task.Action.(domain.OrganizeAction)
	if !ok {
		return "", fmt.Errorf("unsupported type: %T for organize handler", task.Action)
	}
	if len(act.Operations) == 0 {
		return "no operations configured", nil
	}

	results := make([]opResult, 0, len(act.Operations))
	for _, op := range act.Operations {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res, err := h.runOp(ctx, op)
		if err != nil {
			return "", err
		}
		results = append(results, res)
	}

	var summary []string
	failures := 0
	for _, r := range results {
		summary = append(summary, fmt.Sprintf("%s %d/%d", r.kind, r.ok, r.ok+r.failed))
		failures += r.failed
	}
	details := strings.Join(summary, ", ")
	if failures > 0 {
		return "", fmt.Errorf("organize finished with %d item failures (%s)", failures, details)
	}
	return details, nil
}

func (h *OrganizeHandler) runOp(
	ctx context.Context,
	op domain.OrganizeOp,
) (opResult, error) {
	res := opResult{kind: op.Kind}
	match, err := h.compileFilter(op.Filter)
	if err != nil {
		return res, err
	}
	matched, err := h.bookmarks.Search(ctx, match)
	if err != nil {
		return res, fmt.Errorf("search bookmarks: %w", err)
	}

	for _, node := range matched {
		var itemErr error
		switch op.Kind {
		case domain.OrganizeOpMove:
			itemErr = h.bookmarks.Move(ctx, node.ID, op.TargetFolderID)
		case domain.OrganizeOpDelete:
			itemErr = h.bookmarks.Remove(ctx, node.ID)
		case domain.OrganizeOpRename:
			title := strings.ReplaceAll(op.TitleTemplate, "{title}", node.Title)
			itemErr = h.bookmarks.Rename(ctx, node.ID, title)
		case domain.OrganizeOpValidate:
			itemErr = validateURL(node.URL)
		default:
			return res, fmt.Errorf("unsupported type: organize operation %q", op.Kind)
		}
		if itemErr != nil {
			res.failed++
			res.details = append(res.details, itemErr.Error())
			h.logger.Warn("organize item failed",
				"op", op.Kind,
				"bookmark_id", node.ID,
				"error", itemErr)
			continue
		}
		res.ok++
	}
	return res, nil
}

// compileFilter turns the declarative filter into a predicate over nodes.
func (h *OrganizeHandler) compileFilter(
	f domain.OrganizeFilter,
) (func(*bookmarks.Node) bool, error) {
	var urlRe, titleRe *regexp.Regexp
	var err error
	if f.URLPattern != "" {
		if urlRe, err = regexp.Compile(f.URLPattern); err != nil {
			return nil, fmt.Errorf("invalid url pattern %q: %w", f.URLPattern, err)
		}
	}
	if f.TitlePattern != "" {
		if titleRe, err = regexp.Compile(f.TitlePattern); err != nil {
			return nil, fmt.Errorf("invalid title pattern %q: %w", f.TitlePattern, err)
		}
	}
	cutoff := int64(0)
	if f.OlderThanDays > 0 {
		cutoff = h.now().AddDate(0, 0, -f.OlderThanDays).UnixMilli()
	}

	return func(n *bookmarks.Node) bool {
		if urlRe != nil && !urlRe.MatchString(n.URL) {
			return false
		}
		if titleRe != nil && !titleRe.MatchString(n.Title) {
			return false
		}
		if f.ParentID != "" && n.ParentID != f.ParentID {
			return false
		}
		if cutoff > 0 && n.DateAdded > cutoff {
			return false
		}
		return true
	}, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return nil
}

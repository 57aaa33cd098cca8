package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v62/github"
	"golang.org/x/oauth2"

	"github.com/markvault/markvault/internal/domain"
)

// RemoteRepo is the narrow, GitHub-shaped remote repository contract the
// action handlers consume. Repo identifiers are "owner/name" strings.
type RemoteRepo interface {
	// Validate checks the credentials against the remote API and returns
	// the authenticated user's login.
	Validate(ctx context.Context) (string, error)

	// EnsureRepo checks that the repository exists, creating a private one
	// when it does not.
	EnsureRepo(ctx context.Context, repo string) error

	// GetFile downloads the file at path.
	GetFile(ctx context.Context, repo, path string) ([]byte, error)

	// PutFile creates or updates the file at path with a commit message.
	PutFile(ctx context.Context, repo, path string, content []byte, message string) error

	// DeleteFile removes the file at path with a commit message.
	DeleteFile(ctx context.Context, repo, path, message string) error

	// ListDir lists the file names directly under dir.
	ListDir(ctx context.Context, repo, dir string) ([]string, error)
}

// Dialer builds a RemoteRepo from a token. Injected so tests can substitute
// a fake remote without network access.
type Dialer func(token string) RemoteRepo

// Client implements RemoteRepo on the GitHub contents API.
type Client struct {
	gh *gh.Client
}

// Dial creates a Client authenticated with the given token.
func Dial(token string) RemoteRepo {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Client{gh: gh.NewClient(oauth2.NewClient(context.Background(), src))}
}

func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q, want owner/name", repo)
	}
	return parts[0], parts[1], nil
}

// wrapAPIError classifies remote failures so the executor's retry logic can
// tell credential problems from transient ones.
func wrapAPIError(op string, err error) error {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s: %v", domain.ErrCredential, op, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: rate limit exceeded: %w", op, err)
		}
	}
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%s: rate limit exceeded: %w", op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Validate implements RemoteRepo.
func (c *Client) Validate(ctx context.Context) (string, error) {
	user, _, err := c.gh.Users.Get(ctx, "")
	if err != nil {
		return "", wrapAPIError("validate credentials", err)
	}
	return user.GetLogin(), nil
}

// EnsureRepo implements RemoteRepo.
func (c *Client) EnsureRepo(ctx context.Context, repo string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	_, resp, err := c.gh.Repositories.Get(ctx, owner, name)
	if err == nil {
		return nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return wrapAPIError("check repository", err)
	}
	_, _, err = c.gh.Repositories.Create(ctx, "", &gh.Repository{
		Name:    gh.String(name),
		Private: gh.Bool(true),
	})
	if err != nil {
		return wrapAPIError("create repository", err)
	}
	return nil
}

// GetFile implements RemoteRepo.
func (c *Client) GetFile(ctx context.Context, repo, path string) ([]byte, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	file, _, _, err := c.gh.Repositories.GetContents(ctx, owner, name, path, nil)
	if err != nil {
		return nil, wrapAPIError("get file", err)
	}
	if file == nil {
		return nil, fmt.Errorf("get file: %q is a directory", path)
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode file content: %w", err)
	}
	return []byte(content), nil
}

// PutFile implements RemoteRepo.
func (c *Client) PutFile(
	ctx context.Context,
	repo, path string,
	content []byte,
	message string,
) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		Content: content,
	}
	existing, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, name, path, nil)
	switch {
	case err == nil && existing != nil:
		opts.SHA = existing.SHA
		_, _, err = c.gh.Repositories.UpdateFile(ctx, owner, name, path, opts)
	case resp != nil && resp.StatusCode == http.StatusNotFound:
		_, _, err = c.gh.Repositories.CreateFile(ctx, owner, name, path, opts)
	default:
		return wrapAPIError("stat file", err)
	}
	if err != nil {
		return wrapAPIError("put file", err)
	}
	return nil
}

// DeleteFile implements RemoteRepo.
func (c *Client) DeleteFile(ctx context.Context, repo, path, message string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}
	existing, _, _, err := c.gh.Repositories.GetContents(ctx, owner, name, path, nil)
	if err != nil {
		return wrapAPIError("stat file", err)
	}
	if existing == nil {
		return fmt.Errorf("delete file: %q is a directory", path)
	}
	_, _, err = c.gh.Repositories.DeleteFile(ctx, owner, name, path, &gh.RepositoryContentFileOptions{
		Message: gh.String(message),
		SHA:     existing.SHA,
	})
	if err != nil {
		return wrapAPIError("delete file", err)
	}
	return nil
}

// ListDir implements RemoteRepo.
func (c *Client) ListDir(ctx context.Context, repo, dir string) ([]string, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	_, entries, _, err := c.gh.Repositories.GetContents(ctx, owner, name, dir, nil)
	if err != nil {
		return nil, wrapAPIError("list directory", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.GetType() == "file" {
			names = append(names, e.GetName())
		}
	}
	return names, nil
}

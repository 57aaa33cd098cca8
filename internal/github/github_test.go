package github

import (
	"context"
	"net/http"
	"testing"

	gh "github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markvault/markvault/internal/domain"
	"github.com/markvault/markvault/internal/kv"
)

func TestKVCredentialStore(t *testing.T) {
	ctx := context.Background()
	store := NewKVCredentialStore(kv.NewMemory())

	_, err := store.GetGitHubCredentials(ctx)
	assert.ErrorIs(t, err, domain.ErrCredential)

	require.NoError(t, store.SetGitHubCredentials(ctx, Credentials{Token: "ghp_test"}))
	creds, err := store.GetGitHubCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ghp_test", creds.Token)
}

func TestKVCredentialStoreEmptyToken(t *testing.T) {
	ctx := context.Background()
	store := NewKVCredentialStore(kv.NewMemory())

	require.NoError(t, store.SetGitHubCredentials(ctx, Credentials{}))
	_, err := store.GetGitHubCredentials(ctx)
	assert.ErrorIs(t, err, domain.ErrCredential)
}

func TestSplitRepo(t *testing.T) {
	owner, name, err := splitRepo("octocat/bookmarks")
	require.NoError(t, err)
	assert.Equal(t, "octocat", owner)
	assert.Equal(t, "bookmarks", name)

	for _, bad := range []string{"", "octocat", "/bookmarks", "octocat/"} {
		_, _, err := splitRepo(bad)
		assert.Error(t, err, "expected %q to be rejected", bad)
	}
}

func TestWrapAPIErrorClassifiesCredentialFailures(t *testing.T) {
	unauthorized := &gh.ErrorResponse{
		Response: &http.Response{StatusCode: http.StatusUnauthorized},
	}
	err := wrapAPIError("validate", unauthorized)
	assert.ErrorIs(t, err, domain.ErrCredential)

	rateLimited := &gh.ErrorResponse{
		Response: &http.Response{StatusCode: http.StatusTooManyRequests},
	}
	err = wrapAPIError("put file", rateLimited)
	assert.NotErrorIs(t, err, domain.ErrCredential)
	assert.Contains(t, err.Error(), "rate limit")
}

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauthierbraillon/creatorfeed/internal/aggregator"
	"github.com/gauthierbraillon/creatorfeed/pkg/oauth"
)

func openStore(t *testing.T) *PostStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "posts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var base = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func post(p oauth.Platform, id string, age time.Duration, likes int64) aggregator.Post {
	return aggregator.Post{ID: id, Platform: p, Caption: id, Likes: likes, Date: base.Add(-age), URL: "https://example.com/" + id}
}

func TestSavePosts_UpsertsByPlatformAndID(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePosts(ctx, []aggregator.Post{
		post(oauth.PlatformTikTok, "1", time.Hour, 5),
		post(oauth.PlatformInstagram, "1", 2*time.Hour, 7),
	}))
	require.NoError(t, s.SavePosts(ctx, []aggregator.Post{post(oauth.PlatformTikTok, "1", time.Hour, 50)}))

	all, err := s.ListPosts(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2, "same ID on two platforms are distinct posts")

	tiktok, err := s.ListPosts(ctx, oauth.PlatformTikTok, 0)
	require.NoError(t, err)
	require.Len(t, tiktok, 1)
	assert.Equal(t, int64(50), tiktok[0].Likes, "re-saving replaces the cached counts")
}

func TestListPosts_NewestFirstWithLimit(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePosts(ctx, []aggregator.Post{
		post(oauth.PlatformYouTube, "old", 72*time.Hour, 0),
		post(oauth.PlatformYouTube, "new", time.Hour, 0),
		post(oauth.PlatformYouTube, "mid", 24*time.Hour, 0),
	}))

	posts, err := s.ListPosts(ctx, oauth.PlatformYouTube, 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "new", posts[0].ID)
	assert.Equal(t, "mid", posts[1].ID)
	assert.True(t, posts[0].Date.Equal(base.Add(-time.Hour)))
	assert.Equal(t, oauth.PlatformYouTube, posts[0].Platform)
}

func TestSavePosts_SkipsEmptyInput(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePosts(ctx, nil))
	require.NoError(t, s.SavePosts(ctx, []aggregator.Post{{Platform: oauth.PlatformTikTok}}))

	posts, err := s.ListPosts(ctx, "", 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.NotNil(t, posts)
}

func TestDeletePlatform(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	require.NoError(t, s.SavePosts(ctx, []aggregator.Post{
		post(oauth.PlatformFacebook, "a", 0, 0),
		post(oauth.PlatformFacebook, "b", 0, 0),
		post(oauth.PlatformTikTok, "c", 0, 0),
	}))

	n, err := s.DeletePlatform(ctx, oauth.PlatformFacebook)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rest, err := s.ListPosts(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "c", rest[0].ID)
}

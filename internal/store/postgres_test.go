package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/arihantjainmp/hackernews-clone/backend/internal/apperr"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/models"
	"github.com/arihantjainmp/hackernews-clone/backend/internal/testutil/pgtest"
)

func seedPost(t *testing.T, db *gorm.DB, points int) (models.User, models.Post) {
	t.Helper()
	user := models.User{Username: fmt.Sprintf("user%d", time.Now().UnixNano()), Password: "x"}
	user.Email = user.Username + "@example.com"
	require.NoError(t, db.Create(&user).Error)
	post := models.Post{Title: "hello", AuthorID: user.ID, Points: points}
	require.NoError(t, db.Create(&post).Error)
	return user, post
}

func TestPostgresIntegration(t *testing.T) {
	db := pgtest.New(t)
	s := NewPostgres(db)
	ctx := context.Background()

	t.Run("consume active once", func(t *testing.T) {
		now := time.Now().UTC()
		sess := &models.RefreshSession{UserID: 1, Token: "tok-once", ExpiresAt: now.Add(time.Hour)}
		require.NoError(t, s.CreateSession(ctx, sess))

		got, err := s.ConsumeActive(ctx, "tok-once", now)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.Equal(t, 1, got.UserID)
		assert.True(t, got.Consumed)

		_, err = s.ConsumeActive(ctx, "tok-once", now)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("consume active rejects expired", func(t *testing.T) {
		now := time.Now().UTC()
		sess := &models.RefreshSession{UserID: 1, Token: "tok-old", ExpiresAt: now.Add(-time.Minute)}
		require.NoError(t, s.CreateSession(ctx, sess))

		_, err := s.ConsumeActive(ctx, "tok-old", now)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))

		got, err := s.Consume(ctx, "tok-old", now)
		require.NoError(t, err)
		assert.True(t, got.Consumed)
	})

	t.Run("concurrent consume has one winner", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, s.CreateSession(ctx, &models.RefreshSession{UserID: 2, Token: "tok-race", ExpiresAt: now.Add(time.Hour)}))

		results := make([]error, 16)
		var g errgroup.Group
		for i := range results {
			i := i
			g.Go(func() error {
				_, results[i] = s.ConsumeActive(ctx, "tok-race", now)
				return nil
			})
		}
		require.NoError(t, g.Wait())

		wins := 0
		for _, err := range results {
			if err == nil {
				wins++
				continue
			}
			assert.True(t, apperr.Is(err, apperr.KindNotFound), "unexpected error %v", err)
		}
		assert.Equal(t, 1, wins)
	})

	t.Run("delete expired", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, s.CreateSession(ctx, &models.RefreshSession{UserID: 3, Token: "tok-prune", ExpiresAt: now.Add(-48 * time.Hour)}))

		n, err := s.DeleteExpired(ctx, now.Add(-24*time.Hour))
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)
	})

	t.Run("vote ledger", func(t *testing.T) {
		user, post := seedPost(t, db, 0)

		v, err := s.GetVote(ctx, user.ID, models.TargetPost, post.ID)
		require.NoError(t, err)
		assert.Nil(t, v)

		vote := &models.Vote{UserID: user.ID, TargetKind: models.TargetPost, TargetID: post.ID, Direction: 1}
		require.NoError(t, s.CreateVote(ctx, vote))

		dup := &models.Vote{UserID: user.ID, TargetKind: models.TargetPost, TargetID: post.ID, Direction: -1}
		assert.ErrorIs(t, s.CreateVote(ctx, dup), ErrDuplicate)

		ok, err := s.UpdateVoteDirection(ctx, user.ID, models.TargetPost, post.ID, -1, 1)
		require.NoError(t, err)
		assert.False(t, ok, "stale expected direction")

		ok, err = s.UpdateVoteDirection(ctx, user.ID, models.TargetPost, post.ID, 1, -1)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.DeleteVote(ctx, user.ID, models.TargetPost, post.ID, 1)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.DeleteVote(ctx, user.ID, models.TargetPost, post.ID, -1)
		require.NoError(t, err)
		assert.True(t, ok)

		n, err := s.CountVotes(ctx, models.TargetPost, post.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("concurrent increments", func(t *testing.T) {
		_, post := seedPost(t, db, 10)

		var g errgroup.Group
		for i := 0; i < 50; i++ {
			delta := 1
			if i%5 == 0 {
				delta = -2
			}
			g.Go(func() error {
				_, err := s.IncrementPoints(ctx, models.TargetPost, post.ID, delta)
				return err
			})
		}
		require.NoError(t, g.Wait())

		// 40 * 1 + 10 * -2
		got, err := s.IncrementPoints(ctx, models.TargetPost, post.ID, 0)
		require.NoError(t, err)
		assert.Equal(t, 10+40-20, got)
	})

	t.Run("increment missing target", func(t *testing.T) {
		_, err := s.IncrementPoints(ctx, models.TargetComment, 999999, 1)
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}

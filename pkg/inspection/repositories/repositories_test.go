package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/database"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect("sqlite", ":memory:", nil)
	require.NoError(t, err)
	return db
}

func createUser(t *testing.T, repo repositories.UserRepository, username string) *models.User {
	t.Helper()
	u := &models.User{DisplayName: username, Username: username, PasswordHash: "hash"}
	require.NoError(t, repo.Create(context.Background(), u))
	return u
}

func TestDetectionRepository_ListNewestFirstAndOwnerScoped(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	users := repositories.NewUserRepository(db)
	repo := repositories.NewDetectionRepository(db)

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	base := time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(ctx, &models.Detection{OwnerUserID: alice.ID, ImageReference: "uploads/a1.png", Verdict: models.VerdictPassed, Score: 90, RecordedAt: base}))
	require.NoError(t, repo.Create(ctx, &models.Detection{OwnerUserID: alice.ID, ImageReference: "uploads/a2.png", Verdict: models.VerdictDefective, Score: 80, RecordedAt: base.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &models.Detection{OwnerUserID: bob.ID, ImageReference: "uploads/b1.png", Verdict: models.VerdictDefective, Score: 70, RecordedAt: base.Add(2 * time.Hour)}))

	list, err := repo.ListByOwner(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "uploads/a2.png", list[0].ImageReference)
	assert.Equal(t, "uploads/a1.png", list[1].ImageReference)
	assert.Equal(t, models.VerdictDefective, list[0].Verdict)

	empty, err := repo.ListByOwner(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDetectionRepository_DeleteOwned(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	users := repositories.NewUserRepository(db)
	repo := repositories.NewDetectionRepository(db)

	alice := createUser(t, users, "alice")
	bob := createUser(t, users, "bob")

	d := &models.Detection{OwnerUserID: alice.ID, ImageReference: "uploads/a.png", Verdict: models.VerdictPassed, Score: 99, RecordedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, d))

	_, err := repo.DeleteOwned(ctx, bob.ID, d.ID)
	assert.ErrorIs(t, err, repositories.ErrNotOwned)

	list, err := repo.ListByOwner(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1, "foreign delete must not touch the row")

	deleted, err := repo.DeleteOwned(ctx, alice.ID, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "uploads/a.png", deleted.ImageReference)

	_, err = repo.DeleteOwned(ctx, alice.ID, d.ID)
	assert.ErrorIs(t, err, repositories.ErrNotOwned)
}

func TestDetectionRepository_StatsAndReferences(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	users := repositories.NewUserRepository(db)
	repo := repositories.NewDetectionRepository(db)

	alice := createUser(t, users, "alice")

	stats, err := repo.Stats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DetectionStats{}, stats)

	for i, v := range []models.Verdict{models.VerdictDefective, models.VerdictDefective, models.VerdictPassed} {
		require.NoError(t, repo.Create(ctx, &models.Detection{
			OwnerUserID:    alice.ID,
			ImageReference: "uploads/shared.png",
			Verdict:        v,
			Score:          float64(60 + i),
			RecordedAt:     time.Now(),
		}))
	}

	stats, err = repo.Stats(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DetectionStats{Total: 3, Defective: 2, Passed: 1}, stats)

	refs, err := repo.ReferencedImages(ctx)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
	assert.Contains(t, refs, "uploads/shared.png")

	n, err := repo.CountByImage(ctx, alice.ID, "uploads/shared.png")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = repo.CountByImage(ctx, alice.ID+1, "uploads/shared.png")
	require.NoError(t, err)
	assert.Zero(t, n, "other owners' records do not count")

	n, err = repo.CountByImage(ctx, alice.ID, "uploads/other.png")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUserRepository_Find(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := repositories.NewUserRepository(db)

	u := createUser(t, repo, "operator")

	got, err := repo.FindByUsername(ctx, "operator")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, u.ID, got.ID)

	got, err = repo.FindByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "operator", got.Username)

	missing, err := repo.FindByUsername(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Create(ctx, &models.User{DisplayName: "x", Username: "operator", PasswordHash: "h"})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

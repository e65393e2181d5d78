package database_test

import (
	"testing"

	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/database"
	"github.com/developer-overheid-nl/don-defect-register/pkg/inspection/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestConnect_SQLiteMigratesSchema(t *testing.T) {
	db, err := database.Connect("sqlite", ":memory:", nil)
	require.NoError(t, err)

	assert.True(t, db.Migrator().HasTable("user"))
	assert.True(t, db.Migrator().HasTable("detection"))
	assert.True(t, db.Migrator().HasIndex(&models.Detection{}, "idx_detection_owner_recorded"))
}

func TestConnect_TranslatesDuplicateKey(t *testing.T) {
	db, err := database.Connect("sqlite", ":memory:", nil)
	require.NoError(t, err)

	require.NoError(t, db.Create(&models.User{DisplayName: "A", Username: "op", PasswordHash: "x"}).Error)
	err = db.Create(&models.User{DisplayName: "B", Username: "op", PasswordHash: "y"}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestConnect_ForeignKeysEnforced(t *testing.T) {
	db, err := database.Connect("sqlite", ":memory:", nil)
	require.NoError(t, err)

	err = db.Create(&models.Detection{
		OwnerUserID:    42,
		ImageReference: "uploads/x.png",
		Verdict:        models.VerdictPassed,
		Score:          90,
	}).Error
	assert.Error(t, err)
}

func TestConnect_UnknownDriver(t *testing.T) {
	_, err := database.Connect("oracle", "", nil)
	assert.Error(t, err)
}

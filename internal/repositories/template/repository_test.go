package template_test

import (
	"context"
	"net/http"
	"os"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/internal/repositories/template"
	"github.com/Ramsey-B/fern/pkg/chart"
	"github.com/Ramsey-B/fern/pkg/database"
	fernerrors "github.com/Ramsey-B/fern/pkg/errors"
	"github.com/Ramsey-B/fern/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestDB(t *testing.T) database.DB {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("DB_HOST") == "" {
		t.Skip("Skipping integration test: DB_HOST is not set")
	}

	cfg := database.Config{
		Host:     os.Getenv("DB_HOST"),
		Port:     envOr("DB_PORT", "5432"),
		User:     envOr("DB_USER_NAME", "user"),
		Password: envOr("DB_PASSWORD", "password"),
		Name:     envOr("DB_NAME", "fern"),
		SSLMode:  "disable",
	}

	logger := getTestLogger()
	db, err := database.Open(context.Background(), cfg, logger)
	require.NoError(t, err, "Failed to connect to test database")
	t.Cleanup(func() { _ = db.Close() })

	migrations := database.NewMigrationService(logger, &database.MigrationConfig{MigrationFolderPath: "../../../db/pg"})
	require.NoError(t, migrations.MigratePostgres(db.DB.DB, cfg.Name))

	return db
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestTemplateRepository_CRUD(t *testing.T) {
	db := getTestDB(t)
	repo := template.NewRepository(db, getTestLogger())
	ctx := context.Background()
	shop := "test-" + uuid.NewString()[:8]
	shops := []string{shop}

	created, err := repo.Create(ctx, &models.Template{
		Shop:   shop,
		Name:   "Shirts",
		Active: true,
		ChartData: map[string]any{
			"isMeasurementTemplate": true,
			"measurementFields":     []any{map[string]any{"id": "chest", "name": "Chest", "enabled": true}},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	fetched, err := repo.GetByID(ctx, shops, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shirts", fetched.Name)
	assert.Equal(t, chart.KindCustom, fetched.Kind())

	exists, err := repo.ExistsByName(ctx, shops, "Shirts", "")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByName(ctx, shops, "Shirts", created.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = repo.Create(ctx, &models.Template{Shop: shop, Name: "Shirts"})
	require.Error(t, err)
	assert.True(t, fernerrors.IsValidationError(err))

	fetched.Description = "Updated"
	fetched.Active = false
	_, err = repo.Update(ctx, fetched)
	require.NoError(t, err)

	list, err := repo.List(ctx, shops)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Updated", list[0].Description)
	assert.False(t, list[0].Active)

	byIDs, err := repo.GetByIDs(ctx, []string{created.ID, uuid.NewString(), "not-a-uuid"})
	require.NoError(t, err)
	assert.Len(t, byIDs, 1)

	require.NoError(t, repo.Delete(ctx, shops, created.ID))

	err = repo.Delete(ctx, shops, created.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	_, err = repo.GetByID(ctx, shops, created.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestTemplateRepository_ShopIsolation(t *testing.T) {
	db := getTestDB(t)
	repo := template.NewRepository(db, getTestLogger())
	ctx := context.Background()
	shop := "test-" + uuid.NewString()[:8]

	created, err := repo.Create(ctx, &models.Template{Shop: shop, Name: "Pants", ChartData: map[string]any{}})
	require.NoError(t, err)

	_, err = repo.GetByID(ctx, []string{"other-shop"}, created.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	// same name in another shop is allowed
	_, err = repo.Create(ctx, &models.Template{Shop: shop + "-2", Name: "Pants", ChartData: map[string]any{}})
	require.NoError(t, err)
}

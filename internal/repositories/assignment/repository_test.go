package assignment_test

import (
	"context"
	"os"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/internal/repositories/assignment"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

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

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
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

func TestAssignmentRepository_ListDelete(t *testing.T) {
	db := getTestDB(t)
	repo := assignment.NewRepository(db, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	ctx := context.Background()
	shop := "test-" + uuid.NewString()[:8]
	shops := []string{shop, shop + ".myshopify.com"}

	first, err := repo.Create(ctx, &models.Assignment{Shop: shop, ProductID: "123", TemplateID: uuid.NewString()})
	require.NoError(t, err)
	second, err := repo.Create(ctx, &models.Assignment{Shop: shop + ".myshopify.com", ProductID: "123", TemplateID: uuid.NewString(), ProductTitle: "Shirt"})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Assignment{Shop: shop, ProductID: "456", TemplateID: first.TemplateID})
	require.NoError(t, err)

	list, err := repo.ListByProduct(ctx, shops, "123")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, "Shirt", list[1].ProductTitle)

	removed, err := repo.DeleteByTemplate(ctx, shops, first.TemplateID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	removed, err = repo.DeleteByIDs(ctx, []string{second.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	list, err = repo.ListByProduct(ctx, shops, "123")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAssignmentRepository_CreateSameTemplateKeepsRow(t *testing.T) {
	db := getTestDB(t)
	repo := assignment.NewRepository(db, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	ctx := context.Background()
	shop := "upsert-" + uuid.NewString()[:8]
	templateID := uuid.NewString()

	first, err := repo.Create(ctx, &models.Assignment{Shop: shop, ProductID: "123", TemplateID: templateID, ProductTitle: "Kurta"})
	require.NoError(t, err)
	second, err := repo.Create(ctx, &models.Assignment{Shop: shop, ProductID: "123", TemplateID: templateID, ProductTitle: "Linen Kurta"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	list, err := repo.ListByProduct(ctx, []string{shop}, "123")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Linen Kurta", list[0].ProductTitle)
}

func TestAssignmentRepository_LockProductRequiresTx(t *testing.T) {
	db := getTestDB(t)
	repo := assignment.NewRepository(db, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	ctx := context.Background()

	assert.Error(t, repo.LockProduct(ctx, "acme", "123"))

	err := db.WithinTx(ctx, func(ctx context.Context) error {
		return repo.LockProduct(ctx, "acme", "123")
	})
	assert.NoError(t, err)
}

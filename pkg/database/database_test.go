package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawJSON(t *testing.T) {
	var r RawJSON

	require.NoError(t, r.Scan([]byte(`{"a":1}`)))
	assert.Equal(t, `{"a":1}`, string(r))

	require.NoError(t, r.Scan(`not json`))
	assert.Equal(t, `not json`, string(r))

	require.NoError(t, r.Scan(nil))
	value, err := r.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", value)

	assert.Error(t, r.Scan(42))
}

func TestNewRawJSON(t *testing.T) {
	r, err := NewRawJSON(map[string]any{"isMeasurementTemplate": true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"isMeasurementTemplate":true}`, string(r))

	r, err = NewRawJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(r))
}

func TestLatestVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"000001_templates.up.sql",
		"000001_templates.down.sql",
		"000002_assignments.up.sql",
		"000002_assignments.down.sql",
		"README.md",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600))
	}

	latest, err := LatestVersion(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, latest)

	_, err = LatestVersion(t.TempDir())
	assert.Error(t, err)
}

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "localhost", Port: "5432", User: "fern", Password: "secret", Name: "fern", SSLMode: "disable"}

	assert.Equal(t, "host=localhost port=5432 user=fern password=secret dbname=fern sslmode=disable", cfg.DSN())
}

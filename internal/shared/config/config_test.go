package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENV", "")
	t.Setenv("PHOTOS_PER_PHOTOSHOOT", "")
	t.Setenv("SYNTHESIS_CONCURRENCY", "")

	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, 4, cfg.PhotosPerPhotoshoot)
	assert.Equal(t, 1, cfg.SynthesisConcurrency)
	assert.Equal(t, 5*time.Minute, cfg.VerificationCodeTTL)
	require.Len(t, cfg.Packages, 4)
	assert.Equal(t, 3, cfg.Packages[0].Photoshoots)
}

func TestLoadPackageOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PACKAGE_2_NAME", "Team")
	t.Setenv("PACKAGE_2_PHOTOSHOOTS", "12")
	t.Setenv("PACKAGE_2_PRICE", "999")

	cfg := Load()

	assert.Equal(t, PackageConfig{Name: "Team", Photoshoots: 12, PriceRub: 999}, cfg.Packages[1])
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	// Setenv registers restoration; godotenv skips keys that exist even when empty.
	t.Setenv("IMAGE_MODEL", "placeholder")
	require.NoError(t, os.Unsetenv("IMAGE_MODEL"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("IMAGE_MODEL=test/image-model\n"), 0o644))

	cfg := Load()

	assert.Equal(t, "test/image-model", cfg.ImageModel)
}

func TestInvalidIntFallsBack(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MAX_SAVED_STYLES", "many")

	cfg := Load()

	assert.Equal(t, 4, cfg.MaxSavedStyles)
}

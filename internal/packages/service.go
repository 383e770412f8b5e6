package packages

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"photoshoot-backend/internal/shared/config"
	"photoshoot-backend/internal/shared/telemetry"
)

type Service struct {
	Repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Seed stores the configured packages that do not exist yet. Existing rows
// are matched by name and left unchanged.
func (s *Service) Seed(ctx context.Context, cfg []config.PackageConfig) error {
	if s == nil || s.Repo == nil {
		return errors.New("packages service not configured")
	}
	pkgs := make([]Package, 0, len(cfg))
	for _, c := range cfg {
		name := strings.TrimSpace(c.Name)
		if name == "" || c.Photoshoots <= 0 || c.PriceRub <= 0 {
			telemetry.Warn("packages.seed_skipped", map[string]any{"name": c.Name})
			continue
		}
		pkgs = append(pkgs, Package{
			ID:               uuid.NewString(),
			Name:             name,
			PhotoshootsCount: c.Photoshoots,
			PriceRub:         float64(c.PriceRub),
			IsActive:         true,
		})
	}
	added, err := s.Repo.InsertMissing(ctx, pkgs)
	if err != nil {
		return err
	}
	telemetry.Info("packages.seeded", map[string]any{"configured": len(pkgs), "added": added})
	return nil
}

func (s *Service) List(ctx context.Context) ([]Package, error) {
	return s.Repo.ListActive(ctx)
}

func (s *Service) Get(ctx context.Context, packageID string) (Package, error) {
	if strings.TrimSpace(packageID) == "" {
		return Package{}, ErrNotFound
	}
	return s.Repo.GetActive(ctx, packageID)
}

package presets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidInput = errors.New("invalid style preset")

type Service struct {
	Repo Repo
	Max  int
}

func NewService(repo Repo, max int) *Service {
	if max <= 0 {
		max = 4
	}
	return &Service{Repo: repo, Max: max}
}

func (s *Service) Create(ctx context.Context, userID, name string, styleData json.RawMessage) (Preset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Preset{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	var obj map[string]any
	if err := json.Unmarshal(styleData, &obj); err != nil || obj == nil {
		return Preset{}, fmt.Errorf("%w: style_data must be a JSON object", ErrInvalidInput)
	}
	p := Preset{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		StyleData: styleData,
		IsActive:  true,
	}
	if err := s.Repo.Create(ctx, p, s.Max); err != nil {
		return Preset{}, err
	}
	return s.Repo.GetActive(ctx, userID, p.ID)
}

func (s *Service) List(ctx context.Context, userID string) ([]Preset, error) {
	return s.Repo.ListActive(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, presetID string) error {
	return s.Repo.Deactivate(ctx, userID, presetID)
}

// styleKeys are checked in order when turning style_data into a style.
var styleKeys = []string{"prompt", "custom_prompt", "style", "style_name"}

// ResolveStyle returns the style text a preset stands for, falling back to
// the preset name.
func (s *Service) ResolveStyle(ctx context.Context, userID, presetID string) (string, error) {
	p, err := s.Repo.GetActive(ctx, userID, presetID)
	if err != nil {
		return "", err
	}
	var data map[string]any
	if err := json.Unmarshal(p.StyleData, &data); err == nil {
		for _, key := range styleKeys {
			if v, ok := data[key].(string); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), nil
			}
		}
	}
	return p.Name, nil
}

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"nutridoc/internal/config"
	"nutridoc/internal/storage"
)

const (
	keyLastFullSync        = "catalog.last_full_sync"
	keyLastIncrementalSync = "catalog.last_incremental_sync"
	keyLastGroupsSync      = "catalog.last_food_groups_sync"

	groupsRefreshInterval = 30 * 24 * time.Hour
)

// SyncService mirrors the reference food database into sqlite.
type SyncService struct {
	db     *storage.DB
	client *Client
	cfg    config.Config
	log    *zap.Logger
}

func NewSyncService(db *storage.DB, cfg config.Config, log *zap.Logger) *SyncService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncService{db: db, client: NewClient(cfg), cfg: cfg, log: log}
}

func (s *SyncService) InitialSync(ctx context.Context) (int, error) {
	foods, err := s.client.GetFoodsScrollAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch foods: %w", err)
	}
	if err := s.db.UpsertFoods(foods); err != nil {
		return 0, fmt.Errorf("store foods: %w", err)
	}
	_ = s.db.SetMetadata(keyLastFullSync, time.Now().UTC().Format(time.RFC3339))
	s.log.Info("catalog full sync", zap.Int("foods", len(foods)))
	if err := s.refreshGroupsIfNeeded(ctx, true); err != nil {
		return 0, err
	}
	return len(foods), nil
}

func (s *SyncService) IncrementalSync(ctx context.Context) (int, error) {
	foods, err := s.client.GetFoodsUpdatedSince(ctx, s.cfg.FoodAPILookbackHours)
	if err != nil {
		return 0, fmt.Errorf("fetch updated foods: %w", err)
	}
	if len(foods) > 0 {
		if err := s.db.UpsertFoods(foods); err != nil {
			return 0, fmt.Errorf("store foods: %w", err)
		}
	}
	_ = s.db.SetMetadata(keyLastIncrementalSync, time.Now().UTC().Format(time.RFC3339))
	s.log.Info("catalog incremental sync", zap.Int("foods", len(foods)), zap.Int("lookback_hours", s.cfg.FoodAPILookbackHours))
	if err := s.refreshGroupsIfNeeded(ctx, false); err != nil {
		return 0, err
	}
	return len(foods), nil
}

// refreshGroupsIfNeeded writes the food group tree to the output dir at most
// once per refresh interval unless forced.
func (s *SyncService) refreshGroupsIfNeeded(ctx context.Context, force bool) error {
	last, err := s.db.GetMetadata(keyLastGroupsSync)
	if err != nil {
		return err
	}

	if !force && last != nil {
		if parsed, err := time.Parse(time.RFC3339, *last); err == nil {
			if time.Since(parsed) < groupsRefreshInterval {
				return nil
			}
		}
	}

	tree, err := s.client.GetFoodGroups(ctx)
	if err != nil {
		return fmt.Errorf("fetch food groups: %w", err)
	}
	blob, _ := json.MarshalIndent(tree, "", "  ")
	treePath := filepath.Join(s.cfg.OutputDir, "food-groups.json")
	if err := os.MkdirAll(filepath.Dir(treePath), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(treePath, blob, 0o644); err != nil {
		return err
	}
	return s.db.SetMetadata(keyLastGroupsSync, time.Now().UTC().Format(time.RFC3339))
}

// LoadMatcher builds a matcher over the foods stored in db.
func LoadMatcher(db *storage.DB, cfg config.Config) (*Matcher, error) {
	foods, err := db.ListFoods()
	if err != nil {
		return nil, fmt.Errorf("list foods: %w", err)
	}
	return NewMatcher(cfg, foods), nil
}

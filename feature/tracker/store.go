package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/simrailtools/backend-sub003/core/database"
	"github.com/simrailtools/backend-sub003/feature/tracker/models"

	"gorm.io/gorm"
)

// Store is the persistence collaborator of the collector. Every write call
// runs in its own transaction so the task scope can commit or cancel units
// independently.
type Store interface {
	ActiveServers(ctx context.Context) ([]models.Server, error)
	ActiveJourneys(ctx context.Context) ([]models.Journey, error)
	ActiveDispatchPosts(ctx context.Context) ([]models.DispatchPost, error)

	SaveServer(ctx context.Context, m models.Server) error
	SaveJourney(ctx context.Context, m models.Journey) error
	SaveDispatchPost(ctx context.Context, m models.DispatchPost) error

	DeactivateServer(ctx context.Context, id string) error
	DeactivateJourney(ctx context.Context, id string, lastSeen time.Time) error
	DeactivateDispatchPost(ctx context.Context, id string) error
}

// GormStore implements Store and the read-side view queries over MySQL.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps the connected database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the tracked entity tables.
func (s *GormStore) Migrate() error {
	if err := s.db.AutoMigrate(&models.Server{}, &models.Journey{}, &models.DispatchPost{}); err != nil {
		return fmt.Errorf("failed to migrate tracker tables: %w", err)
	}
	return nil
}

// VerifySchema checks after migration that every tracked entity table carries
// the columns the models expect. Drift here means a migration was skipped or
// the schema was edited by hand.
func (s *GormStore) VerifySchema() error {
	expected := map[string][]string{
		"servers":        {"id", "foreign_id", "code", "name", "region", "online", "utc_offset", "scenery_id", "active"},
		"journeys":       {"id", "run_id", "server_id", "train_number", "category", "cancelled", "first_seen", "last_seen", "continues_as", "active"},
		"dispatch_posts": {"id", "foreign_id", "server_id", "name", "latitude", "longitude", "difficulty", "dispatchers", "active"},
	}

	for table, wanted := range expected {
		columns, err := database.GetTableColumns(s.db, table)
		if err != nil {
			return err
		}
		present := make(map[string]bool, len(columns))
		for _, col := range columns {
			present[col.Field] = true
		}
		for _, name := range wanted {
			if !present[name] {
				return fmt.Errorf("table %s is missing column %s", table, name)
			}
		}
	}
	return nil
}

// ActiveServers returns all servers still present upstream.
func (s *GormStore) ActiveServers(ctx context.Context) ([]models.Server, error) {
	var out []models.Server
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to load active servers: %w", err)
	}
	return out, nil
}

// ActiveJourneys returns all journeys still present upstream.
func (s *GormStore) ActiveJourneys(ctx context.Context) ([]models.Journey, error) {
	var out []models.Journey
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to load active journeys: %w", err)
	}
	return out, nil
}

// ActiveDispatchPosts returns all dispatch posts still present upstream.
func (s *GormStore) ActiveDispatchPosts(ctx context.Context) ([]models.DispatchPost, error) {
	var out []models.DispatchPost
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to load active dispatch posts: %w", err)
	}
	return out, nil
}

// SaveServer inserts or updates one server in its own transaction.
func (s *GormStore) SaveServer(ctx context.Context, m models.Server) error {
	return s.save(ctx, "server", &m)
}

// SaveJourney inserts or updates one journey in its own transaction.
func (s *GormStore) SaveJourney(ctx context.Context, m models.Journey) error {
	return s.save(ctx, "journey", &m)
}

// SaveDispatchPost inserts or updates one dispatch post in its own transaction.
func (s *GormStore) SaveDispatchPost(ctx context.Context, m models.DispatchPost) error {
	return s.save(ctx, "dispatch post", &m)
}

func (s *GormStore) save(ctx context.Context, kind string, m any) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Save(m).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", kind, err)
	}
	return nil
}

// DeactivateServer marks a vanished server inactive.
func (s *GormStore) DeactivateServer(ctx context.Context, id string) error {
	return s.deactivate(ctx, &models.Server{}, id, map[string]any{"active": false})
}

// DeactivateJourney marks an expired journey inactive and records when it
// was last observed.
func (s *GormStore) DeactivateJourney(ctx context.Context, id string, lastSeen time.Time) error {
	return s.deactivate(ctx, &models.Journey{}, id, map[string]any{"active": false, "last_seen": lastSeen})
}

// DeactivateDispatchPost marks a vanished dispatch post inactive.
func (s *GormStore) DeactivateDispatchPost(ctx context.Context, id string) error {
	return s.deactivate(ctx, &models.DispatchPost{}, id, map[string]any{"active": false})
}

func (s *GormStore) deactivate(ctx context.Context, model any, id string, updates map[string]any) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Model(model).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return fmt.Errorf("failed to deactivate %s: %w", id, err)
	}
	return nil
}

// ActiveServerViews returns the view projection of every active server.
func (s *GormStore) ActiveServerViews(ctx context.Context) ([]models.ServerView, error) {
	rows, err := s.ActiveServers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.ServerView, 0, len(rows))
	for _, m := range rows {
		out = append(out, models.NewServerView(m))
	}
	return out, nil
}

// ActiveJourneyViews returns the view projection of every active journey.
func (s *GormStore) ActiveJourneyViews(ctx context.Context) ([]models.JourneyView, error) {
	rows, err := s.ActiveJourneys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.JourneyView, 0, len(rows))
	for _, m := range rows {
		out = append(out, models.NewJourneyView(m))
	}
	return out, nil
}

// ActiveDispatchPostViews returns the view projection of every active post.
func (s *GormStore) ActiveDispatchPostViews(ctx context.Context) ([]models.DispatchPostView, error) {
	rows, err := s.ActiveDispatchPosts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.DispatchPostView, 0, len(rows))
	for _, m := range rows {
		out = append(out, models.NewDispatchPostView(m))
	}
	return out, nil
}

// ServerViewByID returns one active server view, or nil when absent.
func (s *GormStore) ServerViewByID(ctx context.Context, id string) (*models.ServerView, error) {
	var m models.Server
	if err := s.byID(ctx, &m, id); err != nil {
		return nil, err
	}
	if m.ID == "" {
		return nil, nil
	}
	v := models.NewServerView(m)
	return &v, nil
}

// JourneyViewByID returns one active journey view, or nil when absent.
func (s *GormStore) JourneyViewByID(ctx context.Context, id string) (*models.JourneyView, error) {
	var m models.Journey
	if err := s.byID(ctx, &m, id); err != nil {
		return nil, err
	}
	if m.ID == "" {
		return nil, nil
	}
	v := models.NewJourneyView(m)
	return &v, nil
}

// DispatchPostViewByID returns one active dispatch post view, or nil when absent.
func (s *GormStore) DispatchPostViewByID(ctx context.Context, id string) (*models.DispatchPostView, error) {
	var m models.DispatchPost
	if err := s.byID(ctx, &m, id); err != nil {
		return nil, err
	}
	if m.ID == "" {
		return nil, nil
	}
	v := models.NewDispatchPostView(m)
	return &v, nil
}

func (s *GormStore) byID(ctx context.Context, dest any, id string) error {
	err := s.db.WithContext(ctx).Where("id = ? AND active = ?", id, true).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load entity %s: %w", id, err)
	}
	return nil
}

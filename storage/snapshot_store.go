package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"zeitprognose/models"
	"zeitprognose/regressor"
)

// ModelSnapshot is one trained model version, kept for audit and rollback.
type ModelSnapshot struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	ModelKey string `gorm:"column:model_key;not null;index:idx_model_snapshot,unique,priority:1" json:"model_key"`
	Version  int    `gorm:"column:version;not null;index:idx_model_snapshot,unique,priority:2" json:"version"`
	Active   bool   `gorm:"column:active;not null;default:false;index" json:"active"`

	BundleID    string         `gorm:"column:bundle_id;not null" json:"bundle_id"`
	Examples    int            `gorm:"column:examples;not null" json:"examples"`
	ParamsJSON  datatypes.JSON `gorm:"column:params_json" json:"params_json"`
	MetricsJSON datatypes.JSON `gorm:"column:metrics_json" json:"metrics_json"`
	BundleJSON  datatypes.JSON `gorm:"column:bundle_json;not null" json:"-"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (ModelSnapshot) TableName() string { return "model_snapshot" }

func (s *ModelSnapshot) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Bundle decodes the stored model.
func (s *ModelSnapshot) Bundle() (regressor.Bundle, error) {
	var b regressor.Bundle
	if err := json.Unmarshal(s.BundleJSON, &b); err != nil {
		return b, fmt.Errorf("snapshot %s v%d: %v: %w", s.ModelKey, s.Version, err, models.ErrModelLoad)
	}
	return b, nil
}

// SnapshotStore versions model bundles in a SQL database through gorm.
type SnapshotStore struct {
	db *gorm.DB
}

// OpenSnapshotStore connects with driver "sqlite" or "postgres" and migrates
// the snapshot table.
func OpenSnapshotStore(driver, dsn string) (*SnapshotStore, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("snapshot: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: open: %w", err)
	}
	if err := db.AutoMigrate(&ModelSnapshot{}); err != nil {
		return nil, fmt.Errorf("snapshot: migrate: %w", err)
	}
	return &SnapshotStore{db: db}, nil
}

// Save stores b as the next version under key and makes it the active one.
func (s *SnapshotStore) Save(ctx context.Context, key string, b regressor.Bundle) (*ModelSnapshot, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, errors.New("snapshot: empty model key")
	}

	bundleJSON, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode bundle: %w", err)
	}
	paramsJSON, _ := json.Marshal(b.Params)
	metricsJSON, _ := json.Marshal(b.Metrics)

	row := &ModelSnapshot{
		ModelKey:    key,
		Active:      true,
		BundleID:    b.ID,
		Examples:    b.Examples,
		ParamsJSON:  datatypes.JSON(paramsJSON),
		MetricsJSON: datatypes.JSON(metricsJSON),
		BundleJSON:  datatypes.JSON(bundleJSON),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest int
		if err := tx.Model(&ModelSnapshot{}).
			Where("model_key = ?", key).
			Select("COALESCE(MAX(version), 0)").
			Scan(&latest).Error; err != nil {
			return err
		}
		row.Version = latest + 1

		if err := tx.Model(&ModelSnapshot{}).
			Where("model_key = ? AND active = ?", key, true).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Create(row).Error
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: save %s: %w", key, err)
	}
	return row, nil
}

// Active returns the active snapshot for key, falling back to the latest
// version. It returns (nil, nil) when nothing is stored.
func (s *SnapshotStore) Active(ctx context.Context, key string) (*ModelSnapshot, error) {
	row := &ModelSnapshot{}
	err := s.db.WithContext(ctx).
		Where("model_key = ?", strings.TrimSpace(key)).
		Order("active DESC, version DESC").
		Limit(1).
		First(row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: load %s: %w", key, err)
	}
	return row, nil
}

// List returns up to limit versions for key, newest first.
func (s *SnapshotStore) List(ctx context.Context, key string, limit int) ([]*ModelSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	out := []*ModelSnapshot{}
	if err := s.db.WithContext(ctx).
		Where("model_key = ?", strings.TrimSpace(key)).
		Order("version DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("snapshot: list %s: %w", key, err)
	}
	return out, nil
}

// Activate marks version of key as the active model.
func (s *SnapshotStore) Activate(ctx context.Context, key string, version int) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row ModelSnapshot
		if err := tx.Where("model_key = ? AND version = ?", key, version).First(&row).Error; err != nil {
			return fmt.Errorf("snapshot: %s v%d: %w", key, version, err)
		}
		if err := tx.Model(&ModelSnapshot{}).
			Where("model_key = ?", key).
			Update("active", false).Error; err != nil {
			return err
		}
		return tx.Model(&ModelSnapshot{}).
			Where("id = ?", row.ID).
			Update("active", true).Error
	})
}

// Close releases the underlying connection pool.
func (s *SnapshotStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

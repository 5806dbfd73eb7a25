// Package catalog is the reference-data layer: the district soil survey
// kept in SQLite through bun, and the crop agronomy profiles loaded from
// JSON. Both ship embedded and can be replaced by files on disk.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/thoufik1111/AgroNITY/internal/model/entities"
)

var (
	ErrDistrictNotFound = errors.New("catalog: district/soil combination not found")
	ErrCropNotFound     = errors.New("catalog: crop not found")
)

type Store struct {
	db  *bun.DB
	log *zap.SugaredLogger

	mu      sync.RWMutex
	crops   map[string]*entities.Crop // canonical lowercase name → profile
	aliases map[string]string         // lowercase alias → canonical name
}

func NewStore(db *bun.DB, log *zap.SugaredLogger) *Store {
	return &Store{
		db:      db,
		log:     log,
		crops:   make(map[string]*entities.Crop),
		aliases: make(map[string]string),
	}
}

// Init creates the district table if it is missing.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*entities.DistrictProfile)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("catalog: create district_profiles: %w", err)
	}
	return nil
}

// LookupDistrict finds the survey row for a district and soil type pair.
// Matching ignores case and surrounding whitespace, the way farmers type
// the names.
func (s *Store) LookupDistrict(ctx context.Context, district, soilType string) (*entities.DistrictProfile, error) {
	var row entities.DistrictProfile
	err := s.db.NewSelect().
		Model(&row).
		Where("lower(trim(district)) = lower(trim(?))", district).
		Where("lower(trim(soil_type)) = lower(trim(?))", soilType).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDistrictNotFound
		}
		return nil, fmt.Errorf("catalog: lookup district %q/%q: %w", district, soilType, err)
	}
	return &row, nil
}

// DistrictAny returns any survey row for the district regardless of soil
// type. Used for coordinates and weather normals.
func (s *Store) DistrictAny(ctx context.Context, district string) (*entities.DistrictProfile, error) {
	var row entities.DistrictProfile
	err := s.db.NewSelect().
		Model(&row).
		Where("lower(trim(district)) = lower(trim(?))", district).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDistrictNotFound
		}
		return nil, fmt.Errorf("catalog: lookup district %q: %w", district, err)
	}
	return &row, nil
}

// Districts lists the distinct district names in the survey.
func (s *Store) Districts(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.NewSelect().
		Model((*entities.DistrictProfile)(nil)).
		ColumnExpr("DISTINCT district").
		OrderExpr("district ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, fmt.Errorf("catalog: list districts: %w", err)
	}
	return names, nil
}

// MaxProductionRate is the highest production rate across the whole
// survey. Yield percentages are reported against this reference.
func (s *Store) MaxProductionRate(ctx context.Context) (float64, error) {
	var max sql.NullFloat64
	err := s.db.NewSelect().
		Model((*entities.DistrictProfile)(nil)).
		ColumnExpr("max(production_rate_tpy)").
		Scan(ctx, &max)
	if err != nil {
		return 0, fmt.Errorf("catalog: max production rate: %w", err)
	}
	if !max.Valid || max.Float64 <= 0 {
		return 0, errors.New("catalog: survey has no production rates")
	}
	return max.Float64, nil
}

// CropBaseline averages the production rate and mandi price over every
// district growing the crop.
func (s *Store) CropBaseline(ctx context.Context, crop string) (avgProductionTPY, avgPriceRsQtl float64, err error) {
	var prod, price sql.NullFloat64
	var n int
	err = s.db.NewSelect().
		Model((*entities.DistrictProfile)(nil)).
		ColumnExpr("avg(production_rate_tpy)").
		ColumnExpr("avg(mandi_price_rs_qtl)").
		ColumnExpr("count(*)").
		Where("lower(trim(major_crop)) = lower(trim(?))", crop).
		Scan(ctx, &prod, &price, &n)
	if err != nil {
		return 0, 0, fmt.Errorf("catalog: baseline for %q: %w", crop, err)
	}
	if n == 0 || !prod.Valid {
		return 0, 0, ErrCropNotFound
	}
	return prod.Float64, price.Float64, nil
}

// MandiPrice returns the surveyed modal price for a crop, preferring the
// row of the given district and falling back to the crop average.
func (s *Store) MandiPrice(ctx context.Context, crop, district string) (float64, error) {
	var price sql.NullFloat64
	err := s.db.NewSelect().
		Model((*entities.DistrictProfile)(nil)).
		ColumnExpr("mandi_price_rs_qtl").
		Where("lower(trim(major_crop)) = lower(trim(?))", crop).
		Where("lower(trim(district)) = lower(trim(?))", district).
		Limit(1).
		Scan(ctx, &price)
	if err == nil && price.Valid && price.Float64 > 0 {
		return price.Float64, nil
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("catalog: mandi price %q/%q: %w", crop, district, err)
	}
	_, avg, err := s.CropBaseline(ctx, crop)
	if err != nil {
		return 0, err
	}
	return avg, nil
}

// InsertDistricts bulk-inserts survey rows.
func (s *Store) InsertDistricts(ctx context.Context, rows []entities.DistrictProfile) error {
	if len(rows) == 0 {
		return nil
	}
	if _, err := s.db.NewInsert().Model(&rows).Exec(ctx); err != nil {
		return fmt.Errorf("catalog: insert districts: %w", err)
	}
	return nil
}

// ReplaceDistricts swaps the whole survey for the given rows in one
// transaction. Used by the catalog watcher on reload.
func (s *Store) ReplaceDistricts(ctx context.Context, rows []entities.DistrictProfile) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*entities.DistrictProfile)(nil)).
			Where("1 = 1").
			Exec(ctx); err != nil {
			return fmt.Errorf("catalog: clear districts: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("catalog: insert districts: %w", err)
		}
		return nil
	})
}

// SetCrops replaces the in-memory crop profiles and rebuilds the alias
// index used by the query parser.
func (s *Store) SetCrops(crops []entities.Crop) {
	byName := make(map[string]*entities.Crop, len(crops))
	aliases := make(map[string]string)
	for i := range crops {
		c := crops[i]
		key := strings.ToLower(strings.TrimSpace(c.Name))
		if key == "" {
			continue
		}
		byName[key] = &c
		aliases[key] = key
		for _, names := range c.Aliases {
			for _, a := range names {
				a = strings.ToLower(strings.TrimSpace(a))
				if a != "" {
					aliases[a] = key
				}
			}
		}
	}

	s.mu.Lock()
	s.crops = byName
	s.aliases = aliases
	s.mu.Unlock()

	if s.log != nil {
		s.log.Infow("crop catalog loaded", "crops", len(byName), "aliases", len(aliases))
	}
}

// Crop resolves a crop by canonical name or any locale alias.
func (s *Store) Crop(name string) (*entities.Crop, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, ErrCropNotFound
	}
	c, ok := s.crops[key]
	if !ok {
		return nil, ErrCropNotFound
	}
	return c, nil
}

// ResolveCrop maps any alias to the canonical crop name.
func (s *Store) ResolveCrop(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key, ok := s.aliases[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", false
	}
	return s.crops[key].Name, true
}

// Crops lists the canonical crop names.
func (s *Store) Crops() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.crops))
	for _, c := range s.crops {
		names = append(names, c.Name)
	}
	return names
}

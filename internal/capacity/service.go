// Package capacity computes per-city slot occupancy and gates admissions.
package capacity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/mutirao/castracao-backend/pkg/db"
	"github.com/mutirao/castracao-backend/pkg/logger"
)

// Bucket is the derived occupancy of one campaign city.
type Bucket struct {
	Key        string `json:"key"`
	Name       string `json:"name"`
	Limit      int    `json:"limit"`
	Occupied   int    `json:"occupied"`
	Available  int    `json:"available"`
	Waitlisted int    `json:"waitlisted"`
	SoldOut    bool   `json:"sold_out"`
}

type Summary struct {
	Cities      []Bucket  `json:"cities"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Admission is the routing advice for a new registration. Unmanaged cities are
// always admitted.
type Admission struct {
	Managed bool
	Admit   bool
	Bucket  *Bucket
}

type counter interface {
	CountOccupied(ctx context.Context, db *gorm.DB, variants []string) (int64, error)
	CountWaitlisted(ctx context.Context, db *gorm.DB, variants []string) (int64, error)
}

type ServiceParams struct {
	DB              *gorm.DB
	Catalog         *Catalog
	Repo            counter
	StrictAdmission bool
	Logger          *logger.Logger
	Now             func() time.Time
}

type Service struct {
	db      *gorm.DB
	catalog *Catalog
	repo    counter
	strict  bool
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("db required")
	}
	if params.Catalog == nil {
		return nil, errors.New("city catalog required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	repo := params.Repo
	if repo == nil {
		repo = NewRepository()
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		db:      params.DB,
		catalog: params.Catalog,
		repo:    repo,
		strict:  params.StrictAdmission,
		logg:    params.Logger,
		now:     now,
	}, nil
}

func (s *Service) Catalog() *Catalog { return s.catalog }

// CountSlots recomputes the bucket for a canonical city key.
func (s *Service) CountSlots(ctx context.Context, cityKey string) (Bucket, error) {
	city, ok := s.catalog.Get(cityKey)
	if !ok {
		return Bucket{}, ErrUnknownCity
	}
	return s.bucket(ctx, s.db, city)
}

// CheckAdmission reports whether a registration in cityKey should be active.
// The answer is advisory: nothing stops a concurrent registration between the
// count and the caller's insert. Registration uses AdmitTx instead.
func (s *Service) CheckAdmission(ctx context.Context, cityKey string) (Admission, error) {
	bucket, err := s.CountSlots(ctx, cityKey)
	if errors.Is(err, ErrUnknownCity) {
		return Admission{Admit: true}, nil
	}
	if err != nil {
		return Admission{}, err
	}
	return Admission{Managed: true, Admit: !bucket.SoldOut, Bucket: &bucket}, nil
}

// AdmitTx resolves the free-text city and counts inside tx. With strict
// admission a per-city advisory lock is held until tx ends, so the count and
// the caller's insert cannot interleave with another registration for the same city.
func (s *Service) AdmitTx(ctx context.Context, tx *gorm.DB, cityText string) (Admission, error) {
	city, ok := s.catalog.Resolve(cityText)
	if !ok {
		return Admission{Admit: true}, nil
	}
	return s.admitCityTx(ctx, tx, city)
}

// AdmitKeyTx is AdmitTx for an already resolved city key. Unknown keys are unmanaged.
func (s *Service) AdmitKeyTx(ctx context.Context, tx *gorm.DB, cityKey string) (Admission, error) {
	city, ok := s.catalog.Get(cityKey)
	if !ok {
		return Admission{Admit: true}, nil
	}
	return s.admitCityTx(ctx, tx, city)
}

func (s *Service) admitCityTx(ctx context.Context, tx *gorm.DB, city City) (Admission, error) {
	if s.strict {
		if err := dbpkg.AdvisoryXactLock(tx.WithContext(ctx), "capacity:"+city.Key); err != nil {
			return Admission{}, fmt.Errorf("lock city %s: %w", city.Key, err)
		}
	}
	bucket, err := s.bucket(ctx, tx, city)
	if err != nil {
		return Admission{}, err
	}
	if bucket.SoldOut {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"city_key": city.Key,
			"limit":    bucket.Limit,
			"occupied": bucket.Occupied,
		}), "city sold out")
	}
	return Admission{Managed: true, Admit: !bucket.SoldOut, Bucket: &bucket}, nil
}

// Summary returns every campaign city in catalog order.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	cities := s.catalog.Cities()
	out := Summary{Cities: make([]Bucket, 0, len(cities)), GeneratedAt: s.now()}
	for _, city := range cities {
		bucket, err := s.bucket(ctx, s.db, city)
		if err != nil {
			return Summary{}, err
		}
		out.Cities = append(out.Cities, bucket)
	}
	return out, nil
}

func (s *Service) bucket(ctx context.Context, db *gorm.DB, city City) (Bucket, error) {
	occupied, err := s.repo.CountOccupied(ctx, db, city.Variants)
	if err != nil {
		return Bucket{}, fmt.Errorf("count occupied %s: %w", city.Key, err)
	}
	waitlisted, err := s.repo.CountWaitlisted(ctx, db, city.Variants)
	if err != nil {
		return Bucket{}, fmt.Errorf("count waitlisted %s: %w", city.Key, err)
	}
	return newBucket(city, int(occupied), int(waitlisted)), nil
}

func newBucket(city City, occupied, waitlisted int) Bucket {
	available := city.Limit - occupied
	if available < 0 {
		available = 0
	}
	return Bucket{
		Key:        city.Key,
		Name:       city.Name,
		Limit:      city.Limit,
		Occupied:   occupied,
		Available:  available,
		Waitlisted: waitlisted,
		SoldOut:    available == 0,
	}
}

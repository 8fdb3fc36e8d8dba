package capacity

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/mutirao/castracao-backend/pkg/db/models"
	"github.com/mutirao/castracao-backend/pkg/enums"
)

// Repository counts registrations whose tutor city matches a set of spellings.
type Repository struct{}

func NewRepository() *Repository {
	return &Repository{}
}

func (r *Repository) CountOccupied(ctx context.Context, db *gorm.DB, variants []string) (int64, error) {
	return r.count(ctx, db, variants, enums.ActiveRegistrationStatuses)
}

func (r *Repository) CountWaitlisted(ctx context.Context, db *gorm.DB, variants []string) (int64, error) {
	return r.count(ctx, db, variants, []enums.RegistrationStatus{enums.RegistrationStatusWaitlisted})
}

func (r *Repository) count(ctx context.Context, db *gorm.DB, variants []string, statuses []enums.RegistrationStatus) (int64, error) {
	if len(variants) == 0 {
		return 0, nil
	}
	clauses := make([]string, 0, len(variants))
	args := make([]any, 0, len(variants))
	for _, variant := range variants {
		clauses = append(clauses, `t.city_normalized LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(variant)+"%")
	}

	var total int64
	err := db.WithContext(ctx).
		Model(&models.Registration{}).
		Joins("JOIN tutors t ON t.id = registrations.tutor_id").
		Where("registrations.status IN ?", statuses).
		Where("("+strings.Join(clauses, " OR ")+")", args...).
		Count(&total).Error
	return total, err
}

// escapeLike makes a spelling match literally inside a LIKE pattern.
func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(value)
}

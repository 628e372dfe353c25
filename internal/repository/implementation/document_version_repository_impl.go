package implementation

import (
	"context"
	"database/sql"
	"errors"

	"ai-casedraft-be/internal/entity"
	"ai-casedraft-be/internal/mapper"
	"ai-casedraft-be/internal/model"
	"ai-casedraft-be/internal/repository/contract"
	"ai-casedraft-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DocumentVersionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.DocumentVersionMapper
}

func NewDocumentVersionRepository(db *gorm.DB) contract.DocumentVersionRepository {
	return &DocumentVersionRepositoryImpl{
		db:     db,
		mapper: mapper.NewDocumentVersionMapper(),
	}
}

func (r *DocumentVersionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *DocumentVersionRepositoryImpl) Create(ctx context.Context, version *entity.DocumentVersion) error {
	if version.Id == uuid.Nil {
		version.Id = uuid.New()
	}
	m := r.mapper.ToModel(version)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*version = *r.mapper.ToEntity(m)
	return nil
}

func (r *DocumentVersionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DocumentVersion, error) {
	var m model.DocumentVersion
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *DocumentVersionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DocumentVersion, error) {
	var models []*model.DocumentVersion
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *DocumentVersionRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.DocumentVersion{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MaxVersionNumber is 0 when the session has no versions.
func (r *DocumentVersionRepositoryImpl) MaxVersionNumber(ctx context.Context, sessionId string) (int, error) {
	var max sql.NullInt64
	row := r.db.WithContext(ctx).
		Model(&model.DocumentVersion{}).
		Where("session_id = ?", sessionId).
		Select("MAX(version_number)").
		Row()
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return int(max.Int64), nil
}

package contract

import (
	"context"

	"ai-casedraft-be/internal/entity"
	"ai-casedraft-be/internal/repository/specification"
)

type DocumentVersionRepository interface {
	Create(ctx context.Context, version *entity.DocumentVersion) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.DocumentVersion, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.DocumentVersion, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
	MaxVersionNumber(ctx context.Context, sessionId string) (int, error)
}

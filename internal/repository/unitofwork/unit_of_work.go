package unitofwork

import (
	"context"

	"ai-casedraft-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	DocumentVersionRepository() contract.DocumentVersionRepository
}

package catalog

import (
	"context"

	"bibliobridge/internal/entity"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByISBN(ctx context.Context, isbn string) (*entity.Entry, error) {
	return s.repo.GetByISBN(ctx, entity.NormalizeISBN(isbn))
}

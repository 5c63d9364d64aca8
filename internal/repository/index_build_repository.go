package repository

import (
	"fmt"

	"gorm.io/gorm"

	"pdfchat/internal/model"
)

type IndexBuildRepository struct {
	db *gorm.DB
}

func NewIndexBuildRepository(db *gorm.DB) *IndexBuildRepository {
	return &IndexBuildRepository{db: db}
}

func (r *IndexBuildRepository) Create(build *model.IndexBuild) error {
	if err := r.db.Create(build).Error; err != nil {
		return fmt.Errorf("create index build failed: %w", err)
	}
	return nil
}

func (r *IndexBuildRepository) List(indexName string, limit int) ([]model.IndexBuild, error) {
	var list []model.IndexBuild
	if err := r.db.Where("index_name = ?", indexName).Order("id DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list index builds failed: %w", err)
	}
	return list, nil
}

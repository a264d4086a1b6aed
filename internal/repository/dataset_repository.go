package repository

import (
	"encoding/json"

	"gorm.io/gorm"

	"github.com/clinops/dashboard-gin/internal/model"
)

// DatasetRepository 数据集仓储接口
type DatasetRepository interface {
	Save(dataset *model.DatasetModel) error
	GetByCode(code string) (*model.DatasetModel, error)
	List() ([]*model.DatasetModel, error)
}

// datasetRepository 数据集仓储实现
type datasetRepository struct {
	db *gorm.DB
}

// NewDatasetRepository 创建数据集仓储
func NewDatasetRepository(db *gorm.DB) DatasetRepository {
	return &datasetRepository{db: db}
}

// Save 保存数据集
func (r *datasetRepository) Save(dataset *model.DatasetModel) error {
	return r.db.Save(dataset).Error
}

// GetByCode 根据代码查找数据集
func (r *datasetRepository) GetByCode(code string) (*model.DatasetModel, error) {
	var dataset model.DatasetModel
	if err := r.db.First(&dataset, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &dataset, nil
}

// List 列出全部数据集
func (r *datasetRepository) List() ([]*model.DatasetModel, error) {
	var datasets []*model.DatasetModel
	err := r.db.Order("code").Find(&datasets).Error
	return datasets, err
}

// DatasetCatalog 基于数据集仓储的字段目录,供校验器查询
type DatasetCatalog struct {
	repo DatasetRepository
}

// NewDatasetCatalog 创建字段目录
func NewDatasetCatalog(repo DatasetRepository) *DatasetCatalog {
	return &DatasetCatalog{repo: repo}
}

// Fields 返回数据集的字段名列表,数据集不存在时第二个返回值为 false
func (c *DatasetCatalog) Fields(dataset string) ([]string, bool) {
	dm, err := c.repo.GetByCode(dataset)
	if err != nil {
		return nil, false
	}
	var fields []string
	if err := json.Unmarshal(dm.Fields, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

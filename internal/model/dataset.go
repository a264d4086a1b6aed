package model

import (
	"errors"
	"time"
)

// DatasetModel 数据集登记,供校验器交叉检查组件的数据依赖
type DatasetModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Code      string    `gorm:"type:varchar(64);not null;uniqueIndex"` // 数据集代码, 如 dm/ae/lb
	Name      string    `gorm:"type:varchar(255)"`
	Fields    []byte    `gorm:"type:jsonb;not null"` // 字段名列表 (JSON 数组)
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (DatasetModel) TableName() string {
	return "datasets"
}

// Validate 验证数据集模型
func (dm *DatasetModel) Validate() error {
	if dm.ID == "" {
		return errors.New("dataset ID is required")
	}
	if dm.Code == "" {
		return errors.New("dataset code is required")
	}
	return nil
}

package model

import (
	"errors"
	"time"
)

// StudyModel 临床研究数据模型
type StudyModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Code      string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Sponsor   string    `gorm:"type:varchar(255)"`
	Phase     string    `gorm:"type:varchar(16)"` // I/II/III/IV
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName 指定表名
func (StudyModel) TableName() string {
	return "studies"
}

// Validate 验证研究模型
func (sm *StudyModel) Validate() error {
	if sm.ID == "" {
		return errors.New("study ID is required")
	}
	if sm.Code == "" {
		return errors.New("study code is required")
	}
	if sm.Name == "" {
		return errors.New("study name is required")
	}
	return nil
}

// StudyDashboardModel 研究仪表盘,引用一个模板
type StudyDashboardModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(64)"`
	StudyID    string    `gorm:"type:varchar(64);not null;index"`
	TemplateID string    `gorm:"type:varchar(64);not null;index"`
	Name       string    `gorm:"type:varchar(255);not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

// TableName 指定表名
func (StudyDashboardModel) TableName() string {
	return "study_dashboards"
}

// Validate 验证研究仪表盘模型
func (sd *StudyDashboardModel) Validate() error {
	if sd.ID == "" {
		return errors.New("dashboard ID is required")
	}
	if sd.StudyID == "" {
		return errors.New("study ID is required")
	}
	if sd.TemplateID == "" {
		return errors.New("template ID is required")
	}
	return nil
}

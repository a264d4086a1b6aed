package service

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/clinops/dashboard-gin/internal/metrics"
	"github.com/clinops/dashboard-gin/internal/model"
	"github.com/clinops/dashboard-gin/internal/repository"
	"github.com/clinops/dashboard-gin/internal/structure"
	"github.com/clinops/dashboard-gin/internal/utils"
	"github.com/clinops/dashboard-gin/internal/validation"
)

// exportFormatVersion 导出包格式版本
const exportFormatVersion = 1

// ExportManifest 导出包清单
type ExportManifest struct {
	FormatVersion int       `json:"format_version"`
	TemplateID    string    `json:"template_id"`
	Code          string    `json:"code"`
	Version       string    `json:"version"`
	SchemaVersion string    `json:"schema_version"`
	ExportedAt    time.Time `json:"exported_at"`
	ExportedBy    string    `json:"exported_by"`
}

// ExportService 模板导入导出服务
// 导出包是 tar.gz,包含 manifest.json/template.json/versions.json,
// 配置了加密密钥时整包用 AES-256-GCM 加密
type ExportService interface {
	Export(ctx context.Context, templateID string) (string, error)
	Import(ctx context.Context, data []byte) (*model.TemplateModel, error)
}

// exportService 模板导入导出服务实现
type exportService struct {
	templates     repository.TemplateRepository
	versions      repository.TemplateVersionRepository
	validator     *validation.Validator
	auditSvc      AuditLogService
	exportDir     string
	encryptionKey string
}

// NewExportService 创建模板导入导出服务
func NewExportService(
	templates repository.TemplateRepository,
	versions repository.TemplateVersionRepository,
	validator *validation.Validator,
	auditSvc AuditLogService,
	exportDir string,
	encryptionKey string,
) ExportService {
	return &exportService{
		templates:     templates,
		versions:      versions,
		validator:     validator,
		auditSvc:      auditSvc,
		exportDir:     exportDir,
		encryptionKey: encryptionKey,
	}
}

// Export 导出模板及其版本轨迹,返回导出包路径
func (s *exportService) Export(ctx context.Context, templateID string) (string, error) {
	tm, err := s.templates.GetByID(templateID)
	if err != nil {
		return "", fmt.Errorf("failed to get template: %w", err)
	}
	history, err := s.versions.ListByTemplate(templateID)
	if err != nil {
		return "", fmt.Errorf("failed to list template versions: %w", err)
	}

	manifest := &ExportManifest{
		FormatVersion: exportFormatVersion,
		TemplateID:    tm.ID,
		Code:          tm.Code,
		Version:       tm.Version(),
		SchemaVersion: tm.SchemaVersion,
		ExportedAt:    time.Now(),
		ExportedBy:    getUserIDFromContext(ctx),
	}

	archive, err := buildArchive(manifest, tm, history)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%s.tar.gz", tm.Code, tm.Version())
	if s.encryptionKey != "" {
		archive, err = utils.EncryptBytes(archive, s.encryptionKey)
		if err != nil {
			return "", fmt.Errorf("failed to encrypt export package: %w", err)
		}
		name += ".enc"
	}

	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(s.exportDir, name)
	if err := os.WriteFile(path, archive, 0o644); err != nil {
		return "", fmt.Errorf("failed to write export package: %w", err)
	}

	s.audit(ctx, "export", tm.ID, map[string]string{"path": path})
	return path, nil
}

// Import 从导出包导入模板
// 先解包并校验结构,ID 或代码已存在时拒绝,全部通过后才落库
func (s *exportService) Import(ctx context.Context, data []byte) (*model.TemplateModel, error) {
	if s.encryptionKey != "" {
		decrypted, err := utils.DecryptBytes(data, s.encryptionKey)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt import package: %w", err)
		}
		data = decrypted
	}

	manifest, tm, history, err := readArchive(data)
	if err != nil {
		return nil, err
	}
	if manifest.FormatVersion != exportFormatVersion {
		return nil, fmt.Errorf("unsupported export format version %d", manifest.FormatVersion)
	}

	doc, err := structure.Decode(tm.Structure)
	if err != nil {
		return nil, fmt.Errorf("import package carries an invalid structure: %w", err)
	}
	result := s.validator.ValidateStructure(doc)
	metrics.RecordValidation(result.IsValid)
	if !result.IsValid {
		return nil, &StructureInvalidError{Result: result}
	}

	if _, err := s.templates.GetByID(tm.ID); err == nil {
		return nil, fmt.Errorf("template %s already exists", tm.ID)
	}
	if _, err := s.templates.GetByCode(tm.Code); err == nil {
		return nil, fmt.Errorf("template code %s already exists", tm.Code)
	}

	// 导入的模板重新走生命周期,继承关系不跨环境携带
	now := time.Now()
	tm.Status = model.StatusDraft
	tm.ParentTemplateID = nil
	tm.InheritanceType = model.InheritanceNone
	tm.CreatedAt = now
	tm.UpdatedAt = now
	tm.CreatedBy = getUserIDFromContext(ctx)
	tm.UpdatedBy = tm.CreatedBy
	if err := tm.Validate(); err != nil {
		return nil, fmt.Errorf("import package carries an invalid template: %w", err)
	}

	if err := s.templates.Create(tm); err != nil {
		return nil, fmt.Errorf("failed to import template: %w", err)
	}
	for _, v := range history {
		if err := s.versions.Create(v); err != nil {
			return nil, fmt.Errorf("failed to import version history: %w", err)
		}
	}

	s.audit(ctx, "import", tm.ID, map[string]string{"code": tm.Code})
	return tm, nil
}

// buildArchive 打包 manifest/template/versions 为 tar.gz
func buildArchive(manifest *ExportManifest, tm *model.TemplateModel, history []*model.TemplateVersionModel) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	entries := []struct {
		name string
		data interface{}
	}{
		{"manifest.json", manifest},
		{"template.json", tm},
		{"versions.json", history},
	}
	for _, entry := range entries {
		payload, err := json.MarshalIndent(entry.data, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", entry.name, err)
		}
		header := &tar.Header{
			Name:    entry.name,
			Mode:    0o644,
			Size:    int64(len(payload)),
			ModTime: manifest.ExportedAt,
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, fmt.Errorf("failed to write tar header: %w", err)
		}
		if _, err := tw.Write(payload); err != nil {
			return nil, fmt.Errorf("failed to write tar entry: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readArchive 解包 tar.gz 并解析三个清单文件
func readArchive(data []byte) (*ExportManifest, *model.TemplateModel, []*model.TemplateVersionModel, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read export package: %w", err)
	}
	defer gz.Close()

	var (
		manifest ExportManifest
		tm       model.TemplateModel
		history  []*model.TemplateVersionModel
		seen     = map[string]bool{}
	)

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		payload, err := io.ReadAll(tr)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}

		switch header.Name {
		case "manifest.json":
			err = json.Unmarshal(payload, &manifest)
		case "template.json":
			err = json.Unmarshal(payload, &tm)
		case "versions.json":
			err = json.Unmarshal(payload, &history)
		default:
			continue
		}
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to parse %s: %w", header.Name, err)
		}
		seen[header.Name] = true
	}

	for _, name := range []string{"manifest.json", "template.json", "versions.json"} {
		if !seen[name] {
			return nil, nil, nil, fmt.Errorf("export package is missing %s", name)
		}
	}
	return &manifest, &tm, history, nil
}

// audit 记录审计日志,失败只影响日志不影响主流程
func (s *exportService) audit(ctx context.Context, action, resourceID string, details interface{}) {
	if s.auditSvc == nil {
		return
	}
	userID := getUserIDFromContext(ctx)
	if userID == "" {
		return
	}
	_ = s.auditSvc.RecordAction(ctx, userID, action, "template", resourceID, details)
}

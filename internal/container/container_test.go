package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinops/dashboard-gin/internal/config"
	"github.com/clinops/dashboard-gin/internal/database"
)

func TestNewContainerWithDB(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Export.Dir = t.TempDir()

	ctr, err := NewContainerWithDB(cfg, db)
	require.NoError(t, err)
	defer ctr.Close()

	assert.NotNil(t, ctr.TemplateService())
	assert.NotNil(t, ctr.MigrationService())
	assert.NotNil(t, ctr.ExportService())
	assert.NotNil(t, ctr.StudyService())
	assert.NotNil(t, ctr.AuditLogService())
	assert.NotNil(t, ctr.SchemaRegistry().Latest())

	// 未配置 Keycloak/OpenFGA 时为开放模式
	assert.Nil(t, ctr.KeycloakValidator())
	assert.Nil(t, ctr.OpenFGAClient())

	deps := ctr.RouterDeps()
	require.NotNil(t, deps)
	assert.NotNil(t, deps.Templates)
	assert.NotNil(t, deps.Studies)
}

func TestNewContainerWithDBLoadsRegistryFile(t *testing.T) {
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Schema.RegistryFile = "does-not-exist.yaml"

	_, err = NewContainerWithDB(cfg, db)
	assert.Error(t, err)
}

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTemplateValidate 测试模板模型验证
func TestTemplateValidate(t *testing.T) {
	parent := "tpl-parent"
	tests := []struct {
		name    string
		tm      TemplateModel
		wantErr bool
	}{
		{
			name: "valid without parent",
			tm: TemplateModel{
				ID: "tpl-1", Code: "safety", Name: "Safety Dashboard",
				InheritanceType: InheritanceNone, Structure: []byte(`{"menu":{"items":[]}}`),
			},
			wantErr: false,
		},
		{
			name: "valid with parent",
			tm: TemplateModel{
				ID: "tpl-2", Code: "safety-ext", Name: "Extended",
				ParentTemplateID: &parent, InheritanceType: InheritanceExtends,
				Structure: []byte(`{"menu":{"items":[]}}`),
			},
			wantErr: false,
		},
		{
			name:    "missing code",
			tm:      TemplateModel{ID: "tpl-3", Name: "X", InheritanceType: InheritanceNone, Structure: []byte(`{}`)},
			wantErr: true,
		},
		{
			name: "NONE with parent is inconsistent",
			tm: TemplateModel{
				ID: "tpl-4", Code: "x", Name: "X",
				ParentTemplateID: &parent, InheritanceType: InheritanceNone,
				Structure: []byte(`{}`),
			},
			wantErr: true,
		},
		{
			name: "EXTENDS without parent is inconsistent",
			tm: TemplateModel{
				ID: "tpl-5", Code: "y", Name: "Y",
				InheritanceType: InheritanceExtends, Structure: []byte(`{}`),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tm.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestStatusTransitions 测试状态机只允许向前流转
func TestStatusTransitions(t *testing.T) {
	assert.True(t, CanTransition(StatusDraft, StatusPublished))
	assert.True(t, CanTransition(StatusPublished, StatusDeprecated))
	assert.True(t, CanTransition(StatusDeprecated, StatusArchived))

	assert.False(t, CanTransition(StatusPublished, StatusDraft))
	assert.False(t, CanTransition(StatusDraft, StatusDeprecated))
	assert.False(t, CanTransition(StatusArchived, StatusPublished))
	assert.False(t, CanTransition(StatusArchived, StatusArchived))
}

// TestVersionString 测试语义化版本格式
func TestVersionString(t *testing.T) {
	tm := TemplateModel{VersionMajor: 2, VersionMinor: 1, VersionPatch: 3}
	assert.Equal(t, "2.1.3", tm.Version())
}

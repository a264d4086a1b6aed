package inheritance

import (
	"fmt"

	"github.com/clinops/dashboard-gin/internal/merge"
	"github.com/clinops/dashboard-gin/internal/model"
	"github.com/clinops/dashboard-gin/internal/structure"
)

// TemplateStore 解析器依赖的模板读取接口
type TemplateStore interface {
	GetByID(id string) (*model.TemplateModel, error)
}

// Resolver 继承解析器: 沿父链回溯并用合并器折叠出生效结构
type Resolver struct {
	store  TemplateStore
	merger *merge.Merger
}

// NewResolver 创建继承解析器
func NewResolver(store TemplateStore, merger *merge.Merger) *Resolver {
	return &Resolver{store: store, merger: merger}
}

// Chain 返回根在前的继承链
// 用访问集检测环,一旦重访立即失败,绝不依赖递归深度兜底
func (r *Resolver) Chain(id string) ([]*model.TemplateModel, error) {
	visited := make(map[string]bool)
	var chain []*model.TemplateModel

	cur := id
	for cur != "" {
		if visited[cur] {
			return nil, &CircularInheritanceError{TemplateID: cur, Chain: chainIDs(chain)}
		}
		visited[cur] = true

		tm, err := r.store.GetByID(cur)
		if err != nil {
			return nil, fmt.Errorf("failed to load template %q: %w", cur, err)
		}
		chain = append(chain, tm)

		if tm.ParentTemplateID == nil {
			break
		}
		cur = *tm.ParentTemplateID
	}

	// 反转为根在前
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

// ValidateInheritance 检查 child -> parent 的继承关系是否允许
func (r *Resolver) ValidateInheritance(childID, parentID string) error {
	if childID == parentID {
		return &InvalidInheritanceError{ChildID: childID, ParentID: parentID, Reason: "template cannot inherit from itself"}
	}

	parent, err := r.store.GetByID(parentID)
	if err != nil {
		return &InvalidInheritanceError{ChildID: childID, ParentID: parentID, Reason: "parent template not found"}
	}
	if parent.Status != model.StatusPublished {
		return &InvalidInheritanceError{ChildID: childID, ParentID: parentID, Reason: fmt.Sprintf("parent template is %s, only PUBLISHED templates can be inherited", parent.Status)}
	}

	// child 出现在 parent 自身的链上意味着建立关系后会成环
	chain, err := r.Chain(parentID)
	if err != nil {
		return err
	}
	for _, tm := range chain {
		if tm.ID == childID {
			return &InvalidInheritanceError{ChildID: childID, ParentID: parentID, Reason: "relationship would create a cycle"}
		}
	}
	return nil
}

// EffectiveStructure 解析模板的生效结构
// 没有父模板时原样返回自身结构; 否则从根开始按每级声明的继承方式折叠
func (r *Resolver) EffectiveStructure(id string) (*structure.Value, error) {
	chain, err := r.Chain(id)
	if err != nil {
		return nil, err
	}

	docs := make([]*structure.Value, len(chain))
	for i, tm := range chain {
		doc, err := structure.Decode(tm.Structure)
		if err != nil {
			return nil, fmt.Errorf("failed to decode structure of template %q: %w", tm.ID, err)
		}
		docs[i] = doc
	}

	acc := docs[0]
	for i := 1; i < len(chain); i++ {
		switch chain[i].InheritanceType {
		case model.InheritanceIncludes:
			acc = r.merger.MergeIncludes(acc, docs[i])
		default:
			// 链上除根以外的模板必然有父级,EXTENDS 是默认语义
			acc = r.merger.MergeExtends(acc, docs[i])
		}
	}
	return acc, nil
}

func chainIDs(chain []*model.TemplateModel) []string {
	ids := make([]string, len(chain))
	for i, tm := range chain {
		ids[i] = tm.ID
	}
	return ids
}

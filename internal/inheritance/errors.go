package inheritance

import "fmt"

// CircularInheritanceError 沿父链回溯时发现环
type CircularInheritanceError struct {
	TemplateID string
	Chain      []string // 到发现环为止访问过的模板 id
}

func (e *CircularInheritanceError) Error() string {
	return fmt.Sprintf("circular inheritance detected at template %q", e.TemplateID)
}

// InvalidInheritanceError 非法的继承关系
type InvalidInheritanceError struct {
	ChildID  string
	ParentID string
	Reason   string
}

func (e *InvalidInheritanceError) Error() string {
	return fmt.Sprintf("invalid inheritance %s -> %s: %s", e.ChildID, e.ParentID, e.Reason)
}

package validation

// DatasetCatalog 已知数据集/字段登记,由外部协作方提供
// 组件 data_requirements 的交叉检查以它为准
type DatasetCatalog interface {
	// Fields 返回数据集的已知字段名; 数据集不存在时第二个返回值为 false
	Fields(dataset string) ([]string, bool)
}

// MapCatalog 基于内存映射的数据集登记,测试和默认装配使用
type MapCatalog map[string][]string

// Fields 实现 DatasetCatalog
func (c MapCatalog) Fields(dataset string) ([]string, bool) {
	fields, ok := c[dataset]
	return fields, ok
}

package meta

// MetaField 可选项元数据，供前端渲染下拉框
type MetaField struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Type        string   `json:"type"`
	Default     bool     `json:"default,omitempty"`
	Aliases     []string `json:"aliases,omitempty"` // 请求中同样接受的名称
	Description string   `json:"description,omitempty"`
}

// Lookup 按名称或别名查找可选项
func Lookup(fields []MetaField, name string) (MetaField, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
		for _, alias := range f.Aliases {
			if alias == name {
				return f, true
			}
		}
	}
	return MetaField{}, false
}

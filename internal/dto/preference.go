package dto

// SettingCell 偏好表格中的一个单元格
// FormLabel 形如 "<label>_<medium>"，宿主表单按它回传开关状态。
type SettingCell struct {
	FormLabel string `json:"form_label"`
	Send      bool   `json:"send"`
}

// SettingsRow 一种通知类型在各通道下的偏好
type SettingsRow struct {
	Label       string        `json:"label"`
	Display     string        `json:"display"`
	Description string        `json:"description"`
	Cells       []SettingCell `json:"cells"`
}

// SettingsTable 偏好管理页的数据：列头为通道名称，行是通知类型 × 通道的开关矩阵
type SettingsTable struct {
	ColumnHeaders []string      `json:"column_headers"`
	Rows          []SettingsRow `json:"rows"`
}

package model

// CustomFieldType enumerates the value shapes a custom field can hold.
type CustomFieldType string

const (
	FieldTypeText        CustomFieldType = "text"
	FieldTypeNumber      CustomFieldType = "number"
	FieldTypeSelect      CustomFieldType = "select"
	FieldTypeMultiSelect CustomFieldType = "multiselect"
	FieldTypeLabels      CustomFieldType = "labels"
	FieldTypeVersions    CustomFieldType = "versions"
	FieldTypeUser        CustomFieldType = "user"
)

// IsMulti reports whether the field stores a list of values.
func (t CustomFieldType) IsMulti() bool {
	switch t {
	case FieldTypeMultiSelect, FieldTypeLabels, FieldTypeVersions:
		return true
	}
	return false
}

// CustomField is an administrator-defined issue field.
type CustomField struct {
	ID      string          `json:"id" db:"id"`
	Name    string          `json:"name" db:"name"`
	Type    CustomFieldType `json:"type" db:"type"`
	Options []string        `json:"options,omitempty" db:"-"`
}

// FieldValue is the stored value of a custom field on one issue.
// Single-valued fields use a one-element slice; an empty slice means unset.
type FieldValue []string

package importmap

import (
	"sort"
	"sync"
)

// Entity kinds used by the typed mappers.
const (
	KindProject       = "project"
	KindUser          = "user"
	KindIssueType     = "issue_type"
	KindIssueLinkType = "issue_link_type"
	KindCustomField   = "custom_field"
	KindVersion       = "version"
	KindIssue         = "issue"
)

// VersionMapper maps versions and remembers which old project each old
// version belongs to, so names can be resolved per project.
type VersionMapper struct {
	*Mapper

	mu        sync.RWMutex
	projectOf map[string]string
}

// NewVersionMapper creates an empty VersionMapper.
func NewVersionMapper() *VersionMapper {
	return &VersionMapper{
		Mapper:    NewMapper(KindVersion),
		projectOf: make(map[string]string),
	}
}

// RegisterVersion registers an old version with its old project ID.
func (m *VersionMapper) RegisterVersion(oldProjectID, oldVersionID, name string) {
	m.RegisterOldValue(oldVersionID, name)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projectOf[oldVersionID] = oldProjectID
}

// OldProjectID returns the old project of an old version.
func (m *VersionMapper) OldProjectID(oldVersionID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projectOf[oldVersionID]
	return p, ok
}

// VersionIDsForProject returns the registered old versions of one old
// project, sorted.
func (m *VersionMapper) VersionIDsForProject(oldProjectID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for v, p := range m.projectOf {
		if p == oldProjectID {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

// ProjectImportMapper bundles every mapper an import needs.
type ProjectImportMapper struct {
	Projects       *Mapper
	Users          *Mapper
	IssueTypes     *Mapper
	IssueLinkTypes *Mapper
	CustomFields   *Mapper
	Issues         *Mapper
	Versions       *VersionMapper
}

// NewProjectImportMapper creates an empty set of mappers.
func NewProjectImportMapper() *ProjectImportMapper {
	return &ProjectImportMapper{
		Projects:       NewMapper(KindProject),
		Users:          NewMapper(KindUser),
		IssueTypes:     NewMapper(KindIssueType),
		IssueLinkTypes: NewMapper(KindIssueLinkType),
		CustomFields:   NewMapper(KindCustomField),
		Issues:         NewMapper(KindIssue),
		Versions:       NewVersionMapper(),
	}
}

// All returns the mappers in dependency order.
func (p *ProjectImportMapper) All() []*Mapper {
	return []*Mapper{
		p.Projects, p.Users, p.IssueTypes, p.IssueLinkTypes,
		p.CustomFields, p.Versions.Mapper, p.Issues,
	}
}

// ClearMappedValues clears new IDs on every mapper.
func (p *ProjectImportMapper) ClearMappedValues() {
	for _, m := range p.All() {
		m.ClearMappedValues()
	}
}

package importmap

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/errs"
)

func TestMapperRequiresRegistration(t *testing.T) {
	m := NewMapper(KindIssueType)

	err := m.FlagValueAsRequired("1")
	require.Error(t, err)
	assert.False(t, m.IsRequired("1"))

	m.RegisterOldValue("1", "Bug")
	require.NoError(t, m.FlagValueAsRequired("1"))
	assert.True(t, m.IsRequired("1"))
	assert.Equal(t, []string{"1"}, m.RequiredOldIDs())
}

func TestMapperMapAndClear(t *testing.T) {
	m := NewMapper(KindProject)
	m.RegisterOldValue("10", "HSP")
	m.RegisterOldValue("11", "MKY")
	require.NoError(t, m.FlagValueAsRequired("10"))

	_, ok := m.MappedID("10")
	assert.False(t, ok)
	assert.Equal(t, []string{"10"}, m.UnmappedRequiredOldIDs())

	m.MapValue("10", "p-1")
	got, ok := m.MappedID("10")
	require.True(t, ok)
	assert.Equal(t, "p-1", got)
	assert.Empty(t, m.UnmappedRequiredOldIDs())

	m.ClearMappedValues()
	_, ok = m.MappedID("10")
	assert.False(t, ok)
	assert.Equal(t, []string{"10", "11"}, m.RegisteredOldIDs())
	assert.True(t, m.IsRequired("10"))
	key, ok := m.Key("11")
	require.True(t, ok)
	assert.Equal(t, "MKY", key)
}

func TestMapperConcurrentRegistration(t *testing.T) {
	m := NewMapper(KindIssue)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprint(i)
			m.RegisterOldValue(id, "HSP-"+id)
			if err := m.FlagValueAsRequired(id); err != nil {
				t.Error(err)
			}
			m.MapValue(id, "new-"+id)
		}(i)
	}
	wg.Wait()

	assert.Len(t, m.RegisteredOldIDs(), 50)
	assert.Len(t, m.RequiredOldIDs(), 50)
	assert.Len(t, m.Mappings(), 50)
}

func TestVersionMapperScopesByProject(t *testing.T) {
	m := NewVersionMapper()
	m.RegisterVersion("p1", "v2", "2.0")
	m.RegisterVersion("p1", "v1", "1.0")
	m.RegisterVersion("p2", "v3", "1.0")

	assert.Equal(t, []string{"v1", "v2"}, m.VersionIDsForProject("p1"))
	assert.Equal(t, []string{"v3"}, m.VersionIDsForProject("p2"))
	p, ok := m.OldProjectID("v3")
	require.True(t, ok)
	assert.Equal(t, "p2", p)
	assert.Equal(t, []string{"v1", "v2", "v3"}, m.RegisteredOldIDs())
}

func TestValidateReportsUnmappedRequired(t *testing.T) {
	p := NewProjectImportMapper()
	p.Projects.RegisterOldValue("10", "HSP")
	require.NoError(t, p.Projects.FlagValueAsRequired("10"))
	p.IssueTypes.RegisterOldValue("1", "Bug")
	p.IssueTypes.RegisterOldValue("2", "Story")
	require.NoError(t, p.IssueTypes.FlagValueAsRequired("1"))
	require.NoError(t, p.IssueTypes.FlagValueAsRequired("2"))
	p.IssueTypes.MapValue("1", "local-bug")

	ec := errs.New()
	Validate(p, ec)

	assert.Equal(t, map[string]string{
		"project:10":   `required project "HSP" has no match in this instance`,
		"issue_type:2": `required issue_type "Story" has no match in this instance`,
	}, ec.Errors())
	assert.True(t, ec.HasReason(errs.ReasonValidationFailed))

	p.Projects.MapValue("10", "p")
	p.IssueTypes.MapValue("2", "s")
	clean := errs.New()
	Validate(p, clean)
	assert.False(t, clean.HasAnyErrors())
}

package permission_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/tracker/internal/model"
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/tests/testutil"
)

func TestStoreChecker(t *testing.T) {
	f := testutil.NewFixture(t)
	c := f.Checker()
	ctx := context.Background()

	tests := []struct {
		name    string
		user    model.User
		perm    permission.Permission
		project string
		want    bool
	}{
		{"admin implies everything", f.Admin, permission.EditIssue, f.MKY.ID, true},
		{"project grant applies", f.Alice, permission.LinkIssue, f.HSP.ID, true},
		{"project grant is scoped", f.Alice, permission.LinkIssue, f.MKY.ID, false},
		{"missing permission", f.Bob, permission.EditIssue, f.HSP.ID, false},
		{"no grants", f.Eve, permission.Browse, f.HSP.ID, false},
		{"anonymous", model.User{}, permission.Browse, f.HSP.ID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.HasProjectPermission(ctx, tt.user, tt.perm, tt.project)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanAdministerProject(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()
	require.NoError(t, f.Store.AddGrant(ctx, storeGrant("bob", permission.ProjectAdmin, f.MKY.ID)))

	c := f.Checker()
	ok, err := permission.CanAdministerProject(ctx, c, f.Admin, f.HSP.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = permission.CanAdministerProject(ctx, c, f.Bob, f.MKY.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = permission.CanAdministerProject(ctx, c, f.Bob, f.HSP.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

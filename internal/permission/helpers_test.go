package permission_test

import (
	"github.com/nhle/tracker/internal/permission"
	"github.com/nhle/tracker/internal/store"
)

func storeGrant(user string, p permission.Permission, projectID string) store.Grant {
	return store.Grant{UserName: user, Permission: string(p), ProjectID: projectID}
}

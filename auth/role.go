package auth

type DBRole interface {
	ID() int
	TenantID() int
	Name() string
	Permissions() (PermissionSet, error)
	HasMember(u DBUser) (bool, error)
	Members() (map[int]interface{}, error)
}

type RoleDB interface {
	Delete(r DBRole) error
	GetAllRoles(tenantID int, limit, offset int) ([]DBRole, error)
	GetRole(id int) (DBRole, error)
	GetRoleByName(tenantID int, name string) (DBRole, error)
	GetRolesOf(u DBUser) ([]DBRole, error)
	InsertRole(tenantID int, name string) error
	Grant(r DBRole, p Permission) error
	Revoke(r DBRole, p Permission) error
	Join(r DBRole, u DBUser) error
	Leave(r DBRole, u DBUser) error
	Writeable() bool
}

type Role DBRole

// GetAllRoles shadows AuthDB.RoleDB.GetAllRoles.
func (a *AuthDB) GetAllRoles(tenantID int, limit, offset int) ([]Role, error) {
	roles, err := a.RoleDB.GetAllRoles(tenantID, limit, offset)
	result := make([]Role, len(roles))
	for i := range roles {
		result[i] = roles[i]
	}
	return result, err
}

// GetRolesOf shadows AuthDB.RoleDB.GetRolesOf.
func (a *AuthDB) GetRolesOf(u User) ([]Role, error) {
	if u == nil {
		return nil, nil
	}
	roles, err := a.RoleDB.GetRolesOf(u)
	result := make([]Role, len(roles))
	for i := range roles {
		result[i] = roles[i]
	}
	return result, err
}

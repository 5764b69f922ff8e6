package auth

import (
	"errors"
)

type AuthDB struct {
	TenantDB
	UserDB
	RoleDB
}

var ErrEmptyPassword = errors.New("refusing to set empty password")
var ErrUnknownPermission = errors.New("unknown permission")

// shadows AuthDB.UserDB.SetPassword
func (a *AuthDB) SetPassword(u User, password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	return a.UserDB.SetPassword(u, password)
}

// HasPermission reports whether the user holds the permission within the tenant.
// A user never holds permissions outside their own tenant.
func (a *AuthDB) HasPermission(userID int, tenantID int, p Permission) (bool, error) {

	user, err := a.UserDB.GetUser(userID)
	if err != nil {
		return false, err
	}

	if user.TenantID() != tenantID {
		return false, nil
	}

	roles, err := a.RoleDB.GetRolesOf(user)
	if err != nil {
		return false, err
	}

	for _, role := range roles {
		perms, err := role.Permissions()
		if err != nil {
			return false, err
		}
		if perms.Has(p) {
			return true, nil
		}
	}

	return false, nil
}

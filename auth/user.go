package auth

type DBUser interface {
	ID() int
	TenantID() int
	Name() string // can be email address
}

type UserDB interface {
	ChangePassword(u DBUser, old, new string) error
	Delete(u DBUser) error
	GetUser(id int) (DBUser, error)
	GetUserByName(tenantID int, name string) (DBUser, error)
	GetAllUsers(tenantID int, limit, offset int) ([]DBUser, error)
	InsertUser(tenantID int, name string) (DBUser, error)
	LoginUser(name, password string) (DBUser, error)
	SetPassword(u DBUser, password string) error
	Writeable() bool
}

type User DBUser

// GetAllUsers shadows AuthDB.UserDB.GetAllUsers.
func (a *AuthDB) GetAllUsers(tenantID int, limit, offset int) ([]User, error) {
	users, err := a.UserDB.GetAllUsers(tenantID, limit, offset)
	result := make([]User, len(users))
	for i := range users {
		result[i] = users[i]
	}
	return result, err
}

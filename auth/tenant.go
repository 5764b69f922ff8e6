package auth

type DBTenant interface {
	ID() int
	Name() string
}

type TenantDB interface {
	GetTenant(id int) (DBTenant, error)
	GetTenantByName(name string) (DBTenant, error)
	GetAllTenants(limit, offset int) ([]DBTenant, error)
	InsertTenant(name string) (DBTenant, error)
	Writeable() bool
}

type Tenant DBTenant

package core

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/contentflow/contentflow/auth"
)

// An Actor is the tenant scope and acting user every engine operation runs under.
type Actor struct {
	TenantID int
	UserID   int
}

// A PermissionOracle answers whether a user holds a permission within a tenant.
type PermissionOracle interface {
	HasPermission(userID int, tenantID int, p auth.Permission) (bool, error)
}

type CoreDB struct {
	WorkflowDB
	ApprovalDB
	Auth  *auth.AuthDB
	Perms PermissionOracle // usually Auth, separate for test doubles
	Audit AuditSink

	SessionManager *scs.SessionManager

	SqlDB *sql.DB
}

func (c *CoreDB) Init(sessionStore scs.Store, cookiePath string) error {

	c.SessionManager = scs.New()
	c.SessionManager.Store = sessionStore
	c.SessionManager.Cookie.Path = cookiePath + "/"
	c.SessionManager.Cookie.Persist = false                 // don't store the cookie across browser sessions
	c.SessionManager.Cookie.SameSite = http.SameSiteLaxMode // good CSRF protection if HTTP GET doesn't modify anything
	c.SessionManager.Cookie.Secure = false                  // else running on localhost or behind a http proxy fails
	c.SessionManager.IdleTimeout = 12 * time.Hour
	c.SessionManager.Lifetime = 720 * time.Hour

	if c.Perms == nil {
		c.Perms = c.Auth
	}

	return nil
}

package sqldb

import (
	"database/sql"

	"github.com/contentflow/contentflow/auth"
)

type role struct {
	db          *RoleDB // required for lazy loading
	id          int
	tenantID    int
	name        string
	perms       auth.PermissionSet
	permsLoaded bool // lazy loading
}

func (r *role) ID() int {
	return r.id
}

func (r *role) TenantID() int {
	return r.tenantID
}

func (r *role) Name() string {
	return r.name
}

func (r *role) Permissions() (auth.PermissionSet, error) {

	if !r.permsLoaded {

		r.perms = auth.PermissionSet{}

		rows, err := r.db.getPerms.Query(r.id)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		for rows.Next() {
			var token string
			if err = rows.Scan(&token); err != nil {
				return nil, err
			}
			r.perms.Add(auth.Permission(token))
		}

		r.permsLoaded = true
	}

	return r.perms, nil
}

func (r *role) HasMember(u auth.DBUser) (bool, error) {
	var count int
	err := r.db.isMember.QueryRow(r.id, u.ID()).Scan(&count)
	return count > 0, err
}

func (r *role) Members() (map[int]interface{}, error) {

	rows, err := r.db.members.Query(r.id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members = make(map[int]interface{})
	for rows.Next() {
		var userID int
		if err = rows.Scan(&userID); err != nil {
			return nil, err
		}
		members[userID] = struct{}{}
	}
	return members, nil
}

type RoleDB struct {
	*sql.DB
	clearMembers *sql.Stmt
	clearPerms   *sql.Stmt
	delete       *sql.Stmt
	get          *sql.Stmt
	getAll       *sql.Stmt
	getByName    *sql.Stmt
	getOf        *sql.Stmt
	getPerms     *sql.Stmt
	grant        *sql.Stmt
	insert       *sql.Stmt
	isMember     *sql.Stmt
	join         *sql.Stmt
	leave        *sql.Stmt
	members      *sql.Stmt
	revoke       *sql.Stmt
}

func NewRoleDB(db *sql.DB) *RoleDB {

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS role (
			id INTEGER PRIMARY KEY,
			tenantId int(11) NOT NULL,
			roleName varchar(64) NOT NULL,
			UNIQUE (tenantId, roleName)
		);
		CREATE TABLE IF NOT EXISTS role_permission (
			roleId int(11) NOT NULL,
			permission varchar(64) NOT NULL,
			PRIMARY KEY (roleId, permission)
		);
		CREATE TABLE IF NOT EXISTS role_member (
			roleId int(11) NOT NULL,
			userId int(11) NOT NULL,
			PRIMARY KEY (roleId, userId)
		);`)
	if err != nil {
		panic(err)
	}

	var roleDB = &RoleDB{}
	roleDB.DB = db
	roleDB.clearMembers = mustPrepare(db, "DELETE FROM role_member WHERE roleId = ?")
	roleDB.clearPerms = mustPrepare(db, "DELETE FROM role_permission WHERE roleId = ?")
	roleDB.delete = mustPrepare(db, "DELETE FROM role WHERE id = ?")
	roleDB.get = mustPrepare(db, "SELECT tenantId, roleName FROM role WHERE id = ? LIMIT 1")
	roleDB.getAll = mustPrepare(db, "SELECT id, roleName FROM role WHERE tenantId = ? ORDER BY roleName LIMIT ? OFFSET ?")
	roleDB.getByName = mustPrepare(db, "SELECT id FROM role WHERE tenantId = ? AND roleName = ? LIMIT 1")
	roleDB.getOf = mustPrepare(db, "SELECT r.id, r.tenantId, r.roleName FROM role r, role_member m WHERE m.userId = ? AND r.id = m.roleId ORDER BY r.roleName")
	roleDB.getPerms = mustPrepare(db, "SELECT permission FROM role_permission WHERE roleId = ?")
	roleDB.grant = mustPrepare(db, "INSERT OR IGNORE INTO role_permission (roleId, permission) VALUES (?, ?)")
	roleDB.insert = mustPrepare(db, "INSERT INTO role (tenantId, roleName) VALUES (?, ?)")
	roleDB.isMember = mustPrepare(db, "SELECT COUNT(1) FROM role_member WHERE roleId = ? AND userId = ?")
	roleDB.join = mustPrepare(db, "INSERT OR IGNORE INTO role_member (roleId, userId) VALUES (?, ?)")
	roleDB.leave = mustPrepare(db, "DELETE FROM role_member WHERE roleId = ? AND userId = ?")
	roleDB.members = mustPrepare(db, "SELECT userId FROM role_member WHERE roleId = ?")
	roleDB.revoke = mustPrepare(db, "DELETE FROM role_permission WHERE roleId = ? AND permission = ?")
	return roleDB
}

func (db *RoleDB) Writeable() bool {
	return true
}

func (db *RoleDB) Delete(r auth.DBRole) error {

	tx, err := db.Begin()
	if err != nil {
		return err
	}

	for _, stmt := range []*sql.Stmt{db.clearMembers, db.clearPerms, db.delete} {
		if _, err := tx.Stmt(stmt).Exec(r.ID()); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

func (db *RoleDB) GetRole(id int) (auth.DBRole, error) {
	var r = &role{
		db: db,
		id: id,
	}
	return r, db.get.QueryRow(id).Scan(&r.tenantID, &r.name)
}

func (db *RoleDB) GetRoleByName(tenantID int, name string) (auth.DBRole, error) {
	var r = &role{
		db:       db,
		tenantID: tenantID,
		name:     name,
	}
	return r, db.getByName.QueryRow(tenantID, name).Scan(&r.id)
}

func (db *RoleDB) GetAllRoles(tenantID int, limit, offset int) ([]auth.DBRole, error) {

	rows, err := db.getAll.Query(tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all = []auth.DBRole{}

	for rows.Next() {
		var r = &role{
			db:       db,
			tenantID: tenantID,
		}
		if err = rows.Scan(&r.id, &r.name); err != nil {
			return nil, err
		}
		all = append(all, r)
	}

	return all, nil
}

func (db *RoleDB) GetRolesOf(u auth.DBUser) ([]auth.DBRole, error) {

	rows, err := db.getOf.Query(u.ID())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all = []auth.DBRole{}

	for rows.Next() {
		var r = &role{
			db: db,
		}
		if err = rows.Scan(&r.id, &r.tenantID, &r.name); err != nil {
			return nil, err
		}
		all = append(all, r)
	}

	return all, nil
}

func (db *RoleDB) InsertRole(tenantID int, name string) error {
	_, err := db.insert.Exec(tenantID, name)
	return err
}

func (db *RoleDB) Grant(r auth.DBRole, p auth.Permission) error {
	_, err := db.grant.Exec(r.ID(), string(p))
	return err
}

func (db *RoleDB) Revoke(r auth.DBRole, p auth.Permission) error {
	_, err := db.revoke.Exec(r.ID(), string(p))
	return err
}

func (db *RoleDB) Join(r auth.DBRole, u auth.DBUser) error {
	_, err := db.join.Exec(r.ID(), u.ID())
	return err
}

func (db *RoleDB) Leave(r auth.DBRole, u auth.DBUser) error {
	_, err := db.leave.Exec(r.ID(), u.ID())
	return err
}

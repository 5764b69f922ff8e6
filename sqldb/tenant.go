package sqldb

import (
	"database/sql"

	"github.com/contentflow/contentflow/auth"
)

type tenant struct {
	id   int
	name string
}

func (t *tenant) ID() int {
	return t.id
}

func (t *tenant) Name() string {
	return t.name
}

type TenantDB struct {
	*sql.DB
	get       *sql.Stmt
	getAll    *sql.Stmt
	getByName *sql.Stmt
	insert    *sql.Stmt
}

func NewTenantDB(db *sql.DB) *TenantDB {

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tenant (
			id INTEGER PRIMARY KEY,
			tenantName varchar(64) NOT NULL,
			UNIQUE (tenantName)
		);`)
	if err != nil {
		panic(err)
	}

	var tenantDB = &TenantDB{}
	tenantDB.DB = db
	tenantDB.get = mustPrepare(db, "SELECT tenantName FROM tenant WHERE id = ? LIMIT 1")
	tenantDB.getAll = mustPrepare(db, "SELECT id, tenantName FROM tenant ORDER BY tenantName LIMIT ? OFFSET ?")
	tenantDB.getByName = mustPrepare(db, "SELECT id FROM tenant WHERE tenantName = ? LIMIT 1")
	tenantDB.insert = mustPrepare(db, "INSERT INTO tenant (tenantName) VALUES (?)")
	return tenantDB
}

func (db *TenantDB) Writeable() bool {
	return true
}

func (db *TenantDB) GetTenant(id int) (auth.DBTenant, error) {
	var t = &tenant{
		id: id,
	}
	return t, db.get.QueryRow(id).Scan(&t.name)
}

func (db *TenantDB) GetTenantByName(name string) (auth.DBTenant, error) {
	var t = &tenant{
		name: name,
	}
	return t, db.getByName.QueryRow(name).Scan(&t.id)
}

func (db *TenantDB) GetAllTenants(limit, offset int) ([]auth.DBTenant, error) {

	rows, err := db.getAll.Query(limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all = []auth.DBTenant{}

	for rows.Next() {
		var t = &tenant{}
		if err = rows.Scan(&t.id, &t.name); err != nil {
			return nil, err
		}
		all = append(all, t)
	}

	return all, nil
}

func (db *TenantDB) InsertTenant(name string) (auth.DBTenant, error) {

	res, err := db.insert.Exec(name)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &tenant{
		id:   int(id),
		name: name,
	}, nil
}

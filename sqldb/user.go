package sqldb

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/contentflow/contentflow/auth"
	"github.com/contentflow/contentflow/util"
)

var ErrAuth = errors.New("authentication failed")

func clean(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	return name
}

func hash(salt string, password string) string {
	var hash = sha256.Sum256([]byte(password + salt))
	return hex.EncodeToString(hash[:])
}

type user struct {
	id       int
	tenantID int
	name     string
	salt     string
	pass     string // hash
}

func (u *user) hash(password string) string {
	return hash(u.salt, password)
}

func (u *user) ID() int {
	return u.id
}

func (u *user) TenantID() int {
	return u.tenantID
}

func (u *user) Name() string {
	return u.name
}

type UserDB struct {
	*sql.DB
	delete      *sql.Stmt
	get         *sql.Stmt
	getAll      *sql.Stmt
	getByName   *sql.Stmt
	insert      *sql.Stmt
	login       *sql.Stmt
	setPassword *sql.Stmt
}

func NewUserDB(db *sql.DB) *UserDB {

	// mail is unique across tenants because login happens before tenant scope is known
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS usr (
			id INTEGER PRIMARY KEY,
			tenantId int(11) NOT NULL,
			mail varchar(128) NOT NULL,
			salt varchar(64) NOT NULL DEFAULT '',
			password varchar(64) NOT NULL DEFAULT '',
			UNIQUE (mail)
		);`)
	if err != nil {
		panic(err)
	}

	var userDB = &UserDB{}
	userDB.DB = db
	userDB.delete = mustPrepare(db, "DELETE FROM usr WHERE id = ?")
	userDB.get = mustPrepare(db, "SELECT tenantId, mail FROM usr WHERE id = ? LIMIT 1")
	userDB.getAll = mustPrepare(db, "SELECT id, mail, salt FROM usr WHERE tenantId = ? ORDER BY mail LIMIT ? OFFSET ?")
	userDB.getByName = mustPrepare(db, "SELECT id FROM usr WHERE tenantId = ? AND mail = ? LIMIT 1")
	userDB.insert = mustPrepare(db, "INSERT INTO usr (tenantId, mail) VALUES (?, ?)") // empty password field is safe because no hash value equals it
	userDB.login = mustPrepare(db, "SELECT id, tenantId, salt, password FROM usr WHERE mail = ?")
	userDB.setPassword = mustPrepare(db, "UPDATE usr SET salt = ?, password = ? WHERE id = ?")
	return userDB
}

func (db *UserDB) Writeable() bool {
	return true
}

func (db *UserDB) ChangePassword(u auth.DBUser, old, new string) error {
	if u.(*user).hash(old) != u.(*user).pass {
		return ErrAuth
	}
	return db.SetPassword(u, new)
}

func (db *UserDB) Delete(u auth.DBUser) error {
	_, err := db.delete.Exec(u.ID())
	return err
}

// GetUser may return sql.ErrNoRows, because we can not compare the returned user to nil.
func (db *UserDB) GetUser(id int) (auth.DBUser, error) {
	var u = &user{
		id: id,
	}
	err := db.get.QueryRow(id).Scan(&u.tenantID, &u.name)
	return u, err
}

func (db *UserDB) GetUserByName(tenantID int, name string) (auth.DBUser, error) {
	var u = &user{
		tenantID: tenantID,
		name:     clean(name),
	}
	return u, db.getByName.QueryRow(tenantID, u.name).Scan(&u.id)
}

func (db *UserDB) GetAllUsers(tenantID int, limit, offset int) ([]auth.DBUser, error) {

	var all = []auth.DBUser{}

	rows, err := db.getAll.Query(tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u = &user{
			tenantID: tenantID,
		}
		err = rows.Scan(&u.id, &u.name, &u.salt)
		if err != nil {
			return nil, err
		}
		all = append(all, u)
	}

	return all, nil
}

func (db *UserDB) InsertUser(tenantID int, name string) (auth.DBUser, error) {

	name = clean(name)

	res, err := db.insert.Exec(tenantID, name)
	if err != nil {
		return nil, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &user{
		id:       int(id),
		tenantID: tenantID,
		name:     name,
	}, nil
}

func (db *UserDB) LoginUser(name, password string) (auth.DBUser, error) {

	name = clean(name)

	var u = &user{
		name: name,
	}

	err := db.login.QueryRow(name).Scan(&u.id, &u.tenantID, &u.salt, &u.pass)
	if err == sql.ErrNoRows {
		return nil, ErrAuth // user not found
	}
	if err != nil {
		return nil, err
	}

	if u.hash(password) != u.pass {
		return nil, ErrAuth // wrong password
	}

	return u, nil
}

func (db *UserDB) SetPassword(u auth.DBUser, password string) error {

	if password == "" {
		return errors.New("no password given")
	}

	if u.ID() == 0 {
		return errors.New("can't set password of user 0")
	}

	salt, err := util.RandomString32()
	if err != nil {
		return err
	}

	_, err = db.setPassword.Exec(salt, hash(salt, password), u.ID())
	if err != nil {
		return err
	}

	if su, ok := u.(*user); ok {
		su.salt = salt
	}
	return nil
}

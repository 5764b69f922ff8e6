package sqldb

import (
	"database/sql"
	"time"
)

// An AuditEntry is one row of the immutable audit log.
type AuditEntry struct {
	ID         int
	TenantID   int
	UserID     int
	Action     string
	Resource   string
	ResourceID int
	Details    string
	TsCreated  int64
}

// AuditDB is an append-only audit sink. Rows are never updated or deleted.
type AuditDB struct {
	*sql.DB
	getRecent *sql.Stmt
	insert    *sql.Stmt
}

func NewAuditDB(db *sql.DB) *AuditDB {

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY,
			tenantId int(11) NOT NULL,
			userId int(11) NOT NULL,
			action varchar(64) NOT NULL,
			resource varchar(64) NOT NULL,
			resourceId int(11) NOT NULL,
			details text NOT NULL,
			ts_created INTEGER NOT NULL
		);`)
	if err != nil {
		panic(err)
	}

	var auditDB = &AuditDB{}
	auditDB.DB = db
	auditDB.getRecent = mustPrepare(db, "SELECT id, userId, action, resource, resourceId, details, ts_created FROM audit_log WHERE tenantId = ? ORDER BY id DESC LIMIT ? OFFSET ?")
	auditDB.insert = mustPrepare(db, "INSERT INTO audit_log (tenantId, userId, action, resource, resourceId, details, ts_created) VALUES (?, ?, ?, ?, ?, ?, ?)")
	return auditDB
}

func (db *AuditDB) LogEvent(tenantID, userID int, action, resource string, resourceID int, details string) error {
	_, err := db.insert.Exec(tenantID, userID, action, resource, resourceID, details, time.Now().Unix())
	return err
}

// GetRecentEntries returns the newest entries of a tenant first.
func (db *AuditDB) GetRecentEntries(tenantID int, limit, offset int) ([]AuditEntry, error) {

	rows, err := db.getRecent.Query(tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all = []AuditEntry{}

	for rows.Next() {
		var entry = AuditEntry{
			TenantID: tenantID,
		}
		if err = rows.Scan(&entry.ID, &entry.UserID, &entry.Action, &entry.Resource, &entry.ResourceID, &entry.Details, &entry.TsCreated); err != nil {
			return nil, err
		}
		all = append(all, entry)
	}

	return all, nil
}

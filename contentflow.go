package main

import (
	"bytes"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/contentflow/contentflow/auth"
	"github.com/contentflow/contentflow/core"
	"github.com/contentflow/contentflow/sqldb"
	"github.com/contentflow/contentflow/sqldb/mysql"
	"github.com/contentflow/contentflow/sqldb/sqlite3"
	"github.com/contentflow/contentflow/util"
	"github.com/contentflow/contentflow/web"
	_ "github.com/mattn/go-sqlite3"
	"github.com/xo/dburl"
	"golang.org/x/crypto/ssh/terminal"
)

type prefixedResponseWriter struct {
	http.ResponseWriter
	prefix string // without trailing slash
}

// shadows the original WriteHeader func
func (w prefixedResponseWriter) WriteHeader(statusCode int) {
	// prepend prefix to Location header, so redirects work
	if w.prefix != "" {
		if location := w.Header().Get("Location"); len(location) > 0 && location[0] == '/' { // only absolute locations
			w.Header().Set("Location", w.prefix+location)
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

// prefix should be without trailing slash
func handleStrip(prefix string, handler http.Handler) {
	http.Handle(
		prefix+"/", // http mux needs trailing slash
		http.StripPrefix(
			prefix,
			http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					w = &prefixedResponseWriter{w, prefix}
					handler.ServeHTTP(w, r)
				},
			),
		),
	)
}

func init() {
	log.SetFlags(0) // no log prefixes, on most systems systemd-journald adds them
}

func main() {

	var dbArg string // is in both FlagSets

	// optional ini file provides defaults, flags win

	var config, _ = util.Ini("contentflow.ini") // missing file is fine
	var configOr = func(key, fallback string) string {
		if val, ok := config[key]; ok {
			return val
		}
		return fallback
	}

	// default FlagSet

	// Your reverse proxy must not strip the prefix.
	var base = flag.String("base", configOr("base", ""), "strip off this `prefix` from every HTTP request and prepended it to every link")
	flag.StringVar(&dbArg, "db", configOr("db", "sqlite3:contentflow.sqlite3?_busy_timeout=10000&_journal=WAL&_sync=NORMAL&cache=shared"), "sql database url, see github.com/xo/dburl")
	var listenAddr = flag.String("listen", configOr("listen", "127.0.0.1:8080"), "serve HTTP content at this `ip:port`")

	// init FlagSet

	var initFlags = flag.NewFlagSet("init", flag.ExitOnError)

	initFlags.StringVar(&dbArg, "db", configOr("db", "sqlite3:contentflow.sqlite3?_busy_timeout=10000&_journal=WAL&_sync=NORMAL&cache=shared"), "sql database url, see github.com/xo/dburl") // copied from above
	var initInsert = initFlags.Bool("insert", false, "creates the given tenant, role or user")
	var initJoin = initFlags.Bool("join", false, "joins the given user to the given role")
	var initGrant = initFlags.Bool("grant", false, "grants the given permission to the given role")
	var tenantname = initFlags.String("tenant", "", "specifies a tenant `name`")
	var rolename = initFlags.String("role", "", "specifies a role `name`")
	var username = initFlags.String("user", "", "specifies a user `name`")
	var permission = initFlags.String("permission", "", "specifies a permission `token`")

	if len(os.Args) > 1 && os.Args[1] == "init" {
		initFlags.Parse(os.Args[2:])
	} else {
		flag.Parse()
	}

	// database

	dbURL, err := dburl.Parse(dbArg)
	if err != nil {
		log.Printf("could not parse database url: %v", err)
		return
	}

	sqlDB, err := sql.Open(dbURL.Driver, dbURL.DSN)
	if err != nil {
		log.Printf("could not open sql database: %v", err)
		return
	}

	if err = sqlDB.Ping(); err != nil {
		log.Printf("could not ping sql database: %v", err)
		return
	}

	log.Printf("using database %s", dbURL.String())

	// base

	*base = strings.Trim(*base, "/")
	if *base != "" {
		*base = "/" + *base
	}

	// assemble stuff

	var sessionStore scs.Store
	switch dbURL.Driver {
	case "mysql":
		sessionStore = mysql.NewSessionStore(sqlDB)
	case "sqlite3":
		sessionStore = sqlite3.NewSessionStore(sqlDB)
	default:
		log.Printf("unknown database backend: %s", dbURL.Driver)
		return
	}

	db := &core.CoreDB{}
	db.Auth = &auth.AuthDB{
		TenantDB: sqldb.NewTenantDB(sqlDB),
		UserDB:   sqldb.NewUserDB(sqlDB),
		RoleDB:   sqldb.NewRoleDB(sqlDB),
	}
	db.WorkflowDB = sqldb.NewWorkflowDB(sqlDB)
	db.ApprovalDB = sqldb.NewApprovalDB(sqlDB)
	db.Audit = sqldb.NewAuditDB(sqlDB)
	db.SqlDB = sqlDB

	if err := db.Init(sessionStore, *base); err != nil {
		log.Println(err) // log.Fatalln would not run deferred functions
		return
	}

	defer func() {
		log.Println("closing database")
		sqlDB.Close()
	}()

	// init

	if initFlags.Parsed() {
		switch {
		case *initInsert:
			if *tenantname != "" && *username == "" && *rolename == "" {
				insertTenant(db, *tenantname)
			}
			if *tenantname != "" && *rolename != "" {
				insertRole(db, *tenantname, *rolename)
			}
			if *tenantname != "" && *username != "" {
				insertUser(db, *tenantname, *username)
			}
		case *initJoin:
			if *tenantname != "" && *rolename != "" && *username != "" {
				join(db, *tenantname, *rolename, *username)
			}
		case *initGrant:
			if *tenantname != "" && *rolename != "" && *permission != "" {
				grant(db, *tenantname, *rolename, *permission)
			}
		}
		return
	}

	listen(db, *listenAddr, *base)
}

func insertTenant(db *core.CoreDB, name string) {
	if _, err := db.Auth.InsertTenant(name); err != nil {
		log.Printf(`error creating tenant "%s": %v`, name, err)
	}
}

func insertRole(db *core.CoreDB, tenantname string, rolename string) {

	tenant, err := db.Auth.GetTenantByName(tenantname)
	if err != nil {
		log.Printf("error getting tenant %s: %v", tenantname, err)
		return
	}

	if err := db.Auth.InsertRole(tenant.ID(), rolename); err != nil {
		log.Printf(`error creating role "%s": %v`, rolename, err)
	}
}

func insertUser(db *core.CoreDB, tenantname string, name string) {

	tenant, err := db.Auth.GetTenantByName(tenantname)
	if err != nil {
		log.Printf("error getting tenant %s: %v", tenantname, err)
		return
	}

	fmt.Printf("password for user %s: ", name)
	pass1, err := terminal.ReadPassword(0)
	fmt.Println()
	if err != nil {
		log.Printf("error reading password: %v", err)
		return
	}

	fmt.Printf("repeat password: ")
	pass2, err := terminal.ReadPassword(0)
	fmt.Println()
	if err != nil {
		log.Printf("error reading password: %v", err)
		return
	}

	if !bytes.Equal(pass1, pass2) {
		log.Printf("passwords don't match")
		return
	}

	user, err := db.Auth.InsertUser(tenant.ID(), name)
	if err != nil {
		log.Printf("error creating user %s: %v", name, err)
		return
	}

	if err := db.Auth.SetPassword(user, string(pass1)); err != nil {
		log.Printf("error setting password: %v", err)
		return
	}
}

func join(db *core.CoreDB, tenantname string, rolename string, username string) {

	tenant, err := db.Auth.GetTenantByName(tenantname)
	if err != nil {
		log.Printf("error getting tenant %s: %v", tenantname, err)
		return
	}

	role, err := db.Auth.GetRoleByName(tenant.ID(), rolename)
	if err != nil {
		log.Printf("error getting role %s: %v", rolename, err)
		return
	}

	user, err := db.Auth.GetUserByName(tenant.ID(), username)
	if err != nil {
		log.Printf("error getting user %s: %v", username, err)
		return
	}

	if err := db.Auth.Join(role, user); err != nil {
		log.Printf("error joining: %v", err)
		return
	}
}

func grant(db *core.CoreDB, tenantname string, rolename string, permission string) {

	perms, err := auth.ParsePermissionSet(permission)
	if err != nil {
		log.Printf("error parsing permission %s: %v", permission, err)
		return
	}

	tenant, err := db.Auth.GetTenantByName(tenantname)
	if err != nil {
		log.Printf("error getting tenant %s: %v", tenantname, err)
		return
	}

	role, err := db.Auth.GetRoleByName(tenant.ID(), rolename)
	if err != nil {
		log.Printf("error getting role %s: %v", rolename, err)
		return
	}

	for _, p := range perms.Slice() {
		if err := db.Auth.Grant(role, p); err != nil {
			log.Printf("error granting %s: %v", p, err)
			return
		}
	}
}

func listen(db *core.CoreDB, addr string, base string) {

	// mux
	//
	// golang mux recovers from panics, so the program won't crash

	var waitingControllers sync.WaitGroup

	handleStrip(base+"/assets", http.FileServer(http.Dir("assets")))
	handleStrip(base, countRequests(&waitingControllers, web.NewRouter(db, base)))

	// listener and listen

	sigintChannel := make(chan os.Signal, 1)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		log.Println(err)
		return
	}

	log.Printf("listening to %s", addr)

	httpSrv := &http.Server{
		Handler:      db.SessionManager.LoadAndSave(http.DefaultServeMux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := httpSrv.Serve(listener); err != nil {

			// don't panic, we want a graceful shutdown
			if err != http.ErrServerClosed {
				log.Printf("error listening: %v", err)
			}

			// ensure graceful shutdown
			sigintChannel <- os.Interrupt
		}
	}()

	// graceful shutdown

	signal.Notify(sigintChannel, os.Interrupt, syscall.SIGTERM) // SIGINT (Interrupt) or SIGTERM
	<-sigintChannel

	log.Println("shutting down")
	httpSrv.Close()

	waitingControllers.Wait()
}

func countRequests(wg *sync.WaitGroup, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		wg.Add(1)
		defer wg.Done()
		handler.ServeHTTP(w, req)
	})
}

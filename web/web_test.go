package web

import (
	"database/sql"
	"io/ioutil"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/contentflow/contentflow/auth"
	"github.com/contentflow/contentflow/core"
	"github.com/contentflow/contentflow/sqldb"
	"github.com/contentflow/contentflow/sqldb/sqlite3"
	_ "github.com/mattn/go-sqlite3"
)

// newTestServer builds the full stack on an in-memory database, with one
// tenant and one user who holds every workflow permission.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	sqlDB, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1) // a :memory: database exists per connection
	t.Cleanup(func() {
		sqlDB.Close()
	})

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

	if err := db.Init(sqlite3.NewSessionStore(sqlDB), ""); err != nil {
		t.Fatal(err)
	}

	tenant, err := db.Auth.InsertTenant("acme")
	if err != nil {
		t.Fatal(err)
	}
	user, err := db.Auth.InsertUser(tenant.ID(), "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Auth.SetPassword(user, "secret"); err != nil {
		t.Fatal(err)
	}
	if err := db.Auth.InsertRole(tenant.ID(), "editor"); err != nil {
		t.Fatal(err)
	}
	editor, err := db.Auth.GetRoleByName(tenant.ID(), "editor")
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []auth.Permission{auth.Transition, auth.Publish, auth.Request} {
		if err := db.Auth.Grant(editor, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Auth.Join(editor, user); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(db.SessionManager.LoadAndSave(NewRouter(db, "")))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T) *http.Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse // redirects are part of the assertions
		},
	}
}

func TestLoginFlow(t *testing.T) {

	var srv = newTestServer(t)
	var client = newTestClient(t)

	// logged out, the root redirects to the login form
	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/login" {
		t.Fatalf("got %d %s, want redirect to /login", resp.StatusCode, resp.Header.Get("Location"))
	}

	// a wrong password re-renders the form
	resp, err = client.PostForm(srv.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want %d", resp.StatusCode, http.StatusOK)
	}

	resp, err = client.PostForm(srv.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"secret"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/workflows" {
		t.Fatalf("got %d %s, want redirect to /workflows", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, err = client.Get(srv.URL + "/workflows")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !strings.Contains(string(body), "alice@example.com") {
		t.Fatal("workflow list should show the logged-in user")
	}
}

func TestWorkflowPages(t *testing.T) {

	var srv = newTestServer(t)
	var client = newTestClient(t)

	resp, err := client.PostForm(srv.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"secret"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	// creating a workflow redirects to its detail page
	resp, err = client.PostForm(srv.URL+"/workflows", url.Values{
		"content_id": {"500"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("got %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}
	var location = resp.Header.Get("Location")
	if !strings.HasPrefix(location, "/workflow/") {
		t.Fatalf("got location %s, want a workflow detail page", location)
	}

	resp, err = client.Get(srv.URL + location)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !strings.Contains(string(body), "RESEARCH") {
		t.Fatal("detail page should show the initial state")
	}

	// transition from the detail page form
	resp, err = client.PostForm(srv.URL+location+"/transition", url.Values{
		"to":     {"PLANNING"},
		"reason": {"kickoff"},
	})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("got %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}

	resp, err = client.Get(srv.URL + location)
	if err != nil {
		t.Fatal(err)
	}
	body, _ = ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "PLANNING") {
		t.Fatal("detail page should show the new state")
	}

	// an empty approval worklist still renders
	resp, err = client.Get(srv.URL + "/approvals")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

// Package web is the server-rendered HTTP surface over the workflow engine.
// It contains no engine logic; every mutation goes through core.CoreDB.
package web

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/contentflow/contentflow/core"
	"github.com/icza/gox/timex"
	"github.com/julienschmidt/httprouter"
)

// we need the CoreDB in the web handlers
type context struct {
	*core.Request
	Prefix string // with trailing slash
	db     *core.CoreDB
}

// UserName resolves a user id for display. Unknown ids render as the number.
func (ctx *context) UserName(id int) string {
	if u, err := ctx.db.Auth.GetUser(id); err == nil {
		return u.Name()
	}
	return fmt.Sprintf("user %d", id)
}

// Ago renders a unix timestamp as a rough age.
func (ctx *context) Ago(ts int64) string {

	year, month, day, hour, min, _ := timex.Diff(time.Unix(ts, 0), time.Now())

	switch {
	case year > 0:
		return fmt.Sprintf("%dy ago", year)
	case month > 0:
		return fmt.Sprintf("%dmo ago", month)
	case day > 0:
		return fmt.Sprintf("%dd ago", day)
	case hour > 0:
		return fmt.Sprintf("%dh ago", hour)
	case min > 0:
		return fmt.Sprintf("%dm ago", min)
	default:
		return "just now"
	}
}

func middleware(db *core.CoreDB, prefix string, requireLoggedIn bool, f func(http.ResponseWriter, *http.Request, *context, httprouter.Params) error) func(http.ResponseWriter, *http.Request, httprouter.Params) {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {

		var request = db.NewRequest(w, req)

		var ctx = &context{
			Prefix:  prefix + "/",
			Request: request,
			db:      db,
		}
		defer ctx.Cleanup()

		if requireLoggedIn && !ctx.LoggedIn() {
			ctx.SeeOther("/login")
			return
		}

		if err := f(w, req, ctx, params); err != nil {
			// probably no template has been executed, so execute error template
			errorTmpl.Execute(w, struct {
				*context
				Err error
			}{
				context: ctx,
				Err:     err,
			})
		}
	}
}

var errorTmpl = tmpl(`
	<div class="alert alert-danger" role="alert">
		{{ .Err }}
	</div>`)

func NewRouter(db *core.CoreDB, prefix string) http.Handler {

	var router = httprouter.New()

	var GETAndPOST = func(path string, handle httprouter.Handle) {
		router.GET(path, handle)
		router.POST(path, handle)
	}

	// public
	router.GET("/", middleware(db, prefix, false, root))
	GETAndPOST("/login", middleware(db, prefix, false, login))

	// private
	router.GET("/logout", middleware(db, prefix, true, logout))
	GETAndPOST("/workflows", middleware(db, prefix, true, workflows))
	router.GET("/workflow/:id", middleware(db, prefix, true, workflow))
	router.POST("/workflow/:id/transition", middleware(db, prefix, true, transition))
	router.POST("/workflow/:id/comment", middleware(db, prefix, true, comment))
	router.POST("/workflow/:id/comment/:comment/resolve", middleware(db, prefix, true, resolveComment))
	router.POST("/workflow/:id/request-approval", middleware(db, prefix, true, requestApproval))
	router.GET("/approvals", middleware(db, prefix, true, approvals))
	router.POST("/approval/:id/respond", middleware(db, prefix, true, respond))

	return router
}

func tmpl(text string) *template.Template {
	t := template.Must(baseTmpl.Clone())
	t = template.Must(t.Parse(`{{ define "content" }}` + text + `{{ end }}`))
	return t
}

var baseTmpl = template.Must(template.New("web").Parse(`
<!DOCTYPE html>
<html lang="{{ .Lang }}">
	<head>
		<base href="{{ .Prefix }}">
		<link rel="stylesheet" type="text/css" href="/assets/bootstrap-4.4.1.min.css">
		<meta charset="utf-8">
		<title>Workflows</title>
	</head>
	<body>
		<nav class="navbar navbar-expand navbar-light bg-light mb-3">
			<a class="navbar-brand" href="/workflows">contentflow</a>
			{{ if .LoggedIn }}
				<div class="navbar-nav">
					<a class="nav-item nav-link" href="/workflows">Workflows</a>
					<a class="nav-item nav-link" href="/approvals">My approvals</a>
				</div>
				<div class="navbar-nav ml-auto">
					<span class="navbar-text mr-3">{{ .User.Name }}</span>
					<a class="nav-item nav-link" href="/logout">Logout</a>
				</div>
			{{ end }}
		</nav>
		<div class="container">
			{{ .RenderNotifications }}
			{{ template "content" . }}
		</div>
	</body>
</html>`))

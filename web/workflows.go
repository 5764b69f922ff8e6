package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/contentflow/contentflow/core"
	"github.com/contentflow/contentflow/util"
	"github.com/julienschmidt/httprouter"
)

const workflowsPerPage = 20

var workflowsTmpl = tmpl(`<h1>Workflows</h1>

	<table class="table table-sm">
		<thead>
			<tr>
				<th>Content</th>
				<th>State</th>
				<th>Changed</th>
			</tr>
		</thead>
		<tbody>
			{{ range .Workflows }}
				<tr>
					<td><a href="/workflow/{{ .ID }}">content {{ .ContentID }}</a></td>
					<td><span class="badge badge-secondary">{{ .State }}</span></td>
					<td>{{ $.Ago .TsChanged }}</td>
				</tr>
			{{ end }}
		</tbody>
	</table>

	<nav>
		<ul class="pagination">
			{{ range .Pages }}
				<li class="page-item {{ if eq . $.Page }}active{{ end }}">
					<a class="page-link" href="/workflows?page={{ . }}">{{ . }}</a>
				</li>
			{{ end }}
		</ul>
	</nav>

	<h2>Create Workflow</h2>

	<form method="post" class="form-inline">
		<div class="form-group">
			<input class="form-control" name="content_id" placeholder="Content id">
			<button type="submit" class="btn btn-primary mx-sm-3" name="submit_add">Create workflow</button>
		</div>
	</form>`)

type workflowsData struct {
	*context
	Page      int
	Workflows []*core.Workflow
}

func (data *workflowsData) Pages() ([]int, error) {
	count, err := data.db.CountWorkflows(data.Actor())
	if err != nil {
		return nil, err
	}
	var numPages = (count + workflowsPerPage - 1) / workflowsPerPage
	if numPages < 1 {
		numPages = 1
	}
	return util.Pages(data.Page, numPages), nil
}

func workflows(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	if req.Method == http.MethodPost {

		contentID, err := strconv.Atoi(strings.TrimSpace(req.PostFormValue("content_id")))
		if err != nil {
			return errors.New("missing content id")
		}

		workflow, err := ctx.db.CreateWorkflow(contentID, ctx.Actor())
		if err != nil {
			return err
		}

		ctx.Success("workflow for content %d has been created", contentID)
		ctx.SeeOther("/workflow/%d", workflow.ID)
		return nil
	}

	var page, _ = strconv.Atoi(req.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	selected, err := ctx.db.GetAllWorkflows(ctx.Actor(), workflowsPerPage, (page-1)*workflowsPerPage)
	if err != nil {
		return err
	}

	return workflowsTmpl.Execute(w, &workflowsData{
		context:   ctx,
		Page:      page,
		Workflows: selected,
	})
}

package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/contentflow/contentflow/core"
	"github.com/icza/gox/stringsx"
	"github.com/julienschmidt/httprouter"
)

var workflowTmpl = tmpl(`<h1>Workflow for content {{ .Workflow.ContentID }}</h1>

	<p>
		State: <span class="badge badge-primary">{{ .Workflow.State }}</span>
	</p>

	<form method="post" action="/workflow/{{ .Workflow.ID }}/transition" class="form-inline mb-4">
		<select class="form-control" name="to">
			{{ range .NextStates }}
				<option value="{{ . }}">{{ . }}</option>
			{{ end }}
		</select>
		<input class="form-control mx-sm-2" name="reason" placeholder="Reason (optional)">
		<button type="submit" class="btn btn-primary">Transition</button>
	</form>

	<h2>History</h2>

	<table class="table table-sm">
		<tbody>
			{{ range .Workflow.Events }}
				<tr>
					<td>{{ if .FromState }}{{ .FromState }} &rarr; {{ end }}{{ .ToState }}</td>
					<td>{{ $.UserName .UserID }}</td>
					<td>{{ .Reason }}</td>
					<td>{{ $.Ago .TsCreated }}</td>
				</tr>
			{{ end }}
		</tbody>
	</table>

	<h2>Comments</h2>

	{{ range .Workflow.Comments }}
		<div class="card mb-2 {{ if .Resolved }}text-muted{{ end }}">
			<div class="card-body py-2">
				{{ $.RenderComment .Content }}
				<small>
					{{ $.UserName .UserID }}, in {{ .State }}, {{ $.Ago .TsCreated }}
					{{ if .ParentID }}(reply to #{{ .ParentID }}){{ end }}
				</small>
				<form method="post" action="/workflow/{{ $.Workflow.ID }}/comment/{{ .ID }}/resolve" class="d-inline">
					<input type="hidden" name="resolved" value="{{ if .Resolved }}false{{ else }}true{{ end }}">
					<button type="submit" class="btn btn-sm btn-link">{{ if .Resolved }}Reopen{{ else }}Resolve{{ end }}</button>
				</form>
			</div>
		</div>
	{{ end }}

	<form method="post" action="/workflow/{{ .Workflow.ID }}/comment" class="mb-4">
		<div class="form-group">
			<textarea class="form-control" name="content" rows="3" placeholder="Markdown is supported" required></textarea>
		</div>
		<input type="hidden" name="parent_id" value="0">
		<button type="submit" class="btn btn-secondary">Comment</button>
	</form>

	<h2>Approvals</h2>

	{{ range .Workflow.Approvals }}
		<div class="card mb-2">
			<div class="card-body py-2">
				<span class="badge badge-{{ if eq .Status "approved" }}success{{ else if eq .Status "rejected" }}danger{{ else }}secondary{{ end }}">{{ .Status }}</span>
				quorum {{ .RequiredApprovals }} of {{ len .Approvers }},
				requested by {{ $.UserName .RequestedBy }} {{ $.Ago .TsRequested }}
				<ul class="mb-1">
					{{ range .Responses }}
						<li>{{ $.UserName .UserID }}: {{ .Decision }} {{ with .Comment }}&mdash; {{ . }}{{ end }}</li>
					{{ end }}
				</ul>
				{{ if eq .Status "pending" }}
					<form method="post" action="/approval/{{ .ID }}/respond" class="form-inline">
						<select class="form-control form-control-sm" name="decision">
							<option value="approved">approve</option>
							<option value="rejected">reject</option>
						</select>
						<input class="form-control form-control-sm mx-sm-2" name="comment" placeholder="Comment (optional)">
						<input type="hidden" name="workflow_id" value="{{ $.Workflow.ID }}">
						<button type="submit" class="btn btn-sm btn-primary">Respond</button>
					</form>
				{{ end }}
			</div>
		</div>
	{{ end }}

	<form method="post" action="/workflow/{{ .Workflow.ID }}/request-approval" class="form-inline">
		<input class="form-control" name="approvers" placeholder="Approver user ids, comma-separated">
		<input class="form-control mx-sm-2" name="required" placeholder="Quorum" value="1" size="3">
		<button type="submit" class="btn btn-secondary">Request approval</button>
	</form>`)

type workflowData struct {
	*context
	Workflow *core.Workflow
}

func (data *workflowData) NextStates() []core.State {
	return core.NextStates(data.Workflow.State)
}

func loadWorkflow(ctx *context, params httprouter.Params) (*core.Workflow, error) {

	id, err := strconv.Atoi(params.ByName("id"))
	if err != nil {
		return nil, err
	}

	return ctx.db.GetWorkflow(id, ctx.Actor())
}

func workflow(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	selected, err := loadWorkflow(ctx, params)
	if err != nil {
		return err
	}

	return workflowTmpl.Execute(w, &workflowData{
		context:  ctx,
		Workflow: selected,
	})
}

func transition(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	id, err := strconv.Atoi(params.ByName("id"))
	if err != nil {
		return err
	}

	var to = core.State(req.PostFormValue("to"))
	var reason = stringsx.Clean(strings.TrimSpace(req.PostFormValue("reason")))

	if err := ctx.db.TransitionState(id, to, ctx.Actor(), reason); err != nil {
		ctx.Danger(err)
	} else {
		ctx.Success("workflow is now at %s", to)
	}

	ctx.SeeOther("/workflow/%d", id)
	return nil
}

func comment(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	id, err := strconv.Atoi(params.ByName("id"))
	if err != nil {
		return err
	}

	parentID, _ := strconv.Atoi(req.PostFormValue("parent_id"))
	var content = stringsx.Clean(strings.TrimSpace(req.PostFormValue("content")))

	if content == "" {
		ctx.Danger(ErrEmptyComment)
	} else if _, err := ctx.db.AddComment(id, content, ctx.Actor(), parentID); err != nil {
		ctx.Danger(err)
	}

	ctx.SeeOther("/workflow/%d", id)
	return nil
}

func resolveComment(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	id, err := strconv.Atoi(params.ByName("id"))
	if err != nil {
		return err
	}

	commentID, err := strconv.Atoi(params.ByName("comment"))
	if err != nil {
		return err
	}

	var resolved = req.PostFormValue("resolved") == "true"

	if err := ctx.db.ResolveComment(commentID, resolved, ctx.Actor()); err != nil {
		ctx.Danger(err)
	}

	ctx.SeeOther("/workflow/%d", id)
	return nil
}

func requestApproval(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	id, err := strconv.Atoi(params.ByName("id"))
	if err != nil {
		return err
	}

	var approvers = []int{}
	for _, field := range strings.Split(req.PostFormValue("approvers"), ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		userID, err := strconv.Atoi(field)
		if err != nil {
			ctx.Danger(err)
			ctx.SeeOther("/workflow/%d", id)
			return nil
		}
		approvers = append(approvers, userID)
	}

	required, _ := strconv.Atoi(req.PostFormValue("required"))

	if _, err := ctx.db.RequestApproval(id, approvers, ctx.Actor(), required); err != nil {
		ctx.Danger(err)
	} else {
		ctx.Success("approval has been requested")
	}

	ctx.SeeOther("/workflow/%d", id)
	return nil
}

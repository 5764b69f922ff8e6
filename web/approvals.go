package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/contentflow/contentflow/core"
	"github.com/icza/gox/stringsx"
	"github.com/julienschmidt/httprouter"
)

var approvalsTmpl = tmpl(`<h1>My pending approvals</h1>

	{{ if not .Approvals }}
		<p>Nothing waits for your decision.</p>
	{{ end }}

	{{ range .Approvals }}
		<div class="card mb-2">
			<div class="card-body py-2">
				<a href="/workflow/{{ .WorkflowID }}">workflow {{ .WorkflowID }}</a>,
				quorum {{ .RequiredApprovals }} of {{ len .Approvers }},
				requested by {{ $.UserName .RequestedBy }} {{ $.Ago .TsRequested }}
				<form method="post" action="/approval/{{ .ID }}/respond" class="form-inline mt-1">
					<select class="form-control form-control-sm" name="decision">
						<option value="approved">approve</option>
						<option value="rejected">reject</option>
					</select>
					<input class="form-control form-control-sm mx-sm-2" name="comment" placeholder="Comment (optional)">
					<button type="submit" class="btn btn-sm btn-primary">Respond</button>
				</form>
			</div>
		</div>
	{{ end }}`)

type approvalsData struct {
	*context
	Approvals []*core.Approval
}

func approvals(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	pending, err := ctx.db.GetPendingApprovals(ctx.Actor())
	if err != nil {
		return err
	}

	return approvalsTmpl.Execute(w, &approvalsData{
		context:   ctx,
		Approvals: pending,
	})
}

func respond(w http.ResponseWriter, req *http.Request, ctx *context, params httprouter.Params) error {

	id, err := strconv.Atoi(params.ByName("id"))
	if err != nil {
		return err
	}

	var decision = core.Decision(req.PostFormValue("decision"))
	var comment = stringsx.Clean(strings.TrimSpace(req.PostFormValue("comment")))

	if _, err := ctx.db.RespondToApproval(id, decision, ctx.Actor(), comment); err != nil {
		ctx.Danger(err)
	} else {
		ctx.Success("your decision has been recorded")
	}

	if workflowID, err := strconv.Atoi(req.PostFormValue("workflow_id")); err == nil {
		ctx.SeeOther("/workflow/%d", workflowID)
	} else {
		ctx.SeeOther("/approvals")
	}
	return nil
}

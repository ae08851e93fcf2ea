package httpadapter

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/kirillkom/submission-vault/internal/core/domain"
	"github.com/kirillkom/submission-vault/internal/core/ports"
)

type uploadForm struct {
	FacultyID      string `form:"faculty_id"`
	CourseID       string `form:"course_id"`
	DocumentTypeID string `form:"document_type_id"`
	Semester       string `form:"semester"`
	AcademicYear   string `form:"academic_year"`
	Section        string `form:"section"`
}

func (f uploadForm) identity() domain.Identity {
	return domain.Identity{
		FacultyID:      strings.TrimSpace(f.FacultyID),
		CourseID:       strings.TrimSpace(f.CourseID),
		DocumentTypeID: strings.TrimSpace(f.DocumentTypeID),
		Semester:       strings.TrimSpace(f.Semester),
		AcademicYear:   strings.TrimSpace(f.AcademicYear),
	}
}

type reviewRequest struct {
	Action  string `json:"action"`
	Remarks string `json:"remarks"`
}

func (rt *Router) uploadSubmission(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	var fields uploadForm
	if err := rt.forms.Decode(&fields, r.MultipartForm.Value); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form fields"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	identity := fields.identity()
	actor := actorFromRequest(r)
	if actor == "" {
		actor = identity.FacultyID
	}

	sub, err := rt.deps.Uploader.Upload(r.Context(), ports.UploadRequest{
		Identity:    identity,
		Section:     strings.TrimSpace(fields.Section),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		SizeBytes:   header.Size,
		Body:        file,
		Actor:       actor,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (rt *Router) getSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := rt.deps.Reader.GetSubmission(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (rt *Router) listVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := rt.deps.Reader.ListVersions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

func (rt *Router) listTransitions(w http.ResponseWriter, r *http.Request) {
	transitions, err := rt.deps.Reader.ListTransitions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": transitions})
}

func (rt *Router) runContentAnalysis(w http.ResponseWriter, r *http.Request) {
	sub, err := rt.deps.Pipeline.RunContentAnalysis(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (rt *Router) reviewerAction(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		rt.writeError(w, r, err)
		return
	}
	action, err := domain.ParseReviewAction(req.Action)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	outcome, err := rt.deps.Pipeline.ReviewerAction(r.Context(), mux.Vars(r)["id"], action, actor, req.Remarks)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (rt *Router) approveAll(w http.ResponseWriter, r *http.Request) {
	actor, err := requireActor(r)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	var scope domain.ScopeFilter
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &scope); err != nil {
			rt.writeError(w, r, err)
			return
		}
	}

	result, err := rt.deps.Pipeline.ApproveAll(r.Context(), scope, actor)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) recentTransitions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	to := domain.StatusApproved
	if raw := query.Get("to"); raw != "" {
		parsed, err := domain.ParseStatus(raw)
		if err != nil {
			rt.writeError(w, r, err)
			return
		}
		to = parsed
	}
	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}

	transitions, err := rt.deps.Reader.RecentTransitions(r.Context(), to, limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": transitions})
}

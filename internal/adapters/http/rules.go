package httpadapter

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kirillkom/submission-vault/internal/core/domain"
)

func (rt *Router) listDocumentTypes(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	types, err := rt.deps.Rules.ListDocumentTypes(r.Context(), activeOnly)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_types": types})
}

func (rt *Router) saveDocumentType(w http.ResponseWriter, r *http.Request) {
	if _, err := requireActor(r); err != nil {
		rt.writeError(w, r, err)
		return
	}
	var docType domain.DocumentType
	if err := decodeJSON(r, &docType); err != nil {
		rt.writeError(w, r, err)
		return
	}
	docType.ID = mux.Vars(r)["id"]

	if err := rt.deps.Rules.SaveDocumentType(r.Context(), docType); err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, docType)
}

func (rt *Router) getRuleSet(w http.ResponseWriter, r *http.Request) {
	rules, err := rt.deps.Rules.GetRuleSet(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

func (rt *Router) saveRuleSet(w http.ResponseWriter, r *http.Request) {
	if _, err := requireActor(r); err != nil {
		rt.writeError(w, r, err)
		return
	}
	var in domain.RuleSetInput
	if err := decodeJSON(r, &in); err != nil {
		rt.writeError(w, r, err)
		return
	}

	rules, err := rt.deps.Rules.SaveRuleSet(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rules)
}

package api

import (
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"offboarding-workflow/internal/domain"
	"offboarding-workflow/internal/engine"
)

type actionRequest struct {
	Token    string                 `json:"token"`
	Decision string                 `json:"decision"`
	Notes    string                 `json:"notes,omitempty"`
	Assets   *domain.AssetChecklist `json:"assets,omitempty"`
}

// DescribeAction tells a link holder what they are being asked to decide.
func (h *Handler) DescribeAction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	token := r.URL.Query().Get("token")
	if token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "token is required"})
		return
	}
	view, err := h.workflow.Describe(ctx, token)
	if err != nil {
		writeLinkError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// SubmitAction applies a link holder's decision. Both JSON bodies and HTML
// form posts are accepted.
func (h *Handler) SubmitAction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	req, ok := decodeActionRequest(w, r)
	if !ok {
		return
	}
	if req.Token == "" {
		req.Token = r.URL.Query().Get("token")
	}
	if req.Token == "" || strings.TrimSpace(req.Decision) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "token and decision are required"})
		return
	}

	var opts []engine.ActionOption
	if req.Assets != nil {
		opts = append(opts, engine.WithAssets(*req.Assets))
	}
	out, err := h.workflow.ApplyAction(ctx, req.Token, req.Decision, req.Notes, opts...)
	if err != nil {
		writeLinkError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"submission_id":      out.Submission.ID,
		"resignation_status": out.Submission.ResignationStatus,
		"transition":         out.Transition,
		"next_step":          out.NextStep,
	})
}

func decodeActionRequest(w http.ResponseWriter, r *http.Request) (actionRequest, bool) {
	var req actionRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid form"})
			return req, false
		}
		req.Token = r.PostForm.Get("token")
		req.Decision = r.PostForm.Get("decision")
		req.Notes = r.PostForm.Get("notes")
		req.Assets = formAssets(r.PostForm)
	default:
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
			return req, false
		}
	}
	return req, true
}

// formAssets reads the IT checklist from an HTML form. It returns nil when the
// form carries none of the checklist fields.
func formAssets(form url.Values) *domain.AssetChecklist {
	checked := func(name string) (bool, bool) {
		if _, ok := form[name]; !ok {
			return false, false
		}
		v := strings.TrimSpace(form.Get(name))
		if v == "on" {
			return true, true
		}
		b, _ := strconv.ParseBool(v)
		return b, true
	}
	var assets domain.AssetChecklist
	var seen bool
	for _, f := range []struct {
		name string
		dst  *bool
	}{
		{"laptop", &assets.Laptop},
		{"mouse", &assets.Mouse},
		{"headphones", &assets.Headphones},
	} {
		if v, ok := checked(f.name); ok {
			*f.dst = v
			seen = true
		}
	}
	if _, ok := form["others"]; ok {
		assets.Others = form.Get("others")
		seen = true
	}
	if !seen {
		return nil
	}
	return &assets
}

package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"
	"unicode/utf8"
)

const mappingArchivePrefix = "archive/mappings"

func (h *Handler) SearchLeaders(w http.ResponseWriter, r *http.Request) {
	items := h.leaders.Search(r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// UploadMappings replaces the leader directory with an uploaded CSV sheet.
func (h *Handler) UploadMappings(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if err := r.ParseMultipartForm(h.cfg.AllowedUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid multipart payload"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file form field is required"})
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, h.cfg.AllowedUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read file"})
		return
	}
	if int64(len(body)) > h.cfg.AllowedUploadBytes {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file exceeds size limit"})
		return
	}
	if !isSupportedCSVUpload(body) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "mapping must be a UTF-8 CSV file"})
		return
	}

	count, err := h.leaders.Import(ctx, bytes.NewReader(body))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	if h.blob != nil {
		key := path.Join(mappingArchivePrefix, fmt.Sprintf("%s-%s", h.now().UTC().Format("20060102T150405Z"), path.Base(header.Filename)))
		if err := h.blob.PutObject(ctx, key, "text/csv", body); err != nil {
			// The directory is already replaced; only the archive copy is missing.
			logger.Warningf("archive mapping upload %s: %v", key, err)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"imported": count})
}

func isSupportedCSVUpload(body []byte) bool {
	if len(bytes.TrimSpace(body)) == 0 {
		return false
	}
	if bytes.IndexByte(body, 0) >= 0 {
		return false
	}
	return utf8.Valid(body)
}

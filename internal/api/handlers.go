// Package api provides the HTTP surface over the pipeline services.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"ragkb/internal/app"
	"ragkb/internal/domain"
	"ragkb/internal/parser"
)

// Handler holds the service dependencies for the HTTP handlers.
type Handler struct {
	app    *app.App
	logger *logrus.Logger
}

// NewHandler creates the HTTP handler set.
func NewHandler(a *app.App) *Handler {
	return &Handler{app: a, logger: a.Logger}
}

type errorResponse struct {
	Error string `json:"error"`
}

type createKBRequest struct {
	Name string `json:"name"`
}

type indexRequest struct {
	KBName   string `json:"kb_name"`
	Filename string `json:"filename"`
}

type retrieveRequest struct {
	Query  string `json:"query"`
	KBName string `json:"kb_name"`
	TopK   int    `json:"top_k"`
}

type chatRequest struct {
	Query  string `json:"query"`
	KBName string `json:"kb_name"`
	TopK   int    `json:"top_k"`
}

// HandleHealth reports process liveness and the configured providers.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"embedding":    h.app.Config.Embedding.Provider,
		"generation":   h.app.Config.Generation.Provider,
		"vector_store": h.app.Config.VectorStore.Provider,
	})
}

// HandleListKBs handles GET /knowledge-bases.
func (h *Handler) HandleListKBs(w http.ResponseWriter, r *http.Request) {
	kbs, err := h.app.Library.ListKBs(r.Context())
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"knowledge_bases": kbs})
}

// HandleCreateKB handles POST /knowledge-bases.
func (h *Handler) HandleCreateKB(w http.ResponseWriter, r *http.Request) {
	var req createKBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "a non-empty kb name is required"})
		return
	}
	if err := h.app.Library.CreateKB(r.Context(), strings.TrimSpace(req.Name)); err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	sendJSON(w, http.StatusCreated, map[string]any{"name": strings.TrimSpace(req.Name)})
}

// HandleDeleteKB handles DELETE /knowledge-bases/{kb}.
func (h *Handler) HandleDeleteKB(w http.ResponseWriter, r *http.Request) {
	kb := mux.Vars(r)["kb"]
	if err := h.app.Library.DeleteKB(r.Context(), kb); err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{"deleted": kb})
}

// HandleListFiles handles GET /knowledge-bases/{kb}/files.
func (h *Handler) HandleListFiles(w http.ResponseWriter, r *http.Request) {
	listing, err := h.app.Library.ListFiles(r.Context(), mux.Vars(r)["kb"])
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	sendJSON(w, http.StatusOK, listing)
}

// HandleDeleteFile handles DELETE /knowledge-bases/{kb}/files/{filename}.
func (h *Handler) HandleDeleteFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	existed, deleted, err := h.app.Library.DeleteFile(r.Context(), vars["filename"], vars["kb"])
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"filename":        vars["filename"],
		"existed_on_disk": existed,
		"vectors_deleted": deleted,
	})
}

// HandleCleanupOrphaned handles POST /knowledge-bases/{kb}/cleanup-orphaned.
func (h *Handler) HandleCleanupOrphaned(w http.ResponseWriter, r *http.Request) {
	files, deleted, err := h.app.Library.CleanupOrphaned(r.Context(), mux.Vars(r)["kb"])
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]any{
		"orphaned_files":  files,
		"vectors_deleted": deleted,
	})
}

// HandleUpload handles POST /upload: multipart upload plus ingestion.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	// strip any path components a client smuggles into the filename
	filename := filepath.Base(header.Filename)
	if !parser.Supported(filename) {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: domain.ErrUnsupportedFormat.Error() + ": " + filename})
		return
	}
	kbName := strings.TrimSpace(r.FormValue("kb_name"))
	if kbName == "" {
		kbName = h.app.Config.DefaultKB
	}
	content, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	result, err := h.app.Ingestion.IngestFile(r.Context(), content, filename, kbName, "")
	if err != nil {
		h.fail(w, statusFor(err), err)
		return
	}
	sendJSON(w, http.StatusOK, result)
}

// HandleIndex handles POST /index: re-index an already uploaded file.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.KBName == "" || req.Filename == "" {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "kb_name and filename are required"})
		return
	}
	result, err := h.app.Ingestion.Reindex(r.Context(), req.Filename, req.KBName)
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			sendJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	sendJSON(w, http.StatusOK, result)
}

// HandleRetrieve handles POST /retrieve.
func (h *Handler) HandleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" || req.KBName == "" {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "query and kb_name are required"})
		return
	}
	results, err := h.app.Retrieval.Retrieve(r.Context(), req.Query, req.KBName, req.TopK)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	out := make([]map[string]any, 0, len(results))
	for _, res := range results {
		out = append(out, map[string]any{
			"text":     res.Text,
			"score":    res.Score,
			"doc_id":   res.DocID,
			"metadata": res.Metadata,
		})
	}
	sendJSON(w, http.StatusOK, map[string]any{"results": out, "kb_name": req.KBName})
}

// HandleChat handles POST /chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" || req.KBName == "" {
		sendJSON(w, http.StatusBadRequest, errorResponse{Error: "query and kb_name are required"})
		return
	}
	answer, err := h.app.RAG.Ask(r.Context(), req.Query, req.KBName, req.TopK)
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}
	sendJSON(w, http.StatusOK, answer)
}

func (h *Handler) fail(w http.ResponseWriter, status int, err error) {
	h.logger.WithError(err).Error("request failed")
	sendJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrUnsupportedFormat) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter wires all routes onto a mux router.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)

	r.HandleFunc("/knowledge-bases", h.HandleListKBs).Methods(http.MethodGet)
	r.HandleFunc("/knowledge-bases", h.HandleCreateKB).Methods(http.MethodPost)
	r.HandleFunc("/knowledge-bases/{kb}", h.HandleDeleteKB).Methods(http.MethodDelete)
	r.HandleFunc("/knowledge-bases/{kb}/files", h.HandleListFiles).Methods(http.MethodGet)
	r.HandleFunc("/knowledge-bases/{kb}/files/{filename}", h.HandleDeleteFile).Methods(http.MethodDelete)
	r.HandleFunc("/knowledge-bases/{kb}/cleanup-orphaned", h.HandleCleanupOrphaned).Methods(http.MethodPost)

	r.HandleFunc("/upload", h.HandleUpload).Methods(http.MethodPost)
	r.HandleFunc("/index", h.HandleIndex).Methods(http.MethodPost)
	r.HandleFunc("/retrieve", h.HandleRetrieve).Methods(http.MethodPost)
	r.HandleFunc("/chat", h.HandleChat).Methods(http.MethodPost)
	return r
}

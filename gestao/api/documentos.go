package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/backend"
	"github.com/apae-gestao/apae/gestao"
)

// MaxTamanhoDocumento is the maximum size of an uploaded document
const MaxTamanhoDocumento = 10 << 20

// URLDocumento is the answer of the URL route of a document
type URLDocumento struct {
	URL    string    `json:"Url"`
	Expira time.Time `json:"Expira"`
}

func (h *handler) documentos(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsDocumento, core.OperationList) {
		return
	}
	id, err := backend.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	documentos, err := h.g.Documentos(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	backend.WriteJSON(w, r, http.StatusOK, documentos)
}

// enviarDocumento stores the raw request body as document. The content type
// is the one of the request, or detected from the content if missing.
func (h *handler) enviarDocumento(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsDocumento, core.OperationCreate) {
		return
	}
	id, err := backend.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxTamanhoDocumento+1))
	if err != nil {
		writeError(w, r, core.Validationf("cannot read body: %v", err))
		return
	}
	if len(data) > MaxTamanhoDocumento {
		http.Error(w, fmt.Sprintf("documento maior que %d MB", MaxTamanhoDocumento>>20), http.StatusRequestEntityTooLarge)
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" && len(data) > 0 {
		contentType = http.DetectContentType(data)
	}
	documento, err := h.g.EnviarDocumento(r.Context(), id, vars(r, "nome"), contentType, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	backend.WriteJSON(w, r, http.StatusCreated, documento)
}

func (h *handler) baixarDocumento(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsDocumento, core.OperationRead) {
		return
	}
	id, err := backend.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	nome := vars(r, "nome")
	data, contentType, err := h.g.BaixarDocumento(r.Context(), id, nome)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", nome))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *handler) urlDocumento(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsDocumento, core.OperationRead) {
		return
	}
	id, err := backend.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	url, err := h.g.URLDocumento(r.Context(), id, vars(r, "nome"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	backend.WriteJSON(w, r, http.StatusOK, URLDocumento{URL: url, Expira: time.Now().Add(gestao.ValidadeURL)})
}

func (h *handler) removerDocumento(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsDocumento, core.OperationDelete) {
		return
	}
	id, err := backend.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.g.RemoverDocumento(r.Context(), id, vars(r, "nome")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/backend"
	"github.com/apae-gestao/apae/core/export"
	"github.com/apae-gestao/apae/core/logger"
	"github.com/apae-gestao/apae/gestao"
)

// report formats
const (
	formatoJSON = "json"
	formatoXLSX = "xlsx"
)

// filtroRelatorio reads the report filter. The period defaults to the
// current month until today.
func (h *handler) filtroRelatorio(r *http.Request) (gestao.FiltroRelatorio, error) {
	var (
		f   gestao.FiltroRelatorio
		err error
	)
	hoje := h.g.Hoje()
	if f.De, err = queryDia(r, "de", hoje.PrimeiroDoMes()); err != nil {
		return f, err
	}
	if f.Ate, err = queryDia(r, "ate", hoje); err != nil {
		return f, err
	}
	if f.ProfissionalID, err = backend.QueryUUID(r, "profissionalId"); err != nil {
		return f, err
	}
	if f.AssistidoID, err = backend.QueryUUID(r, "assistidoId"); err != nil {
		return f, err
	}
	if f.ConvenioID, err = backend.QueryUUID(r, "convenioId"); err != nil {
		return f, err
	}
	return f, nil
}

// relatorio answers GET /api/relatorios/{tipo}.
//
// With formato=xlsx the report is a spreadsheet download. With arquivar=true
// the spreadsheet is stored and the answer is the archive with its download URL.
func (h *handler) relatorio(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsConsulta, core.OperationRead) {
		return
	}
	tipo := vars(r, "tipo")
	if !gestao.TipoRelatorioValido(tipo) {
		http.Error(w, fmt.Sprintf("relatório '%s' não existe", tipo), http.StatusNotFound)
		return
	}
	if err := backend.CheckParameters(r, "de", "ate", "profissionalId", "assistidoId", "convenioId", "formato", "arquivar"); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := h.filtroRelatorio(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	arquivar := false
	if value := r.URL.Query().Get("arquivar"); value != "" {
		if arquivar, err = strconv.ParseBool(value); err != nil {
			writeError(w, r, core.Validationf("parameter 'arquivar' must be true or false"))
			return
		}
	}
	ctx := r.Context()

	if arquivar {
		arquivo, err := h.g.Arquivar(ctx, tipo, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		backend.WriteJSON(w, r, http.StatusOK, arquivo)
		return
	}

	switch formato := r.URL.Query().Get("formato"); formato {
	case "", formatoJSON:
		linhas, err := h.g.Relatorio(ctx, tipo, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		backend.WriteJSON(w, r, http.StatusOK, linhas)
	case formatoXLSX:
		data, err := h.g.Planilha(ctx, tipo, f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		logger.FromContext(ctx).Debugf("report %s from %s to %s: %d bytes", tipo, f.De, f.Ate, len(data))
		w.Header().Set("Content-Type", export.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", gestao.NomeArquivo(tipo, f)))
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	default:
		writeError(w, r, core.Validationf("parameter 'formato' must be %s or %s", formatoJSON, formatoXLSX))
	}
}

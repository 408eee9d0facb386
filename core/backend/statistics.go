package backend

import (
	"fmt"
	"net/http"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/logger"
)

// tableStatistics represents information about a table
type tableStatistics struct {
	Tabela    string  `json:"tabela"`
	Registros int64   `json:"registros"`
	TamanhoMB float64 `json:"tamanho_mb"`
}

func (b *Backend) handleStatistics() {
	logger.Default().Debugln("statistics")
	logger.Default().Debugln("  handle statistics route: /api/estatisticas GET")
	b.router.HandleFunc("/api/estatisticas", func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Infoln("called route for", r.URL, r.Method)
		b.statisticsWithAuth(w, r)
	}).Methods(http.MethodOptions, http.MethodGet)
}

func (b *Backend) statisticsWithAuth(w http.ResponseWriter, r *http.Request) {
	if !b.Authorize(w, r, nil, core.OperationRead) {
		return
	}
	stats := []tableStatistics{} // do not return null in json, but empty array
	for _, table := range b.tables {
		row := b.db.QueryRowContext(r.Context(), fmt.Sprintf(`SELECT pg_total_relation_size('%s'), count(*) FROM %s`,
			b.db.Table(table), b.db.Table(table)))
		var size, count int64
		if err := row.Scan(&size, &count); err != nil {
			logger.FromContext(r.Context()).WithError(err).Errorln("Error 4028: Scan")
			http.Error(w, "Error 4028", http.StatusInternalServerError)
			return
		}
		stats = append(stats, tableStatistics{
			Tabela:    table,
			Registros: count,
			TamanhoMB: float64(size) / 1024. / 1024.,
		})
	}
	WriteJSON(w, r, http.StatusOK, stats)
}

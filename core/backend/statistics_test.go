package backend_test

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/apae-gestao/apae/core/backend"
	"github.com/apae-gestao/apae/core/client"
	"github.com/apae-gestao/apae/core/repository"
	"github.com/apae-gestao/apae/test"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStatistics verifies that /api/estatisticas reports the registered tables
func TestStatistics(t *testing.T) {
	db := test.Postgres(t)
	_, err := db.Exec(`CREATE TABLE ` + db.Table("tarefa") + ` (
id uuid PRIMARY KEY,
titulo varchar NOT NULL,
prioridade integer NOT NULL,
criado_em timestamptz NOT NULL);`)
	require.NoError(t, err)

	router := mux.NewRouter()
	b := backend.New(&backend.Builder{Router: router, DB: db, AuthorizationEnabled: true})
	backend.HandleResource(b, backend.Resource[tarefa, tarefa]{
		Name:    "tarefa",
		Service: repoService[tarefa]{repository.NewPostgres[tarefa](db, "tarefa")},
		Present: backend.Identity[tarefa],
	})
	admin := client.NewWithRouter(router).WithAdminAuthorization()

	numberOfElements := 14
	for i := 1; i <= numberOfElements; i++ {
		_, err := admin.Collection("tarefa").Create(tarefa{Titulo: "tarefa " + strconv.Itoa(i)}, nil)
		require.NoError(t, err)
	}

	var stats []struct {
		Tabela    string  `json:"tabela"`
		Registros int64   `json:"registros"`
		TamanhoMB float64 `json:"tamanho_mb"`
	}
	_, err = admin.RawGet("/api/estatisticas", &stats)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "tarefa", stats[0].Tabela)
	assert.Equal(t, int64(numberOfElements), stats[0].Registros)
	assert.Greater(t, stats[0].TamanhoMB, 0.0)

	status, _ := client.NewWithRouter(router).WithRole("recepcao").RawGet("/api/estatisticas", nil)
	assert.Equal(t, http.StatusForbidden, status)

	var health map[string]string
	_, err = admin.RawGet("/api/health", &health)
	require.NoError(t, err)
	assert.Equal(t, "ok", health["database"])
}

// Package api exposes the domain services of package gestao as REST API.
//
// The entities are plain collection resources under /api/{plural}. On top of
// them the package installs the login, the daily and weekly schedule, the
// appointment actions, the dashboard, the reports, the chapter settings and
// the documents of assistidos.
//
// Permits follow the perfis of profissionais: admin may do everything,
// recepcao manages the registry and the schedule, profissional reads the
// registry and records attendances.
package api

import (
	"errors"
	"net/http"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/access"
	"github.com/apae-gestao/apae/core/backend"
	"github.com/apae-gestao/apae/core/logger"
	"github.com/apae-gestao/apae/gestao"
	"github.com/gorilla/mux"
)

var (
	leitura  = []core.Operation{core.OperationRead, core.OperationList}
	completo = []core.Operation{core.OperationRead, core.OperationList, core.OperationCreate, core.OperationUpdate, core.OperationDelete}
)

// permits of the resources and routes
var (
	permitsCadastro = []access.Permit{
		{Role: gestao.PerfilRecepcao, Operations: completo},
		{Role: access.RoleEverybody, Operations: leitura},
	}
	permitsProfissional = []access.Permit{
		{Role: access.RoleEverybody, Operations: leitura},
	}
	permitsAtendimento = []access.Permit{
		{Role: gestao.PerfilProfissional, Operations: []core.Operation{core.OperationCreate, core.OperationUpdate}},
		{Role: access.RoleEverybody, Operations: leitura},
	}
	permitsConsulta = []access.Permit{
		{Role: access.RoleEverybody, Operations: []core.Operation{core.OperationRead}},
	}
	permitsCancelar = []access.Permit{
		{Role: gestao.PerfilRecepcao, Operations: []core.Operation{core.OperationUpdate}},
	}
	permitsConcluir = []access.Permit{
		{Role: gestao.PerfilRecepcao, Operations: []core.Operation{core.OperationUpdate}},
		{Role: gestao.PerfilProfissional, Operations: []core.Operation{core.OperationUpdate}},
	}
	permitsRegistro = []access.Permit{
		{Role: gestao.PerfilRecepcao, Operations: []core.Operation{core.OperationCreate}},
		{Role: gestao.PerfilProfissional, Operations: []core.Operation{core.OperationCreate}},
	}
	permitsDocumento = []access.Permit{
		{Role: gestao.PerfilRecepcao, Operations: completo},
		{Role: gestao.PerfilProfissional, Operations: []core.Operation{core.OperationCreate}},
		{Role: access.RoleEverybody, Operations: leitura},
	}
	permitsLogin = []access.Permit{
		{Role: access.RolePublic, Operations: []core.Operation{core.OperationCreate}},
	}
)

type handler struct {
	b *backend.Backend
	g *gestao.Gestao
}

// Register installs the routes of the domain on the backend
func Register(b *backend.Backend, g *gestao.Gestao) {
	backend.HandleResource(b, backend.Resource[gestao.Municipio, gestao.Municipio]{
		Name:     gestao.TabelaMunicipio,
		Service:  g.Municipios,
		Present:  backend.Identity[gestao.Municipio],
		Permits:  permitsCadastro,
		SchemaID: gestao.SchemaID(gestao.TabelaMunicipio),
	})
	backend.HandleResource(b, backend.Resource[gestao.Convenio, gestao.Convenio]{
		Name:     gestao.TabelaConvenio,
		Service:  g.Convenios,
		Present:  backend.Identity[gestao.Convenio],
		Permits:  permitsCadastro,
		SchemaID: gestao.SchemaID(gestao.TabelaConvenio),
	})
	backend.HandleResource(b, backend.Resource[gestao.Profissional, gestao.ProfissionalDTO]{
		Name:     gestao.TabelaProfissional,
		Service:  g.Profissionais,
		Present:  g.PresentProfissionais,
		Permits:  permitsProfissional,
		SchemaID: gestao.SchemaID(gestao.TabelaProfissional),
	})
	backend.HandleResource(b, backend.Resource[gestao.Assistido, gestao.AssistidoDTO]{
		Name:     gestao.TabelaAssistido,
		Service:  g.Assistidos,
		Present:  g.PresentAssistidos,
		Permits:  permitsCadastro,
		SchemaID: gestao.SchemaID(gestao.TabelaAssistido),
	})
	backend.HandleResource(b, backend.Resource[gestao.Agendamento, gestao.AgendamentoDTO]{
		Name:     gestao.TabelaAgendamento,
		Service:  g.Agendamentos,
		Present:  g.PresentAgendamentos,
		Permits:  permitsCadastro,
		SchemaID: gestao.SchemaID(gestao.TabelaAgendamento),
	})
	backend.HandleResource(b, backend.Resource[gestao.Atendimento, gestao.AtendimentoDTO]{
		Name:     gestao.TabelaAtendimento,
		Service:  g.Atendimentos,
		Present:  g.PresentAtendimentos,
		Permits:  permitsAtendimento,
		SchemaID: gestao.SchemaID(gestao.TabelaAtendimento),
	})

	h := &handler{b: b, g: g}
	router := b.Router()
	logger.Default().Debugln("install domain routes")

	router.HandleFunc("/api/auth/login", h.login).Methods(http.MethodOptions, http.MethodPost)
	router.HandleFunc("/api/auth/logout", h.logout).Methods(http.MethodOptions, http.MethodPost)
	router.HandleFunc("/api/auth/me", h.me).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc("/api/agenda", h.agendaDoDia).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/api/agenda/periodo", h.agendaDoPeriodo).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/api/agendamentos/{id}/cancelar", h.cancelar).Methods(http.MethodOptions, http.MethodPost)
	router.HandleFunc("/api/agendamentos/{id}/concluir", h.concluir).Methods(http.MethodOptions, http.MethodPost)
	router.HandleFunc("/api/agendamentos/{id}/atendimento", h.registrarAtendimento).Methods(http.MethodOptions, http.MethodPost)

	router.HandleFunc("/api/dashboard", h.dashboard).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/api/relatorios/{tipo}", h.relatorio).Methods(http.MethodOptions, http.MethodGet)

	router.HandleFunc("/api/configuracao", h.configuracao).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/api/configuracao", h.salvarConfiguracao).Methods(http.MethodOptions, http.MethodPut)

	router.HandleFunc("/api/assistidos/{id}/documentos", h.documentos).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/api/assistidos/{id}/documentos/{nome}", h.baixarDocumento).Methods(http.MethodOptions, http.MethodGet)
	router.HandleFunc("/api/assistidos/{id}/documentos/{nome}", h.enviarDocumento).Methods(http.MethodOptions, http.MethodPut)
	router.HandleFunc("/api/assistidos/{id}/documentos/{nome}", h.removerDocumento).Methods(http.MethodOptions, http.MethodDelete)
	router.HandleFunc("/api/assistidos/{id}/documentos/{nome}/url", h.urlDocumento).Methods(http.MethodOptions, http.MethodGet)
}

// writeError extends backend.WriteError with the errors of the domain
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, gestao.ErrCredenciaisInvalidas):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.Is(err, gestao.ErrInativo):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, gestao.ErrSemArmazenamento):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		backend.WriteError(w, r, err)
	}
}

// queryDia parses the query parameter name as Dia
func queryDia(r *http.Request, name string, fallback gestao.Dia) (gestao.Dia, error) {
	t, err := backend.QueryDay(r, name, fallback.Time())
	if err != nil {
		return gestao.Dia{}, err
	}
	return gestao.NovoDia(t), nil
}

func vars(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

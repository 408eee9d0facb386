package api

import (
	"net/http"
	"time"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/access"
	"github.com/apae-gestao/apae/core/backend"
	"github.com/apae-gestao/apae/gestao"
	"github.com/google/uuid"
)

type credenciais struct {
	Email string `json:"Email"`
	Senha string `json:"Senha"`
}

// login answers with a session and sets the token cookie for browsers
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsLogin, core.OperationCreate) {
		return
	}
	var c credenciais
	if err := backend.ReadJSON(r, &c); err != nil {
		writeError(w, r, err)
		return
	}
	sessao, err := h.g.Login(r.Context(), c.Email, c.Senha)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     access.CookieName,
		Value:    sessao.Token,
		Path:     "/",
		Expires:  sessao.Expira,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	backend.WriteJSON(w, r, http.StatusOK, sessao)
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     access.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsConsulta, core.OperationRead) {
		return
	}
	p, err := h.g.Me(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	backend.WriteJSON(w, r, http.StatusOK, p)
}

// profissionalDaAgenda returns the profissional filter of a schedule request.
// Without parameter, a profissional sees its own schedule.
func (h *handler) profissionalDaAgenda(r *http.Request) (*uuid.UUID, error) {
	id, err := backend.QueryUUID(r, "profissionalId")
	if err != nil || id != nil {
		return id, err
	}
	auth := h.b.Authorization(r)
	if auth.HasRole(gestao.PerfilProfissional) && auth.ProfissionalID != uuid.Nil {
		own := auth.ProfissionalID
		return &own, nil
	}
	return nil, nil
}

func (h *handler) agendaDoDia(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsConsulta, core.OperationRead) {
		return
	}
	if err := backend.CheckParameters(r, "data", "profissionalId"); err != nil {
		writeError(w, r, err)
		return
	}
	dia, err := queryDia(r, "data", h.g.Hoje())
	if err != nil {
		writeError(w, r, err)
		return
	}
	profissionalID, err := h.profissionalDaAgenda(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	itens, err := h.g.AgendaDoDia(r.Context(), dia, profissionalID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	backend.WriteJSON(w, r, http.StatusOK, gestao.DiaAgenda{Data: dia, Itens: itens})
}

// agendaDoPeriodo defaults to the week, monday to sunday, of today
func (h *handler) agendaDoPeriodo(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsConsulta, core.OperationRead) {
		return
	}
	if err := backend.CheckParameters(r, "de", "ate", "profissionalId"); err != nil {
		writeError(w, r, err)
		return
	}
	hoje := h.g.Hoje()
	segunda := hoje.AddDays(-((int(hoje.Weekday()) + 6) % 7))
	de, err := queryDia(r, "de", segunda)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ate, err := queryDia(r, "ate", de.AddDays(6))
	if err != nil {
		writeError(w, r, err)
		return
	}
	profissionalID, err := h.profissionalDaAgenda(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dias, err := h.g.AgendaDoPeriodo(r.Context(), de, ate, profissionalID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	backend.WriteJSON(w, r, http.StatusOK, dias)
}

// writeAgendamento writes the presentation of a
func (h *handler) writeAgendamento(w http.ResponseWriter, r *http.Request, a *gestao.Agendamento) {
	dtos, err := h.g.PresentAgendamentos(r.Context(), []gestao.Agendamento{*a})
	if err != nil {
		writeError(w, r, err)
		return
	}
	backend.WriteJSON(w, r, http.StatusOK, dtos[0])
}

func (h *handler) cancelar(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsCancelar, core.OperationUpdate) {
		return
	}
	id, err := backend.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.g.Cancelar(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeAgendamento(w, r, a)
}

func (h *handler) concluir(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsConcluir, core.OperationUpdate) {
		return
	}
	id, err := backend.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	a, err := h.g.Concluir(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeAgendamento(w, r, a)
}

// registrarAtendimento records the attendance of one occurrence of an
// appointment. Without Data in the body, the occurrence is today's.
func (h *handler) registrarAtendimento(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsRegistro, core.OperationCreate) {
		return
	}
	id, err := backend.PathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	registro := gestao.RegistroAtendimento{Data: h.g.Hoje(), Presente: true}
	if err := backend.ReadJSON(r, &registro); err != nil {
		writeError(w, r, err)
		return
	}
	atendimento, err := h.g.RegistrarAtendimento(r.Context(), id, registro)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dtos, err := h.g.PresentAtendimentos(r.Context(), []gestao.Atendimento{*atendimento})
	if err != nil {
		writeError(w, r, err)
		return
	}
	backend.WriteJSON(w, r, http.StatusCreated, dtos[0])
}

func (h *handler) dashboard(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsConsulta, core.OperationRead) {
		return
	}
	if err := backend.CheckParameters(r, "data"); err != nil {
		writeError(w, r, err)
		return
	}
	dia, err := queryDia(r, "data", h.g.Hoje())
	if err != nil {
		writeError(w, r, err)
		return
	}
	resumo, err := h.g.Resumo(r.Context(), dia)
	if err != nil {
		writeError(w, r, err)
		return
	}
	backend.WriteJSON(w, r, http.StatusOK, resumo)
}

func (h *handler) configuracao(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsConsulta, core.OperationRead) {
		return
	}
	c, err := h.g.Configuracao(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	backend.WriteJSON(w, r, http.StatusOK, c)
}

// salvarConfiguracao is for admins only
func (h *handler) salvarConfiguracao(w http.ResponseWriter, r *http.Request) {
	if !h.b.Authorize(w, r, permitsConsulta, core.OperationUpdate) {
		return
	}
	var c gestao.Configuracao
	if err := h.b.ReadValidJSON(r, gestao.SchemaID("configuracao"), &c); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.g.SalvarConfiguracao(r.Context(), &c); err != nil {
		writeError(w, r, err)
		return
	}
	backend.WriteJSON(w, r, http.StatusOK, &c)
}

package gestao

import (
	"context"
	"time"

	"github.com/apae-gestao/apae/core/repository"
	"github.com/google/uuid"
)

// ProfissionalDTO is the presentation of a Profissional. It never carries the password.
type ProfissionalDTO struct {
	ID                   uuid.UUID `json:"Id"`
	Nome                 string    `json:"Nome"`
	Email                string    `json:"Email"`
	CPF                  *string   `json:"CPF"`
	Especialidade        *string   `json:"Especialidade"`
	RegistroProfissional *string   `json:"RegistroProfissional"`
	Telefone             *string   `json:"Telefone"`
	Perfil               string    `json:"Perfil"`
	Ativo                bool      `json:"Ativo"`
	CriadoEm             time.Time `json:"CriadoEm"`
}

// NewProfissionalDTO presents p
func NewProfissionalDTO(p Profissional) ProfissionalDTO {
	return ProfissionalDTO{
		ID:                   p.ID,
		Nome:                 p.Nome,
		Email:                p.Email,
		CPF:                  p.CPF,
		Especialidade:        p.Especialidade,
		RegistroProfissional: p.RegistroProfissional,
		Telefone:             p.Telefone,
		Perfil:               p.Perfil,
		Ativo:                p.Ativo,
		CriadoEm:             p.CriadoEm,
	}
}

// AssistidoDTO is the presentation of an Assistido
type AssistidoDTO struct {
	Assistido
	Idade         int     `json:"Idade"`
	MunicipioNome *string `json:"MunicipioNome"`
	ConvenioNome  *string `json:"ConvenioNome"`
}

// AgendamentoDTO is the presentation of an Agendamento
type AgendamentoDTO struct {
	Agendamento
	AssistidoNome    string `json:"AssistidoNome"`
	ProfissionalNome string `json:"ProfissionalNome"`
}

// AtendimentoDTO is the presentation of an Atendimento
type AtendimentoDTO struct {
	Atendimento
	AssistidoNome    string `json:"AssistidoNome"`
	ProfissionalNome string `json:"ProfissionalNome"`
}

// Idade returns the age in full years on day em of somebody born on nascimento
func Idade(nascimento, em Dia) int {
	if nascimento.IsZero() || em.Before(nascimento) {
		return 0
	}
	n, e := nascimento.Time(), em.Time()
	idade := e.Year() - n.Year()
	if e.Month() < n.Month() || (e.Month() == n.Month() && e.Day() < n.Day()) {
		idade--
	}
	return idade
}

// carregar returns the items with the given ids. Missing items are left out
// of the map.
func carregar[T any](ctx context.Context, repo repository.Repository[T], ids map[uuid.UUID]bool) (map[uuid.UUID]*T, error) {
	result := make(map[uuid.UUID]*T, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	values := make([]interface{}, 0, len(ids))
	for id := range ids {
		values = append(values, id)
	}
	items, err := repo.List(ctx, repository.Query{}.Where(repository.In("id", values...)))
	if err != nil {
		return nil, err
	}
	table := repo.Table()
	for i := range items {
		result[table.ID(&items[i])] = &items[i]
	}
	return result, nil
}

// nomes returns the names of the items with the given ids
func nomes[T any](ctx context.Context, repo repository.Repository[T], ids map[uuid.UUID]bool, nome func(*T) string) (map[uuid.UUID]string, error) {
	items, err := carregar(ctx, repo, ids)
	if err != nil {
		return nil, err
	}
	result := make(map[uuid.UUID]string, len(items))
	for id, item := range items {
		result[id] = nome(item)
	}
	return result, nil
}

func nomeMunicipio(m *Municipio) string       { return m.Nome + "/" + m.UF }
func nomeConvenio(c *Convenio) string         { return c.Nome }
func nomeAssistido(a *Assistido) string       { return a.Nome }
func nomeProfissional(p *Profissional) string { return p.Nome }

func nomeOuNil(names map[uuid.UUID]string, id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	if n, ok := names[*id]; ok {
		return &n
	}
	return nil
}

// PresentProfissionais maps profissionais to their presentation
func (g *Gestao) PresentProfissionais(ctx context.Context, items []Profissional) ([]ProfissionalDTO, error) {
	result := make([]ProfissionalDTO, len(items))
	for i := range items {
		result[i] = NewProfissionalDTO(items[i])
	}
	return result, nil
}

// PresentAssistidos maps assistidos to their presentation, resolving
// município and convênio names in bulk
func (g *Gestao) PresentAssistidos(ctx context.Context, items []Assistido) ([]AssistidoDTO, error) {
	municipioIDs, convenioIDs := map[uuid.UUID]bool{}, map[uuid.UUID]bool{}
	for _, a := range items {
		if a.MunicipioID != nil {
			municipioIDs[*a.MunicipioID] = true
		}
		if a.ConvenioID != nil {
			convenioIDs[*a.ConvenioID] = true
		}
	}
	municipios, err := nomes(ctx, g.store.Municipios, municipioIDs, nomeMunicipio)
	if err != nil {
		return nil, err
	}
	convenios, err := nomes(ctx, g.store.Convenios, convenioIDs, nomeConvenio)
	if err != nil {
		return nil, err
	}
	hoje := g.Hoje()
	result := make([]AssistidoDTO, len(items))
	for i, a := range items {
		result[i] = AssistidoDTO{
			Assistido:     a,
			Idade:         Idade(a.DataNascimento, hoje),
			MunicipioNome: nomeOuNil(municipios, a.MunicipioID),
			ConvenioNome:  nomeOuNil(convenios, a.ConvenioID),
		}
	}
	return result, nil
}

// participantes returns the names of the assistidos and profissionais referenced by
// the given pairs of ids
func (g *Gestao) participantes(ctx context.Context, assistidoIDs, profissionalIDs map[uuid.UUID]bool) (map[uuid.UUID]string, map[uuid.UUID]string, error) {
	assistidos, err := nomes(ctx, g.store.Assistidos, assistidoIDs, nomeAssistido)
	if err != nil {
		return nil, nil, err
	}
	profissionais, err := nomes(ctx, g.store.Profissionais, profissionalIDs, nomeProfissional)
	if err != nil {
		return nil, nil, err
	}
	return assistidos, profissionais, nil
}

// PresentAgendamentos maps agendamentos to their presentation
func (g *Gestao) PresentAgendamentos(ctx context.Context, items []Agendamento) ([]AgendamentoDTO, error) {
	assistidoIDs, profissionalIDs := map[uuid.UUID]bool{}, map[uuid.UUID]bool{}
	for _, a := range items {
		assistidoIDs[a.AssistidoID] = true
		profissionalIDs[a.ProfissionalID] = true
	}
	assistidos, profissionais, err := g.participantes(ctx, assistidoIDs, profissionalIDs)
	if err != nil {
		return nil, err
	}
	result := make([]AgendamentoDTO, len(items))
	for i, a := range items {
		result[i] = AgendamentoDTO{
			Agendamento:      a,
			AssistidoNome:    assistidos[a.AssistidoID],
			ProfissionalNome: profissionais[a.ProfissionalID],
		}
	}
	return result, nil
}

// PresentAtendimentos maps atendimentos to their presentation
func (g *Gestao) PresentAtendimentos(ctx context.Context, items []Atendimento) ([]AtendimentoDTO, error) {
	assistidoIDs, profissionalIDs := map[uuid.UUID]bool{}, map[uuid.UUID]bool{}
	for _, a := range items {
		assistidoIDs[a.AssistidoID] = true
		profissionalIDs[a.ProfissionalID] = true
	}
	assistidos, profissionais, err := g.participantes(ctx, assistidoIDs, profissionalIDs)
	if err != nil {
		return nil, err
	}
	result := make([]AtendimentoDTO, len(items))
	for i, a := range items {
		result[i] = AtendimentoDTO{
			Atendimento:      a,
			AssistidoNome:    assistidos[a.AssistidoID],
			ProfissionalNome: profissionais[a.ProfissionalID],
		}
	}
	return result, nil
}

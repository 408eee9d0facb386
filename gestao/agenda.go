package gestao

import (
	"context"
	"sort"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/repository"
	"github.com/google/uuid"
)

// MaxDiasPeriodo is the longest period of AgendaDoPeriodo, in days
const MaxDiasPeriodo = 62

// ItemAgenda is one occurrence of an appointment on a day
type ItemAgenda struct {
	AgendamentoDTO
	DataOcorrencia Dia `json:"DataOcorrencia"`
	// AtendimentoID is set when the occurrence was already registered
	AtendimentoID *uuid.UUID `json:"AtendimentoId"`
	Presente      *bool      `json:"Presente"`
}

// DiaAgenda is the schedule of one day
type DiaAgenda struct {
	Data  Dia          `json:"Data"`
	Itens []ItemAgenda `json:"Itens"`
}

// RegistroAtendimento is the attendance of an appointment occurrence
type RegistroAtendimento struct {
	Data          Dia     `json:"Data"`
	Presente      bool    `json:"Presente"`
	Justificativa *string `json:"Justificativa"`
	Evolucao      *string `json:"Evolucao"`
}

// OccursOn reports whether the appointment takes place on dia.
//
// A non-recurring appointment occurs on its Data. A recurring one occurs on
// every day from Data until DataFimRecorrencia, inclusive, whose weekday is
// listed in DiasSemana, or is the weekday of Data if DiasSemana is empty.
// Cancelled appointments never occur.
func OccursOn(a *Agendamento, dia Dia) bool {
	if a.Status == StatusCancelado {
		return false
	}
	if !a.Recorrente {
		return a.Data.Equal(dia)
	}
	if dia.Before(a.Data) {
		return false
	}
	if a.DataFimRecorrencia != nil && dia.After(*a.DataFimRecorrencia) {
		return false
	}
	weekday := int64(dia.Weekday())
	if len(a.DiasSemana) == 0 {
		return weekday == int64(a.Data.Weekday())
	}
	for _, d := range a.DiasSemana {
		if d == weekday {
			return true
		}
	}
	return false
}

// AgendaDoDia returns the appointments occurring on dia, optionally of one
// profissional only, ordered by start time and assistido name
func (g *Gestao) AgendaDoDia(ctx context.Context, dia Dia, profissionalID *uuid.UUID) ([]ItemAgenda, error) {
	if dia.IsZero() {
		return nil, core.Validationf("data é obrigatória")
	}
	dias, err := g.agenda(ctx, dia, dia, profissionalID)
	if err != nil {
		return nil, err
	}
	return dias[0].Itens, nil
}

// AgendaDoPeriodo returns the schedule of every day from de until ate, inclusive
func (g *Gestao) AgendaDoPeriodo(ctx context.Context, de, ate Dia, profissionalID *uuid.UUID) ([]DiaAgenda, error) {
	if de.IsZero() || ate.IsZero() {
		return nil, core.Validationf("de e ate são obrigatórios")
	}
	if ate.Before(de) {
		return nil, core.Validationf("ate não pode ser anterior a de")
	}
	if de.DiasAte(ate) >= MaxDiasPeriodo {
		return nil, core.Validationf("o período pode ter no máximo %d dias", MaxDiasPeriodo)
	}
	return g.agenda(ctx, de, ate, profissionalID)
}

func (g *Gestao) agenda(ctx context.Context, de, ate Dia, profissionalID *uuid.UUID) ([]DiaAgenda, error) {
	q := repository.Query{}.Where(repository.Lte("data", ate))
	if profissionalID != nil {
		q = q.Where(repository.Eq("profissional_id", *profissionalID))
	}
	candidatos, err := g.store.Agendamentos.List(ctx, q)
	if err != nil {
		return nil, err
	}
	agendamentos := candidatos[:0]
	for _, a := range candidatos {
		if a.Status == StatusCancelado {
			continue
		}
		if !a.Recorrente && a.Data.Before(de) {
			continue
		}
		if a.Recorrente && a.DataFimRecorrencia != nil && a.DataFimRecorrencia.Before(de) {
			continue
		}
		agendamentos = append(agendamentos, a)
	}
	presented, err := g.PresentAgendamentos(ctx, agendamentos)
	if err != nil {
		return nil, err
	}

	// registered occurrences by agendamento and day
	registrados := map[uuid.UUID]map[string]Atendimento{}
	if len(agendamentos) > 0 {
		atendimentos, err := g.store.Atendimentos.List(ctx, repository.Query{}.Where(
			repository.Gte("data", de),
			repository.Lte("data", ate),
		))
		if err != nil {
			return nil, err
		}
		for _, at := range atendimentos {
			if at.AgendamentoID == nil {
				continue
			}
			m, ok := registrados[*at.AgendamentoID]
			if !ok {
				m = map[string]Atendimento{}
				registrados[*at.AgendamentoID] = m
			}
			m[at.Data.String()] = at
		}
	}

	var result []DiaAgenda
	for dia := de; !dia.After(ate); dia = dia.AddDays(1) {
		itens := []ItemAgenda{}
		for i := range presented {
			if !OccursOn(&presented[i].Agendamento, dia) {
				continue
			}
			item := ItemAgenda{AgendamentoDTO: presented[i], DataOcorrencia: dia}
			if at, ok := registrados[presented[i].ID][dia.String()]; ok {
				id, presente := at.ID, at.Presente
				item.AtendimentoID = &id
				item.Presente = &presente
			}
			itens = append(itens, item)
		}
		sort.SliceStable(itens, func(i, j int) bool {
			if itens[i].HoraInicio != itens[j].HoraInicio {
				return itens[i].HoraInicio < itens[j].HoraInicio
			}
			return itens[i].AssistidoNome < itens[j].AssistidoNome
		})
		result = append(result, DiaAgenda{Data: dia, Itens: itens})
	}
	return result, nil
}

// Cancelar cancels an appointment
func (g *Gestao) Cancelar(ctx context.Context, id uuid.UUID) (*Agendamento, error) {
	a, err := g.Agendamentos.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCancelado {
		return nil, core.Validationf("agendamento já está cancelado")
	}
	a.Status = StatusCancelado
	if err := g.Agendamentos.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Concluir marks an appointment as done
func (g *Gestao) Concluir(ctx context.Context, id uuid.UUID) (*Agendamento, error) {
	a, err := g.Agendamentos.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch a.Status {
	case StatusCancelado:
		return nil, core.Validationf("agendamento cancelado não pode ser concluído")
	case StatusConcluido:
		return nil, core.Validationf("agendamento já está concluído")
	}
	a.Status = StatusConcluido
	if err := g.Agendamentos.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// RegistrarAtendimento records the attendance of the occurrence of an
// appointment on r.Data. A second record of the same occurrence is a
// conflict. A non-recurring appointment is done once registered.
func (g *Gestao) RegistrarAtendimento(ctx context.Context, agendamentoID uuid.UUID, r RegistroAtendimento) (*Atendimento, error) {
	a, err := g.Agendamentos.Get(ctx, agendamentoID)
	if err != nil {
		return nil, err
	}
	if r.Data.IsZero() {
		return nil, core.Validationf("Data é obrigatória")
	}
	if !OccursOn(a, r.Data) {
		return nil, core.Validationf("agendamento não ocorre em %s", r.Data.Formatado())
	}
	atendimento := &Atendimento{
		AgendamentoID:  &a.ID,
		AssistidoID:    a.AssistidoID,
		ProfissionalID: a.ProfissionalID,
		Data:           r.Data,
		Presente:       r.Presente,
		Justificativa:  r.Justificativa,
		Evolucao:       r.Evolucao,
	}
	if err := g.Atendimentos.Create(ctx, atendimento); err != nil {
		return nil, err
	}
	if !a.Recorrente && a.Status == StatusAgendado {
		a.Status = StatusConcluido
		if err := g.Agendamentos.Update(ctx, a); err != nil {
			return nil, err
		}
	}
	return atendimento, nil
}

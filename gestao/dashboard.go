package gestao

import (
	"context"
	"math"
	"sort"

	"github.com/apae-gestao/apae/core/repository"
	"github.com/google/uuid"
)

// buckets for assistidos without convênio or município
const (
	SemConvenio  = "Sem convênio"
	SemMunicipio = "Sem município"
)

// Contagem is the count of one convênio, município or profissional. ID is
// nil for the buckets SemConvenio and SemMunicipio.
type Contagem struct {
	ID    *uuid.UUID `json:"Id"`
	Nome  string     `json:"Nome"`
	Total int        `json:"Total"`
}

// Resumo holds the figures of the dashboard
type Resumo struct {
	Data                        Dia        `json:"Data"`
	TotalAssistidos             int        `json:"TotalAssistidos"`
	AssistidosAtivos            int        `json:"AssistidosAtivos"`
	TotalProfissionais          int        `json:"TotalProfissionais"`
	ProfissionaisAtivos         int        `json:"ProfissionaisAtivos"`
	ConveniosAtivos             int        `json:"ConveniosAtivos"`
	AgendamentosHoje            int        `json:"AgendamentosHoje"`
	AtendimentosMes             int        `json:"AtendimentosMes"`
	PresencasMes                int        `json:"PresencasMes"`
	FaltasMes                   int        `json:"FaltasMes"`
	TaxaPresenca                float64    `json:"TaxaPresenca"`
	AssistidosPorConvenio       []Contagem `json:"AssistidosPorConvenio"`
	AssistidosPorMunicipio      []Contagem `json:"AssistidosPorMunicipio"`
	AtendimentosPorProfissional []Contagem `json:"AtendimentosPorProfissional"`
}

// Percentual returns part of total in percent rounded to two decimals, 0 for
// an empty total
func Percentual(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part)*10000/float64(total)) / 100
}

// contador counts by id. Equal names of different ids stay apart.
type contador map[uuid.UUID]*Contagem

// add counts one for id, or for the bucket semNome if id is nil
func (c contador) add(id *uuid.UUID, nomes map[uuid.UUID]string, semNome string) {
	key := uuid.Nil
	if id != nil {
		key = *id
	}
	if cont, ok := c[key]; ok {
		cont.Total++
		return
	}
	cont := &Contagem{Nome: semNome, Total: 1}
	if id != nil {
		cont.ID = &key
		cont.Nome = nomes[key]
	}
	c[key] = cont
}

// conhecido returns id if it has a name, nil for missing and dangling references
func conhecido(nomes map[uuid.UUID]string, id *uuid.UUID) *uuid.UUID {
	if nomeOuNil(nomes, id) == nil {
		return nil
	}
	return id
}

// contagens returns the counts ordered by total descending, then name
func (c contador) contagens() []Contagem {
	result := make([]Contagem, 0, len(c))
	for _, cont := range c {
		result = append(result, *cont)
	}
	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.Nome != b.Nome {
			return a.Nome < b.Nome
		}
		if a.ID == nil || b.ID == nil {
			return b.ID == nil
		}
		return a.ID.String() < b.ID.String()
	})
	return result
}

// Resumo computes the dashboard of dia. Monthly figures cover the month of dia
// up to its last day. Distributions count active assistidos only.
func (g *Gestao) Resumo(ctx context.Context, dia Dia) (*Resumo, error) {
	if dia.IsZero() {
		dia = g.Hoje()
	}
	r := &Resumo{Data: dia}

	assistidos, err := g.store.Assistidos.List(ctx, repository.Query{})
	if err != nil {
		return nil, err
	}
	profissionais, err := g.store.Profissionais.List(ctx, repository.Query{})
	if err != nil {
		return nil, err
	}
	r.ConveniosAtivos, err = count(ctx, g.store.Convenios, repository.Eq("ativo", true))
	if err != nil {
		return nil, err
	}

	municipioIDs, convenioIDs := map[uuid.UUID]bool{}, map[uuid.UUID]bool{}
	for _, a := range assistidos {
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

	r.TotalAssistidos = len(assistidos)
	porConvenio, porMunicipio := contador{}, contador{}
	for _, a := range assistidos {
		if !a.Ativo {
			continue
		}
		r.AssistidosAtivos++
		porConvenio.add(conhecido(convenios, a.ConvenioID), convenios, SemConvenio)
		porMunicipio.add(conhecido(municipios, a.MunicipioID), municipios, SemMunicipio)
	}
	r.AssistidosPorConvenio = porConvenio.contagens()
	r.AssistidosPorMunicipio = porMunicipio.contagens()

	r.TotalProfissionais = len(profissionais)
	nomesProfissionais := map[uuid.UUID]string{}
	for _, p := range profissionais {
		nomesProfissionais[p.ID] = p.Nome
		if p.Ativo {
			r.ProfissionaisAtivos++
		}
	}

	hoje, err := g.AgendaDoDia(ctx, dia, nil)
	if err != nil {
		return nil, err
	}
	r.AgendamentosHoje = len(hoje)

	atendimentos, err := g.store.Atendimentos.List(ctx, repository.Query{}.Where(
		repository.Gte("data", dia.PrimeiroDoMes()),
		repository.Lte("data", dia.UltimoDoMes()),
	))
	if err != nil {
		return nil, err
	}
	porProfissional := contador{}
	for _, at := range atendimentos {
		r.AtendimentosMes++
		if at.Presente {
			r.PresencasMes++
		} else {
			r.FaltasMes++
		}
		id := at.ProfissionalID
		porProfissional.add(&id, nomesProfissionais, "")
	}
	r.TaxaPresenca = Percentual(r.PresencasMes, r.AtendimentosMes)
	r.AtendimentosPorProfissional = porProfissional.contagens()
	return r, nil
}

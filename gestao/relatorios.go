package gestao

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/export"
	"github.com/apae-gestao/apae/core/kss"
	"github.com/apae-gestao/apae/core/logger"
	"github.com/apae-gestao/apae/core/repository"
	"github.com/google/uuid"
)

// report types
const (
	RelatorioAtendimentos = "atendimentos"
	RelatorioFaltas       = "faltas"
	RelatorioPresencas    = "presencas"
	RelatorioFrequencia   = "frequencia"
)

var titulosRelatorio = map[string]string{
	RelatorioAtendimentos: "Atendimentos",
	RelatorioFaltas:       "Faltas",
	RelatorioPresencas:    "Presenças",
	RelatorioFrequencia:   "Frequência",
}

// MaxDiasRelatorio is the longest period of a report, in days
const MaxDiasRelatorio = 366

// ValidadeArquivo is how long the download URL of an archived report is valid
const ValidadeArquivo = 24 * time.Hour

// FiltroRelatorio selects the atendimentos of a report
type FiltroRelatorio struct {
	De             Dia
	Ate            Dia
	ProfissionalID *uuid.UUID
	AssistidoID    *uuid.UUID
	ConvenioID     *uuid.UUID
}

func (f *FiltroRelatorio) validate() error {
	if f.De.IsZero() || f.Ate.IsZero() {
		return core.Validationf("de e ate são obrigatórios")
	}
	if f.Ate.Before(f.De) {
		return core.Validationf("ate não pode ser anterior a de")
	}
	if f.De.DiasAte(f.Ate) >= MaxDiasRelatorio {
		return core.Validationf("o período pode ter no máximo %d dias", MaxDiasRelatorio)
	}
	return nil
}

// LinhaAtendimento is a row of the attendance, absence and presence reports
type LinhaAtendimento struct {
	AtendimentoID uuid.UUID `json:"AtendimentoId" excel:"-"`
	AssistidoID   uuid.UUID `json:"AssistidoId" excel:"-"`
	Data          Dia       `json:"Data" excel:"Data,date"`
	HoraInicio    *string   `json:"HoraInicio" excel:"Horário,time"`
	Assistido     string    `json:"Assistido" excel:"Assistido"`
	CPF           *string   `json:"CPF" excel:"CPF"`
	Convenio      *string   `json:"Convenio" excel:"Convênio"`
	Profissional  string    `json:"Profissional" excel:"Profissional"`
	Especialidade *string   `json:"Especialidade" excel:"Especialidade"`
	Presente      bool      `json:"Presente" excel:"Presente"`
	Justificativa *string   `json:"Justificativa" excel:"Justificativa"`
	Evolucao      *string   `json:"Evolucao" excel:"Evolução"`
}

// LinhaFrequencia is a row of the frequency report, one per assistido
type LinhaFrequencia struct {
	AssistidoID uuid.UUID `json:"AssistidoId" excel:"-"`
	Assistido   string    `json:"Assistido" excel:"Assistido"`
	Convenio    *string   `json:"Convenio" excel:"Convênio"`
	Total       int       `json:"Total" excel:"Atendimentos"`
	Presencas   int       `json:"Presencas" excel:"Presenças"`
	Faltas      int       `json:"Faltas" excel:"Faltas"`
	Percentual  float64   `json:"Percentual" excel:"Frequência,percent"`
}

// Arquivo is an archived report
type Arquivo struct {
	Chave  string    `json:"Chave"`
	URL    string    `json:"Url"`
	Expira time.Time `json:"Expira"`
}

// TipoRelatorioValido reports whether tipo names a report
func TipoRelatorioValido(tipo string) bool {
	_, ok := titulosRelatorio[tipo]
	return ok
}

// atendimentos returns the atendimentos matching f. presente optionally
// restricts them to presences or absences.
func (g *Gestao) atendimentos(ctx context.Context, f FiltroRelatorio, presente *bool) ([]LinhaAtendimento, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	q := repository.Query{}.Where(
		repository.Gte("data", f.De),
		repository.Lte("data", f.Ate),
	)
	if f.ProfissionalID != nil {
		q = q.Where(repository.Eq("profissional_id", *f.ProfissionalID))
	}
	if f.AssistidoID != nil {
		q = q.Where(repository.Eq("assistido_id", *f.AssistidoID))
	}
	if presente != nil {
		q = q.Where(repository.Eq("presente", *presente))
	}
	if f.ConvenioID != nil {
		cobertos, err := g.store.Assistidos.List(ctx, repository.Query{}.Where(repository.Eq("convenio_id", *f.ConvenioID)))
		if err != nil {
			return nil, err
		}
		ids := make([]interface{}, len(cobertos))
		for i := range cobertos {
			ids[i] = cobertos[i].ID
		}
		q = q.Where(repository.In("assistido_id", ids...))
	}
	atendimentos, err := g.store.Atendimentos.List(ctx, q)
	if err != nil {
		return nil, err
	}

	assistidoIDs, profissionalIDs, agendamentoIDs := map[uuid.UUID]bool{}, map[uuid.UUID]bool{}, map[uuid.UUID]bool{}
	for _, a := range atendimentos {
		assistidoIDs[a.AssistidoID] = true
		profissionalIDs[a.ProfissionalID] = true
		if a.AgendamentoID != nil {
			agendamentoIDs[*a.AgendamentoID] = true
		}
	}
	assistidos, err := carregar(ctx, g.store.Assistidos, assistidoIDs)
	if err != nil {
		return nil, err
	}
	profissionais, err := carregar(ctx, g.store.Profissionais, profissionalIDs)
	if err != nil {
		return nil, err
	}
	agendamentos, err := carregar(ctx, g.store.Agendamentos, agendamentoIDs)
	if err != nil {
		return nil, err
	}
	convenioIDs := map[uuid.UUID]bool{}
	for _, a := range assistidos {
		if a.ConvenioID != nil {
			convenioIDs[*a.ConvenioID] = true
		}
	}
	convenios, err := nomes(ctx, g.store.Convenios, convenioIDs, nomeConvenio)
	if err != nil {
		return nil, err
	}

	linhas := make([]LinhaAtendimento, len(atendimentos))
	for i, a := range atendimentos {
		l := LinhaAtendimento{
			AtendimentoID: a.ID,
			AssistidoID:   a.AssistidoID,
			Data:          a.Data,
			Presente:      a.Presente,
			Justificativa: a.Justificativa,
			Evolucao:      a.Evolucao,
		}
		if assistido, ok := assistidos[a.AssistidoID]; ok {
			l.Assistido = assistido.Nome
			l.CPF = assistido.CPF
			l.Convenio = nomeOuNil(convenios, assistido.ConvenioID)
		}
		if p, ok := profissionais[a.ProfissionalID]; ok {
			l.Profissional = p.Nome
			l.Especialidade = p.Especialidade
		}
		if a.AgendamentoID != nil {
			if ag, ok := agendamentos[*a.AgendamentoID]; ok {
				hora := ag.HoraInicio
				l.HoraInicio = &hora
			}
		}
		linhas[i] = l
	}
	sort.SliceStable(linhas, func(i, j int) bool {
		a, b := linhas[i], linhas[j]
		if !a.Data.Equal(b.Data) {
			return a.Data.Before(b.Data)
		}
		ha, hb := "", ""
		if a.HoraInicio != nil {
			ha = *a.HoraInicio
		}
		if b.HoraInicio != nil {
			hb = *b.HoraInicio
		}
		if ha != hb {
			return ha < hb
		}
		return a.Assistido < b.Assistido
	})
	return linhas, nil
}

// RelatorioDeAtendimentos is the attendance report: every atendimento of the period
func (g *Gestao) RelatorioDeAtendimentos(ctx context.Context, f FiltroRelatorio) ([]LinhaAtendimento, error) {
	return g.atendimentos(ctx, f, nil)
}

// RelatorioDeFaltas is the absence report
func (g *Gestao) RelatorioDeFaltas(ctx context.Context, f FiltroRelatorio) ([]LinhaAtendimento, error) {
	presente := false
	return g.atendimentos(ctx, f, &presente)
}

// RelatorioDePresencas is the presence report
func (g *Gestao) RelatorioDePresencas(ctx context.Context, f FiltroRelatorio) ([]LinhaAtendimento, error) {
	presente := true
	return g.atendimentos(ctx, f, &presente)
}

// RelatorioDeFrequencia is the frequency report: presences and absences per assistido,
// ordered by name
func (g *Gestao) RelatorioDeFrequencia(ctx context.Context, f FiltroRelatorio) ([]LinhaFrequencia, error) {
	linhas, err := g.atendimentos(ctx, f, nil)
	if err != nil {
		return nil, err
	}
	porAssistido := map[uuid.UUID]*LinhaFrequencia{}
	for _, l := range linhas {
		id := l.AssistidoID
		lf, ok := porAssistido[id]
		if !ok {
			lf = &LinhaFrequencia{AssistidoID: id, Assistido: l.Assistido, Convenio: l.Convenio}
			porAssistido[id] = lf
		}
		lf.Total++
		if l.Presente {
			lf.Presencas++
		} else {
			lf.Faltas++
		}
	}
	result := make([]LinhaFrequencia, 0, len(porAssistido))
	for _, lf := range porAssistido {
		lf.Percentual = Percentual(lf.Presencas, lf.Total)
		result = append(result, *lf)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Assistido != result[j].Assistido {
			return result[i].Assistido < result[j].Assistido
		}
		return result[i].AssistidoID.String() < result[j].AssistidoID.String()
	})
	return result, nil
}

// Relatorio returns the rows of the report tipo, a slice of LinhaAtendimento
// or of LinhaFrequencia
func (g *Gestao) Relatorio(ctx context.Context, tipo string, f FiltroRelatorio) (interface{}, error) {
	switch tipo {
	case RelatorioAtendimentos:
		return g.RelatorioDeAtendimentos(ctx, f)
	case RelatorioFaltas:
		return g.RelatorioDeFaltas(ctx, f)
	case RelatorioPresencas:
		return g.RelatorioDePresencas(ctx, f)
	case RelatorioFrequencia:
		return g.RelatorioDeFrequencia(ctx, f)
	}
	return nil, core.Validationf("relatório '%s' desconhecido", tipo)
}

// Planilha returns the report tipo as xlsx file
func (g *Gestao) Planilha(ctx context.Context, tipo string, f FiltroRelatorio) ([]byte, error) {
	linhas, err := g.Relatorio(ctx, tipo, f)
	if err != nil {
		return nil, err
	}
	conf, err := g.Configuracao(ctx)
	if err != nil {
		return nil, err
	}
	titulo := titulosRelatorio[tipo]
	titles := []string{conf.NomeInstituicao}
	if conf.CabecalhoRelatorio != "" {
		titles = append(titles, conf.CabecalhoRelatorio)
	}
	titles = append(titles, fmt.Sprintf("Relatório de %s - período de %s a %s", titulo, f.De.Formatado(), f.Ate.Formatado()))

	wb := export.NewWorkbook()
	defer wb.Close()
	if err := wb.AddSheet(titulo, linhas, titles...); err != nil {
		return nil, err
	}
	return wb.Bytes()
}

// NomeArquivo returns the file name of a report
func NomeArquivo(tipo string, f FiltroRelatorio) string {
	return fmt.Sprintf("relatorio-%s-%s-%s.xlsx", tipo, f.De, f.Ate)
}

// Arquivar stores the spreadsheet of report tipo in the key storage and
// returns a download URL
func (g *Gestao) Arquivar(ctx context.Context, tipo string, f FiltroRelatorio) (*Arquivo, error) {
	if g.kss == nil {
		return nil, ErrSemArmazenamento
	}
	data, err := g.Planilha(ctx, tipo, f)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("relatorios/%s/%s-%s", tipo, g.now().UTC().Format("20060102T150405"), NomeArquivo(tipo, f))
	if err := g.kss.Upload(ctx, key, export.ContentType, data); err != nil {
		return nil, err
	}
	url, err := g.kss.GetPreSignedURL(ctx, kss.Get, key, ValidadeArquivo)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx).Infof("archived report %s", key)
	return &Arquivo{Chave: key, URL: url, Expira: g.now().Add(ValidadeArquivo)}, nil
}

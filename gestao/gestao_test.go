package gestao_test

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/access"
	"github.com/apae-gestao/apae/core/kss"
	"github.com/apae-gestao/apae/core/registry"
	"github.com/apae-gestao/apae/core/repository"
	"github.com/apae-gestao/apae/gestao"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// friday, 15 March 2024, 10:00 in Brasília
var agora = time.Date(2024, 3, 15, 10, 0, 0, 0, time.FixedZone("BRT", -3*60*60))

type notificacao struct {
	resource  string
	operation core.Operation
	id        uuid.UUID
}

type recorder struct {
	mutex  sync.Mutex
	events []notificacao
}

func (r *recorder) Notify(ctx context.Context, resource string, operation core.Operation, id uuid.UUID, payload []byte) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = append(r.events, notificacao{resource: resource, operation: operation, id: id})
}

func (r *recorder) last() notificacao {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.events[len(r.events)-1]
}

type GestaoTestSuite struct {
	suite.Suite
	ctx      context.Context
	g        *gestao.Gestao
	notifier *recorder
	files    *kss.LocalFilesystem

	municipio    *gestao.Municipio
	convenio     *gestao.Convenio
	profissional *gestao.Profissional
	bruno        *gestao.Assistido
	ana          *gestao.Assistido
}

func TestGestaoTestSuite(t *testing.T) {
	suite.Run(t, new(GestaoTestSuite))
}

func (s *GestaoTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.notifier = &recorder{}
	files, err := kss.NewLocalFilesystem(mux.NewRouter(), kss.LocalConfiguration{
		BasePath: s.T().TempDir(),
		Secret:   []byte("segredo"),
	}, url.URL{Scheme: "http", Host: "localhost:3000"})
	s.Require().NoError(err)
	s.files = files

	s.g = gestao.New(gestao.Config{
		Store:    gestao.NewMemoryStore(),
		Registry: registry.NewMemory(),
		Notifier: s.notifier,
		KSS:      files,
		Tokens:   &access.TokenIssuer{Secret: []byte("segredo"), Issuer: "apae-test", TTL: time.Hour},
		Location: agora.Location(),
		Now:      func() time.Time { return agora },
	})

	s.municipio = &gestao.Municipio{Nome: "Curitiba", UF: "pr"}
	s.Require().NoError(s.g.Municipios.Create(s.ctx, s.municipio))
	s.convenio = &gestao.Convenio{Nome: "SUS", Ativo: true}
	s.Require().NoError(s.g.Convenios.Create(s.ctx, s.convenio))
	s.profissional = &gestao.Profissional{
		Nome:   "Carla Dias",
		Email:  " Carla@APAE.org ",
		Perfil: gestao.PerfilProfissional,
		Ativo:  true,
		Senha:  "segredo123",
	}
	s.Require().NoError(s.g.Profissionais.Create(s.ctx, s.profissional))
	s.bruno = &gestao.Assistido{
		Nome:           "Bruno Souza",
		DataNascimento: gestao.D(2010, 3, 16),
		MunicipioID:    &s.municipio.ID,
		ConvenioID:     &s.convenio.ID,
		Ativo:          true,
	}
	s.Require().NoError(s.g.Assistidos.Create(s.ctx, s.bruno))
	s.ana = &gestao.Assistido{Nome: "Ana Lima", DataNascimento: gestao.D(2015, 1, 10), Ativo: true}
	s.Require().NoError(s.g.Assistidos.Create(s.ctx, s.ana))
}

func (s *GestaoTestSuite) agendar(a *gestao.Agendamento) *gestao.Agendamento {
	if a.ProfissionalID == uuid.Nil {
		a.ProfissionalID = s.profissional.ID
	}
	s.Require().NoError(s.g.Agendamentos.Create(s.ctx, a))
	return a
}

func (s *GestaoTestSuite) TestHoje() {
	s.Equal(gestao.D(2024, 3, 15), s.g.Hoje())
	// 23:30 in Brasília is already the next day in UTC
	late := time.Date(2024, 3, 15, 23, 30, 0, 0, agora.Location())
	g := gestao.New(gestao.Config{Store: gestao.NewMemoryStore(), Registry: registry.NewMemory(), Location: agora.Location(), Now: func() time.Time { return late.UTC() }})
	s.Equal(gestao.D(2024, 3, 15), g.Hoje())
}

func (s *GestaoTestSuite) TestMunicipio() {
	s.Equal("PR", s.municipio.UF)
	s.Equal(notificacao{resource: gestao.TabelaConvenio, operation: core.OperationCreate, id: s.convenio.ID}, s.notifier.events[1])

	err := s.g.Municipios.Create(s.ctx, &gestao.Municipio{Nome: "Curitiba", UF: "PR"})
	s.ErrorIs(err, repository.ErrConflict)

	err = s.g.Municipios.Create(s.ctx, &gestao.Municipio{Nome: "Nenhures", UF: "P1"})
	s.ErrorIs(err, core.ErrValidation)

	err = s.g.Municipios.Create(s.ctx, &gestao.Municipio{Nome: "Colombo", UF: "PR", CodigoIBGE: strPtr("41 05805")})
	s.Require().NoError(err)
}

func (s *GestaoTestSuite) TestProfissionalSenha() {
	s.Equal("carla@apae.org", s.profissional.Email)
	s.Empty(s.profissional.Senha)
	s.NotEmpty(s.profissional.SenhaHash)
	s.NoError(access.CheckPassword(s.profissional.SenhaHash, "segredo123"))

	err := s.g.Profissionais.Create(s.ctx, &gestao.Profissional{Nome: "Sem Senha", Email: "sem@apae.org", Ativo: true})
	s.ErrorIs(err, core.ErrValidation)

	err = s.g.Profissionais.Create(s.ctx, &gestao.Profissional{Nome: "Curta", Email: "curta@apae.org", Senha: "12345"})
	s.ErrorIs(err, core.ErrValidation)

	err = s.g.Profissionais.Create(s.ctx, &gestao.Profissional{Nome: "Outra", Email: "CARLA@apae.org", Senha: "123456"})
	s.ErrorIs(err, repository.ErrConflict)

	err = s.g.Profissionais.Create(s.ctx, &gestao.Profissional{Nome: "Chefe", Email: "chefe@apae.org", Senha: "123456", Perfil: "chefe"})
	s.ErrorIs(err, core.ErrValidation)

	// an update without password keeps the stored one
	update := *s.profissional
	update.SenhaHash = ""
	update.Especialidade = strPtr("Fonoaudiologia")
	s.Require().NoError(s.g.Profissionais.Update(s.ctx, &update))
	stored, err := s.g.Profissionais.Get(s.ctx, s.profissional.ID)
	s.Require().NoError(err)
	s.Equal(s.profissional.SenhaHash, stored.SenhaHash)
	s.Equal("Fonoaudiologia", *stored.Especialidade)

	update.Senha = "nova-senha"
	s.Require().NoError(s.g.Profissionais.Update(s.ctx, &update))
	stored, err = s.g.Profissionais.Get(s.ctx, s.profissional.ID)
	s.Require().NoError(err)
	s.NoError(access.CheckPassword(stored.SenhaHash, "nova-senha"))
}

func (s *GestaoTestSuite) TestAssistidoValidacao() {
	a := &gestao.Assistido{Nome: " Clara ", DataNascimento: gestao.D(2012, 5, 1), CPF: strPtr("123.456.789-01"), CEP: strPtr("80000-000")}
	s.Require().NoError(s.g.Assistidos.Create(s.ctx, a))
	s.Equal("Clara", a.Nome)
	s.Equal("12345678901", *a.CPF)
	s.Equal("80000000", *a.CEP)

	err := s.g.Assistidos.Create(s.ctx, &gestao.Assistido{Nome: "Clone", DataNascimento: gestao.D(2012, 5, 1), CPF: strPtr("12345678901")})
	s.ErrorIs(err, repository.ErrConflict)

	err = s.g.Assistidos.Create(s.ctx, &gestao.Assistido{Nome: "Futuro", DataNascimento: gestao.D(2024, 3, 16)})
	s.ErrorIs(err, core.ErrValidation)

	err = s.g.Assistidos.Create(s.ctx, &gestao.Assistido{Nome: "Sem data"})
	s.ErrorIs(err, core.ErrValidation)

	err = s.g.Assistidos.Create(s.ctx, &gestao.Assistido{Nome: "CPF curto", DataNascimento: gestao.D(2012, 5, 1), CPF: strPtr("1234")})
	s.ErrorIs(err, core.ErrValidation)

	unknown := uuid.New()
	err = s.g.Assistidos.Create(s.ctx, &gestao.Assistido{Nome: "Longe", DataNascimento: gestao.D(2012, 5, 1), MunicipioID: &unknown})
	s.ErrorIs(err, repository.ErrReference)
}

func (s *GestaoTestSuite) TestPresentAssistidos() {
	dtos, err := s.g.PresentAssistidos(s.ctx, []gestao.Assistido{*s.bruno, *s.ana})
	s.Require().NoError(err)
	s.Require().Len(dtos, 2)
	s.Equal(13, dtos[0].Idade) // turns 14 tomorrow
	s.Equal("Curitiba/PR", *dtos[0].MunicipioNome)
	s.Equal("SUS", *dtos[0].ConvenioNome)
	s.Equal(9, dtos[1].Idade)
	s.Nil(dtos[1].MunicipioNome)
	s.Nil(dtos[1].ConvenioNome)
}

func (s *GestaoTestSuite) TestAgendamentoValidacao() {
	base := func() *gestao.Agendamento {
		return &gestao.Agendamento{
			AssistidoID:    s.ana.ID,
			ProfissionalID: s.profissional.ID,
			Data:           gestao.D(2024, 3, 18),
			HoraInicio:     "14:00",
			HoraFim:        "15:00",
		}
	}
	a := base()
	a.DiasSemana = []int64{1, 3}
	s.Require().NoError(s.g.Agendamentos.Create(s.ctx, a))
	s.Equal(gestao.StatusAgendado, a.Status)
	s.Equal([]int64{}, a.DiasSemana, "a single appointment has no weekdays")

	a = base()
	a.Recorrente = true
	a.DiasSemana = []int64{5, 1, 5, 3}
	s.Require().NoError(s.g.Agendamentos.Create(s.ctx, a))
	s.Equal([]int64{1, 3, 5}, a.DiasSemana)

	a = base()
	a.HoraFim = "13:59"
	s.ErrorIs(s.g.Agendamentos.Create(s.ctx, a), core.ErrValidation)

	a = base()
	a.HoraInicio = "9:00"
	s.ErrorIs(s.g.Agendamentos.Create(s.ctx, a), core.ErrValidation)

	a = base()
	a.Recorrente = true
	a.DiasSemana = []int64{7}
	s.ErrorIs(s.g.Agendamentos.Create(s.ctx, a), core.ErrValidation)

	a = base()
	a.Recorrente = true
	fim := gestao.D(2024, 3, 17)
	a.DataFimRecorrencia = &fim
	s.ErrorIs(s.g.Agendamentos.Create(s.ctx, a), core.ErrValidation)

	a = base()
	a.Status = "Talvez"
	s.ErrorIs(s.g.Agendamentos.Create(s.ctx, a), core.ErrValidation)

	a = base()
	a.AssistidoID = uuid.New()
	s.ErrorIs(s.g.Agendamentos.Create(s.ctx, a), repository.ErrReference)
}

func (s *GestaoTestSuite) TestDeleteInUse() {
	s.ErrorIs(s.g.Municipios.Delete(s.ctx, s.municipio.ID), repository.ErrReference)
	s.ErrorIs(s.g.Convenios.Delete(s.ctx, s.convenio.ID), repository.ErrReference)

	a := s.agendar(&gestao.Agendamento{AssistidoID: s.ana.ID, Data: gestao.D(2024, 3, 15), HoraInicio: "08:00", HoraFim: "09:00"})
	s.ErrorIs(s.g.Assistidos.Delete(s.ctx, s.ana.ID), repository.ErrReference)
	s.ErrorIs(s.g.Profissionais.Delete(s.ctx, s.profissional.ID), repository.ErrReference)

	_, err := s.g.RegistrarAtendimento(s.ctx, a.ID, gestao.RegistroAtendimento{Data: gestao.D(2024, 3, 15), Presente: true})
	s.Require().NoError(err)
	s.ErrorIs(s.g.Agendamentos.Delete(s.ctx, a.ID), repository.ErrReference)

	s.Require().NoError(s.g.Assistidos.Delete(s.ctx, s.bruno.ID))
	s.Equal(notificacao{resource: gestao.TabelaAssistido, operation: core.OperationDelete, id: s.bruno.ID}, s.notifier.last())
	s.Require().NoError(s.g.Municipios.Delete(s.ctx, s.municipio.ID))
	s.ErrorIs(s.g.Municipios.Delete(s.ctx, s.municipio.ID), repository.ErrNotFound)
}

func (s *GestaoTestSuite) TestAgendaDoDia() {
	recorrente := s.agendar(&gestao.Agendamento{
		AssistidoID: s.bruno.ID, Data: gestao.D(2024, 3, 4), HoraInicio: "09:00", HoraFim: "10:00",
		Recorrente: true, DiasSemana: []int64{1, 3, 5},
	})
	unico := s.agendar(&gestao.Agendamento{AssistidoID: s.ana.ID, Data: gestao.D(2024, 3, 15), HoraInicio: "08:00", HoraFim: "09:00"})
	s.agendar(&gestao.Agendamento{AssistidoID: s.ana.ID, Data: gestao.D(2024, 3, 11), HoraInicio: "07:00", HoraFim: "08:00", Recorrente: true})
	cancelado := s.agendar(&gestao.Agendamento{AssistidoID: s.bruno.ID, Data: gestao.D(2024, 3, 15), HoraInicio: "07:00", HoraFim: "08:00"})
	_, err := s.g.Cancelar(s.ctx, cancelado.ID)
	s.Require().NoError(err)

	outro := &gestao.Profissional{Nome: "Davi", Email: "davi@apae.org", Senha: "123456", Ativo: true}
	s.Require().NoError(s.g.Profissionais.Create(s.ctx, outro))
	s.agendar(&gestao.Agendamento{AssistidoID: s.ana.ID, ProfissionalID: outro.ID, Data: gestao.D(2024, 3, 15), HoraInicio: "08:00", HoraFim: "08:30"})

	itens, err := s.g.AgendaDoDia(s.ctx, gestao.D(2024, 3, 15), &s.profissional.ID)
	s.Require().NoError(err)
	s.Require().Len(itens, 2)
	s.Equal(unico.ID, itens[0].ID)
	s.Equal("Ana Lima", itens[0].AssistidoNome)
	s.Equal("Carla Dias", itens[0].ProfissionalNome)
	s.Equal(recorrente.ID, itens[1].ID)
	s.Equal(gestao.D(2024, 3, 15), itens[1].DataOcorrencia)
	s.Nil(itens[1].AtendimentoID)

	itens, err = s.g.AgendaDoDia(s.ctx, gestao.D(2024, 3, 15), nil)
	s.Require().NoError(err)
	s.Len(itens, 3)

	// empty weekdays repeat on the weekday of the first day
	itens, err = s.g.AgendaDoDia(s.ctx, gestao.D(2024, 3, 18), &s.profissional.ID)
	s.Require().NoError(err)
	s.Require().Len(itens, 2)
	s.Equal("07:00", itens[0].HoraInicio)
	s.Equal(recorrente.ID, itens[1].ID)

	atendimento, err := s.g.RegistrarAtendimento(s.ctx, recorrente.ID, gestao.RegistroAtendimento{Data: gestao.D(2024, 3, 13), Presente: false})
	s.Require().NoError(err)
	itens, err = s.g.AgendaDoDia(s.ctx, gestao.D(2024, 3, 13), nil)
	s.Require().NoError(err)
	s.Require().Len(itens, 1)
	s.Equal(atendimento.ID, *itens[0].AtendimentoID)
	s.False(*itens[0].Presente)

	_, err = s.g.AgendaDoDia(s.ctx, gestao.Dia{}, nil)
	s.ErrorIs(err, core.ErrValidation)
}

func (s *GestaoTestSuite) TestAgendaDoPeriodo() {
	s.agendar(&gestao.Agendamento{
		AssistidoID: s.bruno.ID, Data: gestao.D(2024, 3, 4), HoraInicio: "09:00", HoraFim: "10:00",
		Recorrente: true, DiasSemana: []int64{1, 3, 5}, DataFimRecorrencia: diaPtr(gestao.D(2024, 3, 13)),
	})
	dias, err := s.g.AgendaDoPeriodo(s.ctx, gestao.D(2024, 3, 1), gestao.D(2024, 3, 17), nil)
	s.Require().NoError(err)
	s.Require().Len(dias, 17)
	count := 0
	for _, d := range dias {
		s.NotNil(d.Itens)
		count += len(d.Itens)
	}
	// 4, 6, 8, 11 and 13 March
	s.Equal(5, count)
	s.Len(dias[3].Itens, 1)
	s.Equal(gestao.D(2024, 3, 4), dias[3].Data)

	_, err = s.g.AgendaDoPeriodo(s.ctx, gestao.D(2024, 3, 1), gestao.D(2024, 5, 2), nil)
	s.ErrorIs(err, core.ErrValidation)
	_, err = s.g.AgendaDoPeriodo(s.ctx, gestao.D(2024, 3, 2), gestao.D(2024, 3, 1), nil)
	s.ErrorIs(err, core.ErrValidation)
	dias, err = s.g.AgendaDoPeriodo(s.ctx, gestao.D(2024, 3, 1), gestao.D(2024, 5, 1), nil)
	s.Require().NoError(err)
	s.Len(dias, gestao.MaxDiasPeriodo)
}

func (s *GestaoTestSuite) TestRegistrarAtendimento() {
	unico := s.agendar(&gestao.Agendamento{AssistidoID: s.ana.ID, Data: gestao.D(2024, 3, 14), HoraInicio: "08:00", HoraFim: "09:00"})
	recorrente := s.agendar(&gestao.Agendamento{
		AssistidoID: s.bruno.ID, Data: gestao.D(2024, 3, 4), HoraInicio: "09:00", HoraFim: "10:00",
		Recorrente: true, DiasSemana: []int64{1, 3, 5},
	})

	_, err := s.g.RegistrarAtendimento(s.ctx, unico.ID, gestao.RegistroAtendimento{Data: gestao.D(2024, 3, 13), Presente: true})
	s.ErrorIs(err, core.ErrValidation, "does not occur on that day")

	_, err = s.g.RegistrarAtendimento(s.ctx, uuid.New(), gestao.RegistroAtendimento{Data: gestao.D(2024, 3, 14)})
	s.ErrorIs(err, repository.ErrNotFound)

	at, err := s.g.RegistrarAtendimento(s.ctx, unico.ID, gestao.RegistroAtendimento{Data: gestao.D(2024, 3, 14), Presente: true, Evolucao: strPtr("Boa evolução")})
	s.Require().NoError(err)
	s.Equal(s.ana.ID, at.AssistidoID)
	s.Equal(s.profissional.ID, at.ProfissionalID)
	s.Equal(unico.ID, *at.AgendamentoID)

	stored, err := s.g.Agendamentos.Get(s.ctx, unico.ID)
	s.Require().NoError(err)
	s.Equal(gestao.StatusConcluido, stored.Status)

	_, err = s.g.RegistrarAtendimento(s.ctx, recorrente.ID, gestao.RegistroAtendimento{Data: gestao.D(2024, 3, 11)})
	s.Require().NoError(err)
	_, err = s.g.RegistrarAtendimento(s.ctx, recorrente.ID, gestao.RegistroAtendimento{Data: gestao.D(2024, 3, 11)})
	s.ErrorIs(err, repository.ErrConflict)
	_, err = s.g.RegistrarAtendimento(s.ctx, recorrente.ID, gestao.RegistroAtendimento{Data: gestao.D(2024, 3, 18)})
	s.ErrorIs(err, core.ErrValidation, "future")

	stored, err = s.g.Agendamentos.Get(s.ctx, recorrente.ID)
	s.Require().NoError(err)
	s.Equal(gestao.StatusAgendado, stored.Status)
}

func (s *GestaoTestSuite) TestAtendimentoAvulso() {
	at := &gestao.Atendimento{AssistidoID: s.ana.ID, ProfissionalID: s.profissional.ID, Data: gestao.D(2024, 3, 1), Presente: true}
	s.Require().NoError(s.g.Atendimentos.Create(s.ctx, at))

	a := s.agendar(&gestao.Agendamento{AssistidoID: s.bruno.ID, Data: gestao.D(2024, 3, 14), HoraInicio: "08:00", HoraFim: "09:00"})
	mismatch := &gestao.Atendimento{AgendamentoID: &a.ID, AssistidoID: s.ana.ID, Data: gestao.D(2024, 3, 14)}
	s.ErrorIs(s.g.Atendimentos.Create(s.ctx, mismatch), core.ErrValidation)

	filled := &gestao.Atendimento{AgendamentoID: &a.ID, Data: gestao.D(2024, 3, 14)}
	s.Require().NoError(s.g.Atendimentos.Create(s.ctx, filled))
	s.Equal(s.bruno.ID, filled.AssistidoID)

	unknown := uuid.New()
	s.ErrorIs(s.g.Atendimentos.Create(s.ctx, &gestao.Atendimento{AgendamentoID: &unknown, Data: gestao.D(2024, 3, 14)}), repository.ErrReference)
}

func (s *GestaoTestSuite) TestCancelarConcluir() {
	a := s.agendar(&gestao.Agendamento{AssistidoID: s.ana.ID, Data: gestao.D(2024, 3, 20), HoraInicio: "08:00", HoraFim: "09:00"})
	concluido, err := s.g.Concluir(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(gestao.StatusConcluido, concluido.Status)
	_, err = s.g.Concluir(s.ctx, a.ID)
	s.ErrorIs(err, core.ErrValidation)

	cancelado, err := s.g.Cancelar(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(gestao.StatusCancelado, cancelado.Status)
	s.Equal(notificacao{resource: gestao.TabelaAgendamento, operation: core.OperationUpdate, id: a.ID}, s.notifier.last())

	_, err = s.g.Cancelar(s.ctx, a.ID)
	s.ErrorIs(err, core.ErrValidation)
	_, err = s.g.Concluir(s.ctx, a.ID)
	s.ErrorIs(err, core.ErrValidation)
	_, err = s.g.Cancelar(s.ctx, uuid.New())
	s.ErrorIs(err, repository.ErrNotFound)
}

// registrarMarco creates three atendimentos in March 2024: Bruno absent on
// the 11th and present on the 13th, Ana present on the 15th
func (s *GestaoTestSuite) registrarMarco() {
	recorrente := s.agendar(&gestao.Agendamento{
		AssistidoID: s.bruno.ID, Data: gestao.D(2024, 3, 4), HoraInicio: "09:00", HoraFim: "10:00",
		Recorrente: true, DiasSemana: []int64{1, 3, 5},
	})
	unico := s.agendar(&gestao.Agendamento{AssistidoID: s.ana.ID, Data: gestao.D(2024, 3, 15), HoraInicio: "08:00", HoraFim: "09:00"})
	for _, r := range []struct {
		id       uuid.UUID
		dia      gestao.Dia
		presente bool
	}{
		{recorrente.ID, gestao.D(2024, 3, 11), false},
		{recorrente.ID, gestao.D(2024, 3, 13), true},
		{unico.ID, gestao.D(2024, 3, 15), true},
	} {
		_, err := s.g.RegistrarAtendimento(s.ctx, r.id, gestao.RegistroAtendimento{Data: r.dia, Presente: r.presente, Justificativa: strPtr("")})
		s.Require().NoError(err)
	}
	// february does not count for march
	s.Require().NoError(s.g.Atendimentos.Create(s.ctx, &gestao.Atendimento{
		AssistidoID: s.ana.ID, ProfissionalID: s.profissional.ID, Data: gestao.D(2024, 2, 28), Presente: false,
	}))
}

func (s *GestaoTestSuite) TestResumo() {
	inativo := &gestao.Assistido{Nome: "Inativo", DataNascimento: gestao.D(2000, 1, 1), Ativo: false}
	s.Require().NoError(s.g.Assistidos.Create(s.ctx, inativo))
	s.registrarMarco()

	r, err := s.g.Resumo(s.ctx, gestao.D(2024, 3, 15))
	s.Require().NoError(err)
	s.Equal(3, r.TotalAssistidos)
	s.Equal(2, r.AssistidosAtivos)
	s.Equal(1, r.TotalProfissionais)
	s.Equal(1, r.ProfissionaisAtivos)
	s.Equal(1, r.ConveniosAtivos)
	s.Equal(2, r.AgendamentosHoje)
	s.Equal(3, r.AtendimentosMes)
	s.Equal(2, r.PresencasMes)
	s.Equal(1, r.FaltasMes)
	s.Equal(66.67, r.TaxaPresenca)
	s.Equal([]gestao.Contagem{{ID: &s.convenio.ID, Nome: "SUS", Total: 1}, {Nome: gestao.SemConvenio, Total: 1}}, r.AssistidosPorConvenio)
	s.Equal([]gestao.Contagem{{ID: &s.municipio.ID, Nome: "Curitiba/PR", Total: 1}, {Nome: gestao.SemMunicipio, Total: 1}}, r.AssistidosPorMunicipio)
	s.Equal([]gestao.Contagem{{ID: &s.profissional.ID, Nome: "Carla Dias", Total: 3}}, r.AtendimentosPorProfissional)

	r, err = s.g.Resumo(s.ctx, gestao.D(2024, 4, 1))
	s.Require().NoError(err)
	s.Equal(0, r.AtendimentosMes)
	s.Equal(0.0, r.TaxaPresenca)
	s.Empty(r.AtendimentosPorProfissional)
}

func (s *GestaoTestSuite) TestResumoSeparaNomesIguais() {
	outro := &gestao.Convenio{Nome: "SUS", Ativo: true}
	s.Require().NoError(s.g.Convenios.Create(s.ctx, outro))
	s.ana.ConvenioID = &outro.ID
	s.Require().NoError(s.g.Assistidos.Update(s.ctx, s.ana))

	r, err := s.g.Resumo(s.ctx, gestao.D(2024, 3, 15))
	s.Require().NoError(err)
	s.Require().Len(r.AssistidosPorConvenio, 2)
	ids := []uuid.UUID{}
	for _, c := range r.AssistidosPorConvenio {
		s.Equal("SUS", c.Nome)
		s.Equal(1, c.Total)
		s.Require().NotNil(c.ID)
		ids = append(ids, *c.ID)
	}
	s.ElementsMatch([]uuid.UUID{s.convenio.ID, outro.ID}, ids)
}

func (s *GestaoTestSuite) TestLogin() {
	sessao, err := s.g.Login(s.ctx, "CARLA@apae.org", "segredo123")
	s.Require().NoError(err)
	s.NotEmpty(sessao.Token)
	s.Equal(s.profissional.ID, sessao.Profissional.ID)
	s.True(sessao.Expira.After(time.Now()))

	issuer := &access.TokenIssuer{Secret: []byte("segredo"), Issuer: "apae-test", TTL: time.Hour}
	auth, _, err := issuer.Parse(sessao.Token)
	s.Require().NoError(err)
	s.Equal([]string{gestao.PerfilProfissional}, auth.Roles)
	s.Equal(s.profissional.ID, auth.ProfissionalID)

	me, err := s.g.Me(access.ContextWithAuthorization(s.ctx, auth))
	s.Require().NoError(err)
	s.Equal("Carla Dias", me.Nome)

	_, err = s.g.Login(s.ctx, "carla@apae.org", "errada")
	s.ErrorIs(err, gestao.ErrCredenciaisInvalidas)
	_, err = s.g.Login(s.ctx, "ninguem@apae.org", "segredo123")
	s.ErrorIs(err, gestao.ErrCredenciaisInvalidas)

	inativo := *s.profissional
	inativo.Ativo = false
	s.Require().NoError(s.g.Profissionais.Update(s.ctx, &inativo))
	_, err = s.g.Login(s.ctx, "carla@apae.org", "segredo123")
	s.ErrorIs(err, gestao.ErrInativo)

	_, err = s.g.Me(s.ctx)
	s.Error(err)
}

func (s *GestaoTestSuite) TestConfiguracao() {
	c, err := s.g.Configuracao(s.ctx)
	s.Require().NoError(err)
	s.Equal(gestao.NomeInstituicaoPadrao, c.NomeInstituicao)

	s.ErrorIs(s.g.SalvarConfiguracao(s.ctx, &gestao.Configuracao{}), core.ErrValidation)
	s.ErrorIs(s.g.SalvarConfiguracao(s.ctx, &gestao.Configuracao{NomeInstituicao: "APAE", CNPJ: "123"}), core.ErrValidation)

	s.Require().NoError(s.g.SalvarConfiguracao(s.ctx, &gestao.Configuracao{NomeInstituicao: " APAE Curitiba ", CNPJ: "12.345.678/0001-90"}))
	c, err = s.g.Configuracao(s.ctx)
	s.Require().NoError(err)
	s.Equal("APAE Curitiba", c.NomeInstituicao)
	s.Equal("12345678000190", c.CNPJ)
}

func (s *GestaoTestSuite) TestDocumentos() {
	clara := &gestao.Assistido{Nome: "Clara", DataNascimento: gestao.D(2012, 5, 1)}
	s.Require().NoError(s.g.Assistidos.Create(s.ctx, clara))

	docs, err := s.g.Documentos(s.ctx, clara.ID)
	s.Require().NoError(err)
	s.Empty(docs)

	doc, err := s.g.EnviarDocumento(s.ctx, clara.ID, "laudo.pdf", "application/pdf", []byte("%PDF-1.4"))
	s.Require().NoError(err)
	s.Equal("assistidos/"+clara.ID.String()+"/documentos/laudo.pdf", doc.Chave)

	docs, err = s.g.Documentos(s.ctx, clara.ID)
	s.Require().NoError(err)
	s.Equal([]gestao.Documento{*doc}, docs)

	data, contentType, err := s.g.BaixarDocumento(s.ctx, clara.ID, "laudo.pdf")
	s.Require().NoError(err)
	s.Equal("%PDF-1.4", string(data))
	s.Equal("application/pdf", contentType)

	u, err := s.g.URLDocumento(s.ctx, clara.ID, "laudo.pdf")
	s.Require().NoError(err)
	s.Contains(u, "http://localhost:3000/kss/filesystem")

	_, _, err = s.g.BaixarDocumento(s.ctx, clara.ID, "outro.pdf")
	s.ErrorIs(err, repository.ErrNotFound)
	_, err = s.g.EnviarDocumento(s.ctx, clara.ID, "../laudo.pdf", "application/pdf", []byte("x"))
	s.ErrorIs(err, core.ErrValidation)
	_, err = s.g.EnviarDocumento(s.ctx, uuid.New(), "laudo.pdf", "application/pdf", []byte("x"))
	s.ErrorIs(err, repository.ErrNotFound)

	// deleting the assistido deletes its documents
	s.Require().NoError(s.g.Assistidos.Delete(s.ctx, clara.ID))
	keys, err := s.files.ListAllWithPrefix(s.ctx, "assistidos/"+clara.ID.String())
	s.Require().NoError(err)
	s.Empty(keys)
}

func (s *GestaoTestSuite) TestSemArmazenamento() {
	g := gestao.New(gestao.Config{Store: gestao.NewMemoryStore(), Registry: registry.NewMemory()})
	_, err := g.Documentos(s.ctx, uuid.New())
	s.ErrorIs(err, gestao.ErrSemArmazenamento)
	_, err = g.Login(s.ctx, "carla@apae.org", "segredo123")
	s.Error(err)
}

func TestOccursOn(t *testing.T) {
	fim := gestao.D(2024, 3, 31)
	semanal := &gestao.Agendamento{Data: gestao.D(2024, 3, 4), Recorrente: true, DiasSemana: []int64{1, 3}, DataFimRecorrencia: &fim, Status: gestao.StatusAgendado}
	mesmoDia := &gestao.Agendamento{Data: gestao.D(2024, 3, 6), Recorrente: true, Status: gestao.StatusAgendado}
	unico := &gestao.Agendamento{Data: gestao.D(2024, 3, 6), Status: gestao.StatusConcluido}
	cancelado := &gestao.Agendamento{Data: gestao.D(2024, 3, 6), Status: gestao.StatusCancelado}

	tests := []struct {
		name string
		a    *gestao.Agendamento
		dia  gestao.Dia
		want bool
	}{
		{"first day", semanal, gestao.D(2024, 3, 4), true},
		{"listed weekday", semanal, gestao.D(2024, 3, 13), true},
		{"other weekday", semanal, gestao.D(2024, 3, 14), false},
		{"before start", semanal, gestao.D(2024, 2, 26), false},
		{"end day is inclusive", semanal, gestao.D(2024, 3, 27), true},
		{"after end", semanal, gestao.D(2024, 4, 1), false},
		{"empty weekdays use weekday of start", mesmoDia, gestao.D(2024, 3, 20), true},
		{"empty weekdays other day", mesmoDia, gestao.D(2024, 3, 21), false},
		{"single on its day", unico, gestao.D(2024, 3, 6), true},
		{"single other day", unico, gestao.D(2024, 3, 13), false},
		{"cancelled", cancelado, gestao.D(2024, 3, 6), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, gestao.OccursOn(tt.a, tt.dia))
		})
	}
}

func TestIdadeEPercentual(t *testing.T) {
	assert.Equal(t, 13, gestao.Idade(gestao.D(2010, 3, 16), gestao.D(2024, 3, 15)))
	assert.Equal(t, 14, gestao.Idade(gestao.D(2010, 3, 15), gestao.D(2024, 3, 15)))
	assert.Equal(t, 3, gestao.Idade(gestao.D(2020, 2, 29), gestao.D(2024, 2, 28)))
	assert.Equal(t, 0, gestao.Idade(gestao.Dia{}, gestao.D(2024, 2, 28)))

	assert.Equal(t, 0.0, gestao.Percentual(1, 0))
	assert.Equal(t, 33.33, gestao.Percentual(1, 3))
	assert.Equal(t, 100.0, gestao.Percentual(4, 4))
}

func TestParseHora(t *testing.T) {
	d, err := gestao.ParseHora("13:45")
	require.NoError(t, err)
	assert.Equal(t, 13*time.Hour+45*time.Minute, d)
	for _, bad := range []string{"", "24:00", "7:00", "07:60", "07h00"} {
		_, err := gestao.ParseHora(bad)
		assert.ErrorIs(t, err, core.ErrValidation, bad)
	}
}

func strPtr(s string) *string { return &s }

func diaPtr(d gestao.Dia) *gestao.Dia { return &d }

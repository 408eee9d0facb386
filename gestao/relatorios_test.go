package gestao_test

import (
	"bytes"
	"strings"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/gestao"
	"github.com/xuri/excelize/v2"
)

func (s *GestaoTestSuite) marco() gestao.FiltroRelatorio {
	return gestao.FiltroRelatorio{De: gestao.D(2024, 3, 1), Ate: gestao.D(2024, 3, 31)}
}

func (s *GestaoTestSuite) TestRelatorioAtendimentos() {
	s.registrarMarco()

	linhas, err := s.g.RelatorioDeAtendimentos(s.ctx, s.marco())
	s.Require().NoError(err)
	s.Require().Len(linhas, 3)
	s.Equal(gestao.D(2024, 3, 11), linhas[0].Data)
	s.Equal("Bruno Souza", linhas[0].Assistido)
	s.Equal("SUS", *linhas[0].Convenio)
	s.Equal("09:00", *linhas[0].HoraInicio)
	s.Equal("Carla Dias", linhas[0].Profissional)
	s.False(linhas[0].Presente)
	s.Equal("Ana Lima", linhas[2].Assistido)
	s.Nil(linhas[2].Convenio)

	faltas, err := s.g.RelatorioDeFaltas(s.ctx, s.marco())
	s.Require().NoError(err)
	s.Require().Len(faltas, 1)
	s.Equal(gestao.D(2024, 3, 11), faltas[0].Data)

	presencas, err := s.g.RelatorioDePresencas(s.ctx, s.marco())
	s.Require().NoError(err)
	s.Len(presencas, 2)

	f := s.marco()
	f.ConvenioID = &s.convenio.ID
	linhas, err = s.g.RelatorioDeAtendimentos(s.ctx, f)
	s.Require().NoError(err)
	s.Len(linhas, 2)

	f = s.marco()
	f.AssistidoID = &s.ana.ID
	linhas, err = s.g.RelatorioDeAtendimentos(s.ctx, f)
	s.Require().NoError(err)
	s.Len(linhas, 1)

	f = gestao.FiltroRelatorio{De: gestao.D(2024, 2, 1), Ate: gestao.D(2024, 2, 29), ProfissionalID: &s.profissional.ID}
	linhas, err = s.g.RelatorioDeAtendimentos(s.ctx, f)
	s.Require().NoError(err)
	s.Len(linhas, 1)

	_, err = s.g.RelatorioDeAtendimentos(s.ctx, gestao.FiltroRelatorio{De: gestao.D(2024, 3, 2), Ate: gestao.D(2024, 3, 1)})
	s.ErrorIs(err, core.ErrValidation)
	_, err = s.g.RelatorioDeAtendimentos(s.ctx, gestao.FiltroRelatorio{De: gestao.D(2023, 1, 1), Ate: gestao.D(2024, 3, 1)})
	s.ErrorIs(err, core.ErrValidation)
	_, err = s.g.Relatorio(s.ctx, "outro", s.marco())
	s.ErrorIs(err, core.ErrValidation)
}

func (s *GestaoTestSuite) TestRelatorioFrequencia() {
	s.registrarMarco()

	linhas, err := s.g.RelatorioDeFrequencia(s.ctx, s.marco())
	s.Require().NoError(err)
	s.Equal([]gestao.LinhaFrequencia{
		{AssistidoID: s.ana.ID, Assistido: "Ana Lima", Total: 1, Presencas: 1, Faltas: 0, Percentual: 100},
		{AssistidoID: s.bruno.ID, Assistido: "Bruno Souza", Convenio: strPtr("SUS"), Total: 2, Presencas: 1, Faltas: 1, Percentual: 50},
	}, linhas)

	linhas, err = s.g.RelatorioDeFrequencia(s.ctx, gestao.FiltroRelatorio{De: gestao.D(2024, 4, 1), Ate: gestao.D(2024, 4, 30)})
	s.Require().NoError(err)
	s.NotNil(linhas)
	s.Empty(linhas)
}

func (s *GestaoTestSuite) TestPlanilha() {
	s.registrarMarco()
	s.Require().NoError(s.g.SalvarConfiguracao(s.ctx, &gestao.Configuracao{NomeInstituicao: "APAE Curitiba", CabecalhoRelatorio: "Setor de Reabilitação"}))

	data, err := s.g.Planilha(s.ctx, gestao.RelatorioFrequencia, s.marco())
	s.Require().NoError(err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	s.Require().NoError(err)
	defer f.Close()
	rows, err := f.GetRows("Frequência")
	s.Require().NoError(err)
	s.Require().NotEmpty(rows)
	s.Equal("APAE Curitiba", rows[0][0])
	s.Equal("Setor de Reabilitação", rows[1][0])
	s.Equal("Relatório de Frequência - período de 01/03/2024 a 31/03/2024", rows[2][0])

	header := -1
	for i, row := range rows {
		if len(row) > 0 && row[0] == "Assistido" {
			header = i
			break
		}
	}
	s.Require().True(header > 2, "header row not found")
	s.Equal([]string{"Assistido", "Convênio", "Atendimentos", "Presenças", "Faltas", "Frequência"}, rows[header])
	s.Require().Len(rows, header+3)
	s.Equal("Ana Lima", rows[header+1][0])
	s.Equal("Bruno Souza", rows[header+2][0])
	s.Equal("SUS", rows[header+2][1])

	data, err = s.g.Planilha(s.ctx, gestao.RelatorioFaltas, gestao.FiltroRelatorio{De: gestao.D(2024, 4, 1), Ate: gestao.D(2024, 4, 30)})
	s.Require().NoError(err)
	f2, err := excelize.OpenReader(bytes.NewReader(data))
	s.Require().NoError(err)
	defer f2.Close()
	rows, err = f2.GetRows("Faltas")
	s.Require().NoError(err)
	s.Equal("Data", rows[len(rows)-1][0], "an empty report still has its header row")
}

func (s *GestaoTestSuite) TestArquivar() {
	s.registrarMarco()
	arquivo, err := s.g.Arquivar(s.ctx, gestao.RelatorioAtendimentos, s.marco())
	s.Require().NoError(err)
	s.True(strings.HasPrefix(arquivo.Chave, "relatorios/atendimentos/"))
	s.True(strings.HasSuffix(arquivo.Chave, "relatorio-atendimentos-2024-03-01-2024-03-31.xlsx"))
	s.Contains(arquivo.URL, "/kss/filesystem?")

	data, _, err := s.files.Download(s.ctx, arquivo.Chave)
	s.Require().NoError(err)
	_, err = excelize.OpenReader(bytes.NewReader(data))
	s.NoError(err)
}

func (s *GestaoTestSuite) TestSeed() {
	seed, err := gestao.ParseSeed([]byte(`
configuracao:
  nome_instituicao: APAE Colombo
municipios:
  - nome: Curitiba
    uf: PR
  - nome: Colombo
    uf: pr
    codigo_ibge: "4105805"
convenios:
  - nome: SUS
  - nome: Unimed
    cnpj: 12.345.678/0001-90
profissionais:
  - nome: Administradora
    email: admin@apae.org
    senha: trocar-no-primeiro-acesso
    perfil: admin
`))
	s.Require().NoError(err)

	r, err := s.g.AplicarSeed(s.ctx, seed)
	s.Require().NoError(err)
	s.Equal(&gestao.ResultadoSeed{Criados: 4, Existentes: 2}, r)

	r, err = s.g.AplicarSeed(s.ctx, seed)
	s.Require().NoError(err)
	s.Equal(&gestao.ResultadoSeed{Criados: 0, Existentes: 6}, r)

	sessao, err := s.g.Login(s.ctx, "admin@apae.org", "trocar-no-primeiro-acesso")
	s.Require().NoError(err)
	s.Equal(gestao.PerfilAdmin, sessao.Profissional.Perfil)

	c, err := s.g.Configuracao(s.ctx)
	s.Require().NoError(err)
	s.Equal("APAE Colombo", c.NomeInstituicao)

	_, err = gestao.ParseSeed([]byte("municipios: [nome"))
	s.Error(err)
}

package gestao

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/access"
	"github.com/apae-gestao/apae/core/pointers"
	"github.com/apae-gestao/apae/core/repository"
	"github.com/google/uuid"
)

// MinTamanhoSenha is the minimum length of a password
const MinTamanhoSenha = 6

func referenceError(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", repository.ErrReference, fmt.Sprintf(format, a...))
}

func somenteDigitos(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// normalizeDigits trims s to its digits and checks the count. Empty values become nil.
func normalizeDigits(s *string, campo string, n int) (*string, error) {
	s = pointers.NonEmpty(s)
	if s == nil {
		return nil, nil
	}
	d := somenteDigitos(*s)
	if len(d) != n {
		return nil, core.Validationf("%s deve ter %d dígitos", campo, n)
	}
	return &d, nil
}

func required(s string, campo string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", core.Validationf("%s é obrigatório", campo)
	}
	return s, nil
}

// count returns the number of items of repo matching the filters
func count[T any](ctx context.Context, repo repository.Repository[T], filters ...repository.Filter) (int, error) {
	return repo.Count(ctx, repository.Query{}.Where(filters...))
}

func (g *Gestao) prepareMunicipio(ctx context.Context, m *Municipio, existing *Municipio) (err error) {
	if m.Nome, err = required(m.Nome, "Nome"); err != nil {
		return err
	}
	m.UF = strings.ToUpper(strings.TrimSpace(m.UF))
	if len(m.UF) != 2 || strings.IndexFunc(m.UF, func(r rune) bool { return r < 'A' || r > 'Z' }) >= 0 {
		return core.Validationf("UF deve ter duas letras")
	}
	m.CodigoIBGE, err = normalizeDigits(m.CodigoIBGE, "CodigoIBGE", 7)
	return err
}

func (g *Gestao) prepareConvenio(ctx context.Context, c *Convenio, existing *Convenio) (err error) {
	if c.Nome, err = required(c.Nome, "Nome"); err != nil {
		return err
	}
	if c.CNPJ, err = normalizeDigits(c.CNPJ, "CNPJ", 14); err != nil {
		return err
	}
	c.Telefone = pointers.NonEmpty(c.Telefone)
	c.Email = pointers.NonEmpty(c.Email)
	return nil
}

func (g *Gestao) prepareProfissional(ctx context.Context, p *Profissional, existing *Profissional) (err error) {
	if p.Nome, err = required(p.Nome, "Nome"); err != nil {
		return err
	}
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if !strings.Contains(p.Email, "@") {
		return core.Validationf("Email inválido")
	}
	switch p.Perfil {
	case "":
		p.Perfil = PerfilProfissional
	case PerfilAdmin, PerfilProfissional, PerfilRecepcao:
	default:
		return core.Validationf("Perfil deve ser %s, %s ou %s", PerfilAdmin, PerfilProfissional, PerfilRecepcao)
	}
	if p.CPF, err = normalizeDigits(p.CPF, "CPF", 11); err != nil {
		return err
	}
	p.Especialidade = pointers.NonEmpty(p.Especialidade)
	p.RegistroProfissional = pointers.NonEmpty(p.RegistroProfissional)
	p.Telefone = pointers.NonEmpty(p.Telefone)

	senha := p.Senha
	p.Senha = ""
	if senha == "" && existing != nil {
		p.SenhaHash = existing.SenhaHash
		return nil
	}
	if len([]rune(senha)) < MinTamanhoSenha {
		return core.Validationf("Senha deve ter ao menos %d caracteres", MinTamanhoSenha)
	}
	p.SenhaHash, err = access.HashPassword(senha)
	return err
}

func (g *Gestao) prepareAssistido(ctx context.Context, a *Assistido, existing *Assistido) (err error) {
	if a.Nome, err = required(a.Nome, "Nome"); err != nil {
		return err
	}
	if a.DataNascimento.IsZero() {
		return core.Validationf("DataNascimento é obrigatória")
	}
	if a.DataNascimento.After(g.Hoje()) {
		return core.Validationf("DataNascimento não pode estar no futuro")
	}
	if a.CPF, err = normalizeDigits(a.CPF, "CPF", 11); err != nil {
		return err
	}
	if a.CEP, err = normalizeDigits(a.CEP, "CEP", 8); err != nil {
		return err
	}
	for _, s := range []**string{&a.RG, &a.Sexo, &a.NomeMae, &a.NomeResponsavel, &a.TelefoneResponsavel,
		&a.Endereco, &a.Bairro, &a.CID, &a.Diagnostico, &a.Observacoes} {
		*s = pointers.NonEmpty(*s)
	}
	if a.MunicipioID != nil {
		if err := g.Municipios.exists(ctx, *a.MunicipioID); err != nil {
			return err
		}
	}
	if a.ConvenioID != nil {
		if err := g.Convenios.exists(ctx, *a.ConvenioID); err != nil {
			return err
		}
	}
	return nil
}

// ParseHora parses "HH:MM"
func ParseHora(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil || len(s) != 5 {
		return 0, core.Validationf("horário '%s' inválido, formato esperado HH:MM", s)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func (g *Gestao) prepareAgendamento(ctx context.Context, a *Agendamento, existing *Agendamento) error {
	if a.AssistidoID == uuid.Nil || a.ProfissionalID == uuid.Nil {
		return core.Validationf("AssistidoId e ProfissionalId são obrigatórios")
	}
	if a.Data.IsZero() {
		return core.Validationf("Data é obrigatória")
	}
	inicio, err := ParseHora(a.HoraInicio)
	if err != nil {
		return err
	}
	fim, err := ParseHora(a.HoraFim)
	if err != nil {
		return err
	}
	if inicio >= fim {
		return core.Validationf("HoraInicio deve ser anterior a HoraFim")
	}
	switch a.Status {
	case "":
		a.Status = StatusAgendado
	case StatusAgendado, StatusCancelado, StatusConcluido:
	default:
		return core.Validationf("Status deve ser %s, %s ou %s", StatusAgendado, StatusCancelado, StatusConcluido)
	}

	if a.Recorrente {
		dias := map[int64]bool{}
		for _, d := range a.DiasSemana {
			if d < 0 || d > 6 {
				return core.Validationf("DiasSemana deve conter valores de 0 (domingo) a 6 (sábado)")
			}
			dias[d] = true
		}
		a.DiasSemana = make([]int64, 0, len(dias))
		for d := range dias {
			a.DiasSemana = append(a.DiasSemana, d)
		}
		sort.Slice(a.DiasSemana, func(i, j int) bool { return a.DiasSemana[i] < a.DiasSemana[j] })
		if a.DataFimRecorrencia != nil && a.DataFimRecorrencia.Before(a.Data) {
			return core.Validationf("DataFimRecorrencia não pode ser anterior a Data")
		}
	} else {
		a.DiasSemana = []int64{}
		a.DataFimRecorrencia = nil
	}
	a.Observacoes = pointers.NonEmpty(a.Observacoes)

	if err := g.Assistidos.exists(ctx, a.AssistidoID); err != nil {
		return err
	}
	return g.Profissionais.exists(ctx, a.ProfissionalID)
}

func (g *Gestao) prepareAtendimento(ctx context.Context, a *Atendimento, existing *Atendimento) error {
	if a.Data.IsZero() {
		return core.Validationf("Data é obrigatória")
	}
	if a.Data.After(g.Hoje()) {
		return core.Validationf("Data não pode estar no futuro")
	}
	if a.AgendamentoID != nil {
		agendamento, err := g.store.Agendamentos.Get(ctx, *a.AgendamentoID)
		if errors.Is(err, repository.ErrNotFound) {
			return referenceError("agendamento %s does not exist", *a.AgendamentoID)
		}
		if err != nil {
			return err
		}
		if a.AssistidoID == uuid.Nil {
			a.AssistidoID = agendamento.AssistidoID
		}
		if a.ProfissionalID == uuid.Nil {
			a.ProfissionalID = agendamento.ProfissionalID
		}
		if a.AssistidoID != agendamento.AssistidoID || a.ProfissionalID != agendamento.ProfissionalID {
			return core.Validationf("assistido e profissional devem ser os do agendamento")
		}
	}
	if a.AssistidoID == uuid.Nil || a.ProfissionalID == uuid.Nil {
		return core.Validationf("AssistidoId e ProfissionalId são obrigatórios")
	}
	a.Justificativa = pointers.NonEmpty(a.Justificativa)
	a.Evolucao = pointers.NonEmpty(a.Evolucao)

	if err := g.Assistidos.exists(ctx, a.AssistidoID); err != nil {
		return err
	}
	return g.Profissionais.exists(ctx, a.ProfissionalID)
}

// inUse returns a reference error if any of the counts is positive
func inUse(ctx context.Context, what string, counts ...func() (int, error)) error {
	for _, c := range counts {
		n, err := c()
		if err != nil {
			return err
		}
		if n > 0 {
			return referenceError("%s está em uso", what)
		}
	}
	return nil
}

func (g *Gestao) beforeDeleteMunicipio(ctx context.Context, id uuid.UUID) error {
	return inUse(ctx, "município", func() (int, error) {
		return count(ctx, g.store.Assistidos, repository.Eq("municipio_id", id))
	})
}

func (g *Gestao) beforeDeleteConvenio(ctx context.Context, id uuid.UUID) error {
	return inUse(ctx, "convênio", func() (int, error) {
		return count(ctx, g.store.Assistidos, repository.Eq("convenio_id", id))
	})
}

func (g *Gestao) beforeDeleteProfissional(ctx context.Context, id uuid.UUID) error {
	return inUse(ctx, "profissional",
		func() (int, error) { return count(ctx, g.store.Agendamentos, repository.Eq("profissional_id", id)) },
		func() (int, error) { return count(ctx, g.store.Atendimentos, repository.Eq("profissional_id", id)) },
	)
}

func (g *Gestao) beforeDeleteAssistido(ctx context.Context, id uuid.UUID) error {
	return inUse(ctx, "assistido",
		func() (int, error) { return count(ctx, g.store.Agendamentos, repository.Eq("assistido_id", id)) },
		func() (int, error) { return count(ctx, g.store.Atendimentos, repository.Eq("assistido_id", id)) },
	)
}

func (g *Gestao) beforeDeleteAgendamento(ctx context.Context, id uuid.UUID) error {
	return inUse(ctx, "agendamento", func() (int, error) {
		return count(ctx, g.store.Atendimentos, repository.Eq("agendamento_id", id))
	})
}

package gestao

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/apae-gestao/apae/core/access"
	"github.com/apae-gestao/apae/core/logger"
	"github.com/apae-gestao/apae/core/repository"
)

// login errors
var (
	ErrCredenciaisInvalidas = errors.New("email ou senha inválidos")
	ErrInativo              = errors.New("profissional inativo")
)

// Sessao is the result of a successful login
type Sessao struct {
	Token        string          `json:"Token"`
	Expira       time.Time       `json:"Expira"`
	Profissional ProfissionalDTO `json:"Profissional"`
}

// Authorization returns the authorization of a profissional. Its perfil is its role.
func Authorization(p *Profissional) access.Authorization {
	return access.Authorization{
		Roles:          []string{p.Perfil},
		Identity:       p.Email,
		ProfissionalID: p.ID,
	}
}

// Login checks the credentials of a profissional and issues a token
func (g *Gestao) Login(ctx context.Context, email, senha string) (*Sessao, error) {
	if g.tokens == nil {
		return nil, errors.New("no token issuer configured")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || senha == "" {
		return nil, ErrCredenciaisInvalidas
	}
	found, err := g.store.Profissionais.List(ctx, repository.Query{}.Where(repository.Eq("email", email)).Page(1, 0))
	if err != nil {
		return nil, err
	}
	rlog := logger.FromContext(ctx)
	if len(found) == 0 {
		access.CheckPasswordOfUnknownUser(senha)
		rlog.Infof("login of unknown email %s", email)
		return nil, ErrCredenciaisInvalidas
	}
	p := &found[0]
	if err := access.CheckPassword(p.SenhaHash, senha); err != nil {
		rlog.Infof("wrong password for %s", email)
		return nil, ErrCredenciaisInvalidas
	}
	if !p.Ativo {
		return nil, ErrInativo
	}
	token, expira, err := g.tokens.Issue(Authorization(p))
	if err != nil {
		return nil, err
	}
	rlog.Infof("%s logged in as %s", email, p.Perfil)
	return &Sessao{Token: token, Expira: expira, Profissional: NewProfissionalDTO(*p)}, nil
}

// Me returns the profissional of the authorization in ctx
func (g *Gestao) Me(ctx context.Context) (*ProfissionalDTO, error) {
	auth := access.AuthorizationFromContext(ctx)
	if auth == nil {
		return nil, ErrCredenciaisInvalidas
	}
	p, err := g.Profissionais.Get(ctx, auth.ProfissionalID)
	if err != nil {
		return nil, err
	}
	dto := NewProfissionalDTO(*p)
	return &dto, nil
}

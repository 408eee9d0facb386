package gestao

import (
	"context"
	"fmt"
	"strings"

	"github.com/apae-gestao/apae/core/logger"
	"github.com/apae-gestao/apae/core/repository"
	"gopkg.in/yaml.v3"
)

// Seed is the content of a seed file
type Seed struct {
	Configuracao *Configuracao `yaml:"configuracao"`
	Municipios   []struct {
		Nome       string `yaml:"nome"`
		UF         string `yaml:"uf"`
		CodigoIBGE string `yaml:"codigo_ibge"`
	} `yaml:"municipios"`
	Convenios []struct {
		Nome     string `yaml:"nome"`
		CNPJ     string `yaml:"cnpj"`
		Telefone string `yaml:"telefone"`
		Email    string `yaml:"email"`
	} `yaml:"convenios"`
	Profissionais []struct {
		Nome          string `yaml:"nome"`
		Email         string `yaml:"email"`
		Senha         string `yaml:"senha"`
		Perfil        string `yaml:"perfil"`
		Especialidade string `yaml:"especialidade"`
	} `yaml:"profissionais"`
}

// ResultadoSeed counts what a seed created and what already existed
type ResultadoSeed struct {
	Criados    int
	Existentes int
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

// ParseSeed reads a YAML seed file
func ParseSeed(data []byte) (*Seed, error) {
	seed := &Seed{}
	if err := yaml.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("cannot parse seed: %w", err)
	}
	return seed, nil
}

// AplicarSeed creates the items of seed which do not exist yet. Municípios are
// identified by name and UF, convênios by name and profissionais by email, so
// applying a seed twice creates nothing the second time.
func (g *Gestao) AplicarSeed(ctx context.Context, seed *Seed) (*ResultadoSeed, error) {
	r := &ResultadoSeed{}
	rlog := logger.FromContext(ctx)

	exists := func(n int, err error) (bool, error) {
		if err != nil {
			return false, err
		}
		if n > 0 {
			r.Existentes++
			return true, nil
		}
		r.Criados++
		return false, nil
	}

	for _, m := range seed.Municipios {
		found, err := exists(count(ctx, g.store.Municipios,
			repository.Eq("nome", strings.TrimSpace(m.Nome)),
			repository.Eq("uf", strings.ToUpper(strings.TrimSpace(m.UF)))))
		if err != nil {
			return nil, err
		}
		if found {
			continue
		}
		if err := g.Municipios.Create(ctx, &Municipio{Nome: m.Nome, UF: m.UF, CodigoIBGE: optional(m.CodigoIBGE)}); err != nil {
			return nil, fmt.Errorf("município %s: %w", m.Nome, err)
		}
	}

	for _, c := range seed.Convenios {
		found, err := exists(count(ctx, g.store.Convenios, repository.Eq("nome", strings.TrimSpace(c.Nome))))
		if err != nil {
			return nil, err
		}
		if found {
			continue
		}
		convenio := &Convenio{Nome: c.Nome, CNPJ: optional(c.CNPJ), Telefone: optional(c.Telefone), Email: optional(c.Email)}
		convenio.SetDefaults()
		if err := g.Convenios.Create(ctx, convenio); err != nil {
			return nil, fmt.Errorf("convênio %s: %w", c.Nome, err)
		}
	}

	for _, p := range seed.Profissionais {
		found, err := exists(count(ctx, g.store.Profissionais, repository.Eq("email", strings.ToLower(strings.TrimSpace(p.Email)))))
		if err != nil {
			return nil, err
		}
		if found {
			continue
		}
		profissional := &Profissional{}
		profissional.SetDefaults()
		profissional.Nome = p.Nome
		profissional.Email = p.Email
		profissional.Senha = p.Senha
		profissional.Especialidade = optional(p.Especialidade)
		if p.Perfil != "" {
			profissional.Perfil = p.Perfil
		}
		if err := g.Profissionais.Create(ctx, profissional); err != nil {
			return nil, fmt.Errorf("profissional %s: %w", p.Email, err)
		}
	}

	if seed.Configuracao != nil {
		ts, err := g.settings.Read(chaveConfiguracao, &Configuracao{})
		if err != nil {
			return nil, err
		}
		if ts.IsZero() {
			if err := g.SalvarConfiguracao(ctx, seed.Configuracao); err != nil {
				return nil, err
			}
			r.Criados++
		} else {
			r.Existentes++
		}
	}

	rlog.Infof("seed applied: %d created, %d existing", r.Criados, r.Existentes)
	return r, nil
}

package gestao

import (
	"context"
	"strings"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/logger"
)

const chaveConfiguracao = "configuracao"

// NomeInstituicaoPadrao is the chapter name until one is configured
const NomeInstituicaoPadrao = "APAE"

// Configuracao holds the settings of the chapter
type Configuracao struct {
	NomeInstituicao    string `json:"NomeInstituicao" yaml:"nome_instituicao"`
	CNPJ               string `json:"CNPJ" yaml:"cnpj"`
	Endereco           string `json:"Endereco" yaml:"endereco"`
	Telefone           string `json:"Telefone" yaml:"telefone"`
	CabecalhoRelatorio string `json:"CabecalhoRelatorio" yaml:"cabecalho_relatorio"`
}

// Configuracao returns the settings of the chapter, with defaults if none were written
func (g *Gestao) Configuracao(ctx context.Context) (*Configuracao, error) {
	c := &Configuracao{NomeInstituicao: NomeInstituicaoPadrao}
	if _, err := g.settings.Read(chaveConfiguracao, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SalvarConfiguracao validates and writes the settings of the chapter
func (g *Gestao) SalvarConfiguracao(ctx context.Context, c *Configuracao) error {
	var err error
	if c.NomeInstituicao, err = required(c.NomeInstituicao, "NomeInstituicao"); err != nil {
		return err
	}
	if c.CNPJ = strings.TrimSpace(c.CNPJ); c.CNPJ != "" {
		if c.CNPJ = somenteDigitos(c.CNPJ); len(c.CNPJ) != 14 {
			return core.Validationf("CNPJ deve ter 14 dígitos")
		}
	}
	c.Endereco = strings.TrimSpace(c.Endereco)
	c.Telefone = strings.TrimSpace(c.Telefone)
	c.CabecalhoRelatorio = strings.TrimSpace(c.CabecalhoRelatorio)
	if err := g.settings.Write(chaveConfiguracao, c); err != nil {
		return err
	}
	logger.FromContext(ctx).Infof("configuração da instituição %s atualizada", c.NomeInstituicao)
	return nil
}

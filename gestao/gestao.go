// Package gestao is the domain of the APAE management system: the registry
// of assistidos, profissionais, convênios and municípios, the schedule of
// appointments, the attendance records and the reports built on them.
package gestao

import (
	"time"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/access"
	"github.com/apae-gestao/apae/core/kss"
	"github.com/apae-gestao/apae/core/registry"
)

// Config holds the dependencies of the domain services
type Config struct {
	// Store is mandatory
	Store *Store
	// Registry stores the settings of the chapter
	Registry registry.Registry
	// Notifier receives change notifications. Optional.
	Notifier core.Notifier
	// KSS stores documents and archived reports. Optional, without it
	// documents and archiving are unavailable.
	KSS kss.Driver
	// Tokens issues the tokens of Login. Optional, without it Login fails.
	Tokens *access.TokenIssuer
	// Location is the time zone which defines "today", default America/Sao_Paulo
	Location *time.Location
	// Now is the clock, default time.Now
	Now func() time.Time
}

// Gestao bundles all domain services
type Gestao struct {
	Municipios    *CrudService[Municipio]
	Convenios     *CrudService[Convenio]
	Profissionais *CrudService[Profissional]
	Assistidos    *CrudService[Assistido]
	Agendamentos  *CrudService[Agendamento]
	Atendimentos  *CrudService[Atendimento]

	store    *Store
	settings registry.Accessor
	kss      kss.Driver
	tokens   *access.TokenIssuer
	location *time.Location
	now      func() time.Time
}

// New creates the domain services
func New(c Config) *Gestao {
	if c.Store == nil {
		panic("Store is missing")
	}
	g := &Gestao{
		store:    c.Store,
		settings: c.Registry.Accessor("apae"),
		kss:      c.KSS,
		tokens:   c.Tokens,
		location: c.Location,
		now:      c.Now,
	}
	if g.location == nil {
		var err error
		g.location, err = time.LoadLocation("America/Sao_Paulo")
		if err != nil {
			g.location = time.UTC
		}
	}
	if g.now == nil {
		g.now = time.Now
	}

	g.Municipios = NewCrudService(TabelaMunicipio, c.Store.Municipios, c.Notifier)
	g.Municipios.prepare = g.prepareMunicipio
	g.Municipios.beforeDelete = g.beforeDeleteMunicipio

	g.Convenios = NewCrudService(TabelaConvenio, c.Store.Convenios, c.Notifier)
	g.Convenios.prepare = g.prepareConvenio
	g.Convenios.beforeDelete = g.beforeDeleteConvenio

	g.Profissionais = NewCrudService(TabelaProfissional, c.Store.Profissionais, c.Notifier)
	g.Profissionais.prepare = g.prepareProfissional
	g.Profissionais.beforeDelete = g.beforeDeleteProfissional

	g.Assistidos = NewCrudService(TabelaAssistido, c.Store.Assistidos, c.Notifier)
	g.Assistidos.prepare = g.prepareAssistido
	g.Assistidos.beforeDelete = g.beforeDeleteAssistido
	g.Assistidos.afterDelete = g.removerDocumentos

	g.Agendamentos = NewCrudService(TabelaAgendamento, c.Store.Agendamentos, c.Notifier)
	g.Agendamentos.prepare = g.prepareAgendamento
	g.Agendamentos.beforeDelete = g.beforeDeleteAgendamento

	g.Atendimentos = NewCrudService(TabelaAtendimento, c.Store.Atendimentos, c.Notifier)
	g.Atendimentos.prepare = g.prepareAtendimento
	return g
}

// Hoje returns today in the configured time zone
func (g *Gestao) Hoje() Dia {
	return NovoDia(g.now().In(g.location))
}

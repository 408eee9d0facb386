package gestao

import (
	"embed"
	"io/fs"

	"github.com/apae-gestao/apae/core/csql"
	"github.com/apae-gestao/apae/core/repository"
	"github.com/apae-gestao/apae/core/schema"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

//go:embed schemas
var schemasFS embed.FS

// Migrations returns the database migrations of the domain
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// SchemaID returns the JSON schema id of a resource
func SchemaID(resource string) string {
	return "https://apae.org/schemas/" + resource + ".json"
}

// NewValidator returns a validator for all request bodies of the domain
func NewValidator() (*schema.Validator, error) {
	sub, err := fs.Sub(schemasFS, "schemas")
	if err != nil {
		return nil, err
	}
	return schema.NewValidatorFromFS(sub)
}

// Store holds the repositories of all entities
type Store struct {
	Municipios    repository.Repository[Municipio]
	Convenios     repository.Repository[Convenio]
	Profissionais repository.Repository[Profissional]
	Assistidos    repository.Repository[Assistido]
	Agendamentos  repository.Repository[Agendamento]
	Atendimentos  repository.Repository[Atendimento]
}

// NewPostgresStore returns a store on db. The migrations must have been applied.
func NewPostgresStore(db *csql.DB) *Store {
	return &Store{
		Municipios:    repository.NewPostgres[Municipio](db, TabelaMunicipio),
		Convenios:     repository.NewPostgres[Convenio](db, TabelaConvenio),
		Profissionais: repository.NewPostgres[Profissional](db, TabelaProfissional),
		Assistidos:    repository.NewPostgres[Assistido](db, TabelaAssistido),
		Agendamentos:  repository.NewPostgres[Agendamento](db, TabelaAgendamento),
		Atendimentos:  repository.NewPostgres[Atendimento](db, TabelaAtendimento),
	}
}

// NewMemoryStore returns a store kept in memory, with the same unique
// constraints as the database
func NewMemoryStore() *Store {
	return &Store{
		Municipios:    repository.NewMemory[Municipio](TabelaMunicipio).Unique("nome", "uf"),
		Convenios:     repository.NewMemory[Convenio](TabelaConvenio),
		Profissionais: repository.NewMemory[Profissional](TabelaProfissional).Unique("email"),
		Assistidos:    repository.NewMemory[Assistido](TabelaAssistido).Unique("cpf"),
		Agendamentos:  repository.NewMemory[Agendamento](TabelaAgendamento),
		Atendimentos:  repository.NewMemory[Atendimento](TabelaAtendimento).Unique("agendamento_id", "data"),
	}
}

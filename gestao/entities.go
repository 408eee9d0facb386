package gestao

import (
	"time"

	"github.com/google/uuid"
)

// table names, also used as resource names
const (
	TabelaMunicipio    = "municipio"
	TabelaConvenio     = "convenio"
	TabelaProfissional = "profissional"
	TabelaAssistido    = "assistido"
	TabelaAgendamento  = "agendamento"
	TabelaAtendimento  = "atendimento"
)

// perfis of a Profissional, they are also the roles of its authorization
const (
	PerfilAdmin        = "admin"
	PerfilProfissional = "profissional"
	PerfilRecepcao     = "recepcao"
)

// status of an Agendamento
const (
	StatusAgendado  = "Agendado"
	StatusCancelado = "Cancelado"
	StatusConcluido = "Concluido"
)

// Municipio is a municipality assistidos live in
type Municipio struct {
	ID         uuid.UUID `db:"id" json:"Id"`
	Nome       string    `db:"nome" json:"Nome"`
	UF         string    `db:"uf" json:"UF"`
	CodigoIBGE *string   `db:"codigo_ibge" json:"CodigoIBGE"`
	CriadoEm   time.Time `db:"criado_em" json:"CriadoEm"`
}

// Convenio is a health agreement covering assistidos
type Convenio struct {
	ID       uuid.UUID `db:"id" json:"Id"`
	Nome     string    `db:"nome" json:"Nome"`
	CNPJ     *string   `db:"cnpj" json:"CNPJ"`
	Telefone *string   `db:"telefone" json:"Telefone"`
	Email    *string   `db:"email" json:"Email"`
	Ativo    bool      `db:"ativo" json:"Ativo"`
	CriadoEm time.Time `db:"criado_em" json:"CriadoEm"`
}

// SetDefaults is called before a request body is decoded
func (c *Convenio) SetDefaults() {
	c.Ativo = true
}

// Profissional is a member of the staff and a user of the system
type Profissional struct {
	ID                   uuid.UUID `db:"id" json:"Id"`
	Nome                 string    `db:"nome" json:"Nome"`
	Email                string    `db:"email" json:"Email"`
	CPF                  *string   `db:"cpf" json:"CPF"`
	Especialidade        *string   `db:"especialidade" json:"Especialidade"`
	RegistroProfissional *string   `db:"registro_profissional" json:"RegistroProfissional"`
	Telefone             *string   `db:"telefone" json:"Telefone"`
	Perfil               string    `db:"perfil" json:"Perfil"`
	Ativo                bool      `db:"ativo" json:"Ativo"`
	SenhaHash            string    `db:"senha_hash,private" json:"-"`
	CriadoEm             time.Time `db:"criado_em" json:"CriadoEm"`

	// Senha is the clear text password of create and update requests. It is
	// never stored nor returned.
	Senha string `json:"Senha,omitempty"`
}

// SetDefaults is called before a request body is decoded
func (p *Profissional) SetDefaults() {
	p.Ativo = true
	p.Perfil = PerfilProfissional
}

// Assistido is a person served by the APAE
type Assistido struct {
	ID                  uuid.UUID  `db:"id" json:"Id"`
	Nome                string     `db:"nome" json:"Nome"`
	CPF                 *string    `db:"cpf" json:"CPF"`
	RG                  *string    `db:"rg" json:"RG"`
	DataNascimento      Dia        `db:"data_nascimento" json:"DataNascimento"`
	Sexo                *string    `db:"sexo" json:"Sexo"`
	NomeMae             *string    `db:"nome_mae" json:"NomeMae"`
	NomeResponsavel     *string    `db:"nome_responsavel" json:"NomeResponsavel"`
	TelefoneResponsavel *string    `db:"telefone_responsavel" json:"TelefoneResponsavel"`
	Endereco            *string    `db:"endereco" json:"Endereco"`
	Bairro              *string    `db:"bairro" json:"Bairro"`
	CEP                 *string    `db:"cep" json:"CEP"`
	MunicipioID         *uuid.UUID `db:"municipio_id" json:"MunicipioId"`
	ConvenioID          *uuid.UUID `db:"convenio_id" json:"ConvenioId"`
	CID                 *string    `db:"cid" json:"CID"`
	Diagnostico         *string    `db:"diagnostico" json:"Diagnostico"`
	DataIngresso        *Dia       `db:"data_ingresso" json:"DataIngresso"`
	Ativo               bool       `db:"ativo" json:"Ativo"`
	Observacoes         *string    `db:"observacoes" json:"Observacoes"`
	CriadoEm            time.Time  `db:"criado_em" json:"CriadoEm"`
}

// SetDefaults is called before a request body is decoded
func (a *Assistido) SetDefaults() {
	a.Ativo = true
}

// Agendamento is an appointment of an assistido with a profissional. A
// recurring appointment repeats on the weekdays DiasSemana, starting at Data
// and ending with DataFimRecorrencia, if set.
type Agendamento struct {
	ID                 uuid.UUID `db:"id" json:"Id"`
	AssistidoID        uuid.UUID `db:"assistido_id" json:"AssistidoId"`
	ProfissionalID     uuid.UUID `db:"profissional_id" json:"ProfissionalId"`
	Data               Dia       `db:"data" json:"Data"`
	HoraInicio         string    `db:"hora_inicio" json:"HoraInicio"`
	HoraFim            string    `db:"hora_fim" json:"HoraFim"`
	Recorrente         bool      `db:"recorrente" json:"Recorrente"`
	DiasSemana         []int64   `db:"dias_semana" json:"DiasSemana"`
	DataFimRecorrencia *Dia      `db:"data_fim_recorrencia" json:"DataFimRecorrencia"`
	Status             string    `db:"status" json:"Status"`
	Observacoes        *string   `db:"observacoes" json:"Observacoes"`
	CriadoEm           time.Time `db:"criado_em" json:"CriadoEm"`
}

// SetDefaults is called before a request body is decoded
func (a *Agendamento) SetDefaults() {
	a.Status = StatusAgendado
}

// Atendimento records that an assistido was seen, or missed, on a day
type Atendimento struct {
	ID             uuid.UUID  `db:"id" json:"Id"`
	AgendamentoID  *uuid.UUID `db:"agendamento_id" json:"AgendamentoId"`
	AssistidoID    uuid.UUID  `db:"assistido_id" json:"AssistidoId"`
	ProfissionalID uuid.UUID  `db:"profissional_id" json:"ProfissionalId"`
	Data           Dia        `db:"data" json:"Data"`
	Presente       bool       `db:"presente" json:"Presente"`
	Justificativa  *string    `db:"justificativa" json:"Justificativa"`
	Evolucao       *string    `db:"evolucao" json:"Evolucao"`
	CriadoEm       time.Time  `db:"criado_em" json:"CriadoEm"`
}

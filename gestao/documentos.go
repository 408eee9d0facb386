package gestao

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/apae-gestao/apae/core"
	"github.com/apae-gestao/apae/core/kss"
	"github.com/apae-gestao/apae/core/repository"
	"github.com/google/uuid"
)

// ErrSemArmazenamento is returned by document operations when no key storage is configured
var ErrSemArmazenamento = errors.New("no document storage configured")

// ValidadeURL is how long presigned document URLs are valid
const ValidadeURL = 15 * time.Minute

// Documento is a file attached to an assistido, for example a medical report
type Documento struct {
	Nome  string `json:"Nome"`
	Chave string `json:"Chave"`
}

func prefixoAssistido(assistidoID uuid.UUID) string {
	return "assistidos/" + assistidoID.String() + "/"
}

func chaveDocumento(assistidoID uuid.UUID, nome string) string {
	return prefixoAssistido(assistidoID) + "documentos/" + nome
}

func validarNomeDocumento(nome string) error {
	if nome == "" || len(nome) > 200 || strings.ContainsAny(nome, `/\`) || nome == "." || nome == ".." {
		return core.Validationf("nome de documento '%s' inválido", nome)
	}
	return nil
}

// documento checks the storage, the assistido and the name and returns the storage key
func (g *Gestao) documento(ctx context.Context, assistidoID uuid.UUID, nome string) (string, error) {
	if g.kss == nil {
		return "", ErrSemArmazenamento
	}
	if _, err := g.Assistidos.Get(ctx, assistidoID); err != nil {
		return "", err
	}
	if err := validarNomeDocumento(nome); err != nil {
		return "", err
	}
	key := chaveDocumento(assistidoID, nome)
	if err := kss.ValidateKey(key); err != nil {
		return "", core.Validationf("%s", err)
	}
	return key, nil
}

func notFound(err error, key string) error {
	if errors.Is(err, kss.ErrNotFound) {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, key)
	}
	return err
}

// Documentos lists the documents of an assistido
func (g *Gestao) Documentos(ctx context.Context, assistidoID uuid.UUID) ([]Documento, error) {
	if g.kss == nil {
		return nil, ErrSemArmazenamento
	}
	if _, err := g.Assistidos.Get(ctx, assistidoID); err != nil {
		return nil, err
	}
	keys, err := g.kss.ListAllWithPrefix(ctx, prefixoAssistido(assistidoID)+"documentos/")
	if err != nil {
		return nil, err
	}
	documentos := make([]Documento, len(keys))
	for i, key := range keys {
		documentos[i] = Documento{Nome: path.Base(key), Chave: key}
	}
	return documentos, nil
}

// EnviarDocumento stores a document of an assistido, replacing one with the same name
func (g *Gestao) EnviarDocumento(ctx context.Context, assistidoID uuid.UUID, nome, contentType string, data []byte) (*Documento, error) {
	key, err := g.documento(ctx, assistidoID, nome)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, core.Validationf("documento vazio")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := g.kss.Upload(ctx, key, contentType, data); err != nil {
		return nil, err
	}
	return &Documento{Nome: nome, Chave: key}, nil
}

// BaixarDocumento returns the content and content type of a document
func (g *Gestao) BaixarDocumento(ctx context.Context, assistidoID uuid.UUID, nome string) ([]byte, string, error) {
	key, err := g.documento(ctx, assistidoID, nome)
	if err != nil {
		return nil, "", err
	}
	data, contentType, err := g.kss.Download(ctx, key)
	return data, contentType, notFound(err, key)
}

// URLDocumento returns a presigned download URL of a document
func (g *Gestao) URLDocumento(ctx context.Context, assistidoID uuid.UUID, nome string) (string, error) {
	key, err := g.documento(ctx, assistidoID, nome)
	if err != nil {
		return "", err
	}
	return g.kss.GetPreSignedURL(ctx, kss.Get, key, ValidadeURL)
}

// RemoverDocumento deletes a document
func (g *Gestao) RemoverDocumento(ctx context.Context, assistidoID uuid.UUID, nome string) error {
	key, err := g.documento(ctx, assistidoID, nome)
	if err != nil {
		return err
	}
	return notFound(g.kss.Delete(ctx, key), key)
}

// removerDocumentos deletes all files of a deleted assistido
func (g *Gestao) removerDocumentos(ctx context.Context, assistidoID uuid.UUID) error {
	if g.kss == nil {
		return nil
	}
	return g.kss.DeleteAllWithPrefix(ctx, prefixoAssistido(assistidoID))
}

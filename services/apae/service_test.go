package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/apae-gestao/apae/core/client"
	"github.com/apae-gestao/apae/core/kss"
	"github.com/apae-gestao/apae/core/notifications"
	"github.com/apae-gestao/apae/gestao"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadService(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("AUTHORIZATION", "false")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	service, err := loadService()
	require.NoError(t, err)
	assert.Equal(t, 8080, service.Port)
	assert.Equal(t, 30*time.Minute, service.TokenTTL)
	assert.False(t, service.Authorization)
	assert.Equal(t, "apae", service.PostgresSchema)
	assert.Equal(t, "apae-events", service.KafkaTopic)
	assert.Equal(t, "text", service.LogFormat)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, splitList(service.KafkaBrokers))
}

func TestTokenIssuerAndAuthenticators(t *testing.T) {
	service := &Service{JWTIssuer: "apae", TokenTTL: time.Hour}
	assert.Nil(t, service.tokenIssuer())
	assert.Empty(t, service.authenticators(nil))

	service.JWTSecret = "segredo"
	service.BackdoorToken = "please"
	issuer := service.tokenIssuer()
	require.NotNil(t, issuer)
	assert.Equal(t, time.Hour, issuer.TTL)
	assert.Len(t, service.authenticators(issuer), 2)
}

func TestPublishers(t *testing.T) {
	service := &Service{}
	publishers, err := service.publishers(context.Background())
	require.NoError(t, err)
	require.Len(t, publishers, 1)
	assert.Equal(t, notifications.Log{}.Name(), publishers[0].Name())

	service.KafkaBrokers = "localhost:9092"
	service.KafkaTopic = "apae-events"
	publishers, err = service.publishers(context.Background())
	require.NoError(t, err)
	require.Len(t, publishers, 1)
	assert.Equal(t, "kafka:apae-events", publishers[0].Name())
	assert.NoError(t, publishers[0].Close())
}

func TestStorage(t *testing.T) {
	service := &Service{PublicURL: "http://localhost:3000"}
	files, err := service.storage(mux.NewRouter())
	require.NoError(t, err)
	assert.Nil(t, files)

	service.KSSFilesystemPath = t.TempDir()
	files, err = service.storage(mux.NewRouter())
	require.NoError(t, err)
	assert.IsType(t, &kss.LocalFilesystem{}, files)

	service.PublicURL = "://"
	_, err = service.storage(mux.NewRouter())
	assert.Error(t, err)
}

func TestStorage_SignsWithOwnSecret(t *testing.T) {
	ctx := context.Background()
	service := &Service{
		PublicURL:         "http://localhost:3000",
		KSSFilesystemPath: t.TempDir(),
		KSSSecret:         "segredo-dos-arquivos",
		JWTSecret:         "segredo-dos-tokens",
	}
	files, err := service.storage(mux.NewRouter())
	require.NoError(t, err)
	require.NoError(t, files.Upload(ctx, "assistidos/1/laudo.txt", "text/plain", []byte("laudo")))
	link, err := files.GetPreSignedURL(ctx, kss.Get, "assistidos/1/laudo.txt", time.Minute)
	require.NoError(t, err)

	// another instance with the same KSS_SECRET accepts the link
	router := mux.NewRouter()
	_, err = service.storage(router)
	require.NoError(t, err)
	var data []byte
	status, _, err := client.NewWithRouter(router).RawGetBlobWithHeader(link, map[string]string{}, &data)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "laudo", string(data))

	// the JWT secret does not sign links
	other := *service
	other.KSSSecret = other.JWTSecret
	router = mux.NewRouter()
	_, err = other.storage(router)
	require.NoError(t, err)
	status, _, _ = client.NewWithRouter(router).RawGetBlobWithHeader(link, map[string]string{}, &data)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestMemoryDomain(t *testing.T) {
	service := &Service{KSSFilesystemPath: t.TempDir(), PublicURL: "http://localhost:3000"}
	ctx := context.Background()
	d, err := service.newDomain(ctx, mux.NewRouter(), true)
	require.NoError(t, err)
	defer d.Close()
	assert.Nil(t, d.db)

	m := &gestao.Municipio{Nome: "Curitiba", UF: "PR"}
	require.NoError(t, d.g.Municipios.Create(ctx, m))
	found, err := d.g.Municipios.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "Curitiba", found.Nome)

	_, err = (&Service{}).openDB()
	assert.Error(t, err, "POSTGRES is required")
}

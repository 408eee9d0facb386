package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/apae-gestao/apae/core/access"
	"github.com/apae-gestao/apae/core/csql"
	"github.com/apae-gestao/apae/core/kss"
	"github.com/apae-gestao/apae/core/logger"
	"github.com/apae-gestao/apae/core/notifications"
	"github.com/apae-gestao/apae/core/registry"
	"github.com/apae-gestao/apae/gestao"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"

	_ "github.com/lib/pq"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres dbname=postgres sslmode=disable"
type Service struct {
	Postgres         string `env:"POSTGRES" description:"the connection string for the Postgres DB without password"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" description:"password to the Postgres DB"`
	PostgresSchema   string `env:"POSTGRES_SCHEMA,default=apae" description:"the database schema"`
	Port             int    `env:"PORT,default=3000" description:"the port the service listens on"`
	LogLevel         string `env:"LOG_LEVEL,default=info" description:"the log level: debug, info, warn or error"`
	LogFormat        string `env:"LOG_FORMAT,default=text" description:"the log format: text or json"`

	JWTSecret     string        `env:"JWT_SECRET" description:"the secret tokens are signed with, login is disabled without it"`
	JWTIssuer     string        `env:"JWT_ISSUER,default=apae" description:"the issuer of the tokens"`
	TokenTTL      time.Duration `env:"TOKEN_TTL,default=12h" description:"how long tokens are valid"`
	BackdoorToken string        `env:"BACKDOOR_TOKEN" description:"a static admin token for development"`
	Authorization bool          `env:"AUTHORIZATION,default=true" description:"enforce permits, false lets every request act as admin"`

	KafkaBrokers string `env:"KAFKA_BROKERS" description:"comma separated Kafka brokers for change events"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=apae-events" description:"the Kafka topic of change events"`
	SQSQueueURL  string `env:"SQS_QUEUE_URL" description:"an SQS queue for change events"`

	AWSRegion    string `env:"AWS_REGION,default=sa-east-1" description:"the AWS region of S3 and SQS"`
	AWSAccessID  string `env:"AWS_ACCESS_ID" description:"AWS access id, the default credential chain is used without it"`
	AWSAccessKey string `env:"AWS_ACCESS_KEY" description:"AWS access key"`
	S3Bucket     string `env:"S3_BUCKET" description:"the bucket of documents and archived reports"`
	S3Prefix     string `env:"S3_PREFIX" description:"prefix of all keys in the bucket"`

	KSSFilesystemPath string `env:"KSS_FILESYSTEM_PATH,default=./data" description:"the folder of documents without S3 bucket"`
	KSSSecret         string `env:"KSS_SECRET" description:"the secret download links of the folder are signed with, random per process without it"`
	PublicURL         string `env:"PUBLIC_URL,default=http://localhost:3000" description:"the public URL of the service, for signed download links"`
	CORSOrigin        string `env:"CORS_ORIGIN" description:"the allowed CORS origin, default *"`
}

// loadService decodes the service configuration from the environment
func loadService() (*Service, error) {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		return nil, fmt.Errorf("cannot decode environment: %w", err)
	}
	return service, nil
}

// openDB connects to the database and applies the migrations
func (s *Service) openDB() (*csql.DB, error) {
	if s.Postgres == "" {
		return nil, fmt.Errorf("POSTGRES is not set")
	}
	db := csql.OpenWithSchema(s.Postgres, s.PostgresPassword, s.PostgresSchema)
	if err := db.Migrate(gestao.Migrations()); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// tokenIssuer returns nil without JWT_SECRET
func (s *Service) tokenIssuer() *access.TokenIssuer {
	if s.JWTSecret == "" {
		return nil
	}
	return &access.TokenIssuer{Secret: []byte(s.JWTSecret), Issuer: s.JWTIssuer, TTL: s.TokenTTL}
}

// authenticators returns the authentication middlewares. The backdoor goes first.
func (s *Service) authenticators(issuer *access.TokenIssuer) []mux.MiddlewareFunc {
	var mws []mux.MiddlewareFunc
	if s.BackdoorToken != "" {
		logger.Default().Warnln("backdoor token enabled, do not use in production")
		mws = append(mws, access.NewBackdoorMiddleware(map[string]access.Authorization{
			s.BackdoorToken: {Roles: []string{access.RoleAdmin}, Identity: "backdoor"},
		}))
	}
	if issuer != nil {
		mws = append(mws, access.NewJwtMiddleware(issuer))
	}
	return mws
}

func (s *Service) awsConfig(ctx context.Context) (aws.Config, error) {
	options := []func(*config.LoadOptions) error{config.WithRegion(s.AWSRegion)}
	if s.AWSAccessID != "" {
		options = append(options, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AWSAccessID, s.AWSAccessKey, "")))
	}
	return config.LoadDefaultConfig(ctx, options...)
}

// publishers returns the configured event publishers, or the log publisher
// if none is configured
func (s *Service) publishers(ctx context.Context) ([]notifications.Publisher, error) {
	var publishers []notifications.Publisher
	if brokers := splitList(s.KafkaBrokers); len(brokers) > 0 {
		k, err := notifications.NewKafka(notifications.KafkaConfiguration{Brokers: brokers, Topic: s.KafkaTopic})
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, k)
	}
	if s.SQSQueueURL != "" {
		cfg, err := s.awsConfig(ctx)
		if err != nil {
			return nil, err
		}
		publishers = append(publishers, notifications.NewSQS(sqs.NewFromConfig(cfg), s.SQSQueueURL))
	}
	if len(publishers) == 0 {
		publishers = append(publishers, notifications.Log{})
	}
	return publishers, nil
}

// notifier returns the dispatcher of change events. Close it to flush pending events.
func (s *Service) notifier(ctx context.Context) (*notifications.Dispatcher, error) {
	publishers, err := s.publishers(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range publishers {
		logger.Default().Infoln("publishing change events to", p.Name())
	}
	return notifications.NewDispatcher(notifications.Options{}, publishers...), nil
}

// storage returns the key storage: S3 with a bucket, the local filesystem
// with a path, nothing otherwise. The filesystem driver serves its signed
// URLs on router.
func (s *Service) storage(router *mux.Router) (kss.Driver, error) {
	if s.S3Bucket != "" {
		return kss.NewS3(kss.S3Configuration{
			AccessID:      s.AWSAccessID,
			AccessKey:     s.AWSAccessKey,
			AWSBucketName: s.S3Bucket,
			AWSRegion:     s.AWSRegion,
			KeyPrefix:     s.S3Prefix,
		})
	}
	if s.KSSFilesystemPath == "" {
		logger.Default().Warnln("no key storage configured, documents are disabled")
		return nil, nil
	}
	publicURL, err := url.Parse(s.PublicURL)
	if err != nil {
		return nil, fmt.Errorf("invalid PUBLIC_URL: %w", err)
	}
	return kss.NewLocalFilesystem(router, kss.LocalConfiguration{
		BasePath: s.KSSFilesystemPath,
		Secret:   []byte(s.KSSSecret),
	}, *publicURL)
}

// domain bundles the domain services and what must be closed with them
type domain struct {
	g        *gestao.Gestao
	db       *csql.DB
	notifier *notifications.Dispatcher
}

func (d *domain) Close() {
	if d.notifier != nil {
		if err := d.notifier.Close(); err != nil {
			logger.Default().WithError(err).Errorln("cannot close notifier")
		}
	}
	if d.db != nil {
		d.db.Close()
	}
}

// newDomain creates the domain services, on the database or in memory
func (s *Service) newDomain(ctx context.Context, router *mux.Router, memory bool) (*domain, error) {
	d := &domain{}
	var (
		store *gestao.Store
		reg   registry.Registry
	)
	if memory {
		logger.Default().Warnln("demo mode, all data is kept in memory")
		store, reg = gestao.NewMemoryStore(), registry.NewMemory()
	} else {
		db, err := s.openDB()
		if err != nil {
			return nil, err
		}
		d.db = db
		store, reg = gestao.NewPostgresStore(db), registry.New(db)
	}

	notifier, err := s.notifier(ctx)
	if err != nil {
		d.Close()
		return nil, err
	}
	d.notifier = notifier

	if router == nil {
		router = mux.NewRouter()
	}
	files, err := s.storage(router)
	if err != nil {
		d.Close()
		return nil, err
	}

	d.g = gestao.New(gestao.Config{
		Store:    store,
		Registry: reg,
		Notifier: notifier,
		KSS:      files,
		Tokens:   s.tokenIssuer(),
	})
	return d, nil
}

func splitList(s string) []string {
	var res []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			res = append(res, item)
		}
	}
	return res
}

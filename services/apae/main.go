package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apae-gestao/apae/core/backend"
	"github.com/apae-gestao/apae/core/logger"
	"github.com/apae-gestao/apae/gestao"
	"github.com/apae-gestao/apae/gestao/api"
	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var service *Service
	root := &cobra.Command{
		Use:           "apae",
		Short:         "Management backend of an APAE chapter",
		Version:       backend.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if service, err = loadService(); err != nil {
				return err
			}
			logger.InitLogger(logger.ParseLevel(service.LogLevel), service.LogFormat)
			return nil
		},
	}
	// the commands read service when they run, after PersistentPreRunE
	current := func() *Service { return service }
	root.AddCommand(
		newServeCommand(current),
		newMigrateCommand(current),
		newSeedCommand(current),
		newExportCommand(current),
	)
	return root
}

func newServeCommand(service func() *Service) *cobra.Command {
	var memory bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, service(), memory)
		},
	}
	cmd.Flags().BoolVar(&memory, "memory", false, "keep all data in memory, for demos")
	return cmd
}

func serve(ctx context.Context, service *Service, memory bool) error {
	rlog := logger.Default()
	router := mux.NewRouter()

	d, err := service.newDomain(ctx, router, memory)
	if err != nil {
		return err
	}
	defer d.Close()

	validator, err := gestao.NewValidator()
	if err != nil {
		return err
	}
	issuer := service.tokenIssuer()
	if issuer == nil {
		rlog.Warnln("JWT_SECRET is not set, login is disabled")
	}
	b := backend.New(&backend.Builder{
		Router:               router,
		DB:                   d.db,
		AuthorizationEnabled: service.Authorization,
		Authenticators:       service.authenticators(issuer),
		Validator:            validator,
		CORSOrigin:           service.CORSOrigin,
	})
	api.Register(b, d.g)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", service.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		rlog.Infof("listen on port :%d", service.Port)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	rlog.Infoln("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	rlog.Infoln("stopped")
	return nil
}

func newMigrateCommand(service func() *Service) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := service().openDB()
			if err != nil {
				return err
			}
			defer db.Close()
			logger.Default().Infoln("database is up to date")
			return nil
		},
	}
}

func newSeedCommand(service func() *Service) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the municípios, convênios and profissionais of a YAML seed file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			seed, err := gestao.ParseSeed(data)
			if err != nil {
				return err
			}
			d, err := service().newDomain(cmd.Context(), nil, false)
			if err != nil {
				return err
			}
			defer d.Close()
			r, err := d.g.AplicarSeed(cmd.Context(), seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d created, %d already existed\n", r.Criados, r.Existentes)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "seed.yaml", "the seed file")
	return cmd
}

func newExportCommand(service func() *Service) *cobra.Command {
	var (
		tipo, de, ate, out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a report as spreadsheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !gestao.TipoRelatorioValido(tipo) {
				return fmt.Errorf("unknown report %q", tipo)
			}
			var (
				f   gestao.FiltroRelatorio
				err error
			)
			if f.De, err = gestao.ParseDia(de); err != nil {
				return err
			}
			if f.Ate, err = gestao.ParseDia(ate); err != nil {
				return err
			}
			d, err := service().newDomain(cmd.Context(), nil, false)
			if err != nil {
				return err
			}
			defer d.Close()
			data, err := d.g.Planilha(cmd.Context(), tipo, f)
			if err != nil {
				return err
			}
			if out == "" {
				out = gestao.NomeArquivo(tipo, f)
			}
			if err := os.WriteFile(out, data, 0644); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&tipo, "relatorio", gestao.RelatorioAtendimentos, "the report: atendimentos, faltas, presencas or frequencia")
	cmd.Flags().StringVar(&de, "de", "", "first day of the period, like 2024-03-01")
	cmd.Flags().StringVar(&ate, "ate", "", "last day of the period, like 2024-03-31")
	cmd.Flags().StringVarP(&out, "out", "o", "", "the output file, default relatorio-{tipo}-{de}-{ate}.xlsx")
	cmd.MarkFlagRequired("de")
	cmd.MarkFlagRequired("ate")
	return cmd
}

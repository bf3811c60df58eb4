package cmd

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.etcd.io/bbolt"

	"github.com/jcarver/latchkey/api"
	"github.com/jcarver/latchkey/internal/util"
	"github.com/jcarver/latchkey/storage"
	bboltstorage "github.com/jcarver/latchkey/storage/bbolt"
	"github.com/jcarver/latchkey/storage/memory"
	"github.com/jcarver/latchkey/storage/postgres"
)

var (
	port        int
	dataDir     string
	tlsCert     string
	tlsKey      string
	storageKind string
	postgresDSN string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the account recovery server",
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			repo     storage.Repository
			apiOpts  []api.Option
			closeFns []func()
		)
		defer func() {
			for i := len(closeFns) - 1; i >= 0; i-- {
				closeFns[i]()
			}
		}()

		switch storageKind {
		case "bbolt":
			if err := os.MkdirAll(dataDir, 0o700); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			db, err := bbolt.Open(filepath.Join(dataDir, "latchkey.db"), 0600, nil)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			closeFns = append(closeFns, func() { db.Close() })

			repo, err = bboltstorage.NewRepository(db)
			if err != nil {
				return fmt.Errorf("failed to initialize storage: %w", err)
			}
			sessions, err := api.NewBoltSessionStore(db, 0)
			if err != nil {
				return fmt.Errorf("failed to initialize session store: %w", err)
			}
			closeFns = append(closeFns, sessions.Close)
			apiOpts = append(apiOpts, api.WithSessionStore(sessions))
		case "postgres":
			if postgresDSN == "" {
				return errors.New("--postgres-dsn is required with --storage postgres")
			}
			store, err := postgres.NewRepositoryFromDSN(cmd.Context(), postgresDSN)
			if err != nil {
				return fmt.Errorf("failed to open postgres storage: %w", err)
			}
			closeFns = append(closeFns, store.Close)
			repo = store
		case "memory":
			repo = memory.NewRepository()
		default:
			return fmt.Errorf("unknown storage kind %q (want bbolt, postgres, or memory)", storageKind)
		}

		a := api.New(repo, apiOpts...)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)
		r.Use(api.SecurityHeaders)

		r.Mount("/api/v1", a.Router())

		var tlsConfig *tls.Config
		if tlsCert != "" && tlsKey != "" {
			cert, err := tls.LoadX509KeyPair(tlsCert, tlsKey)
			if err != nil {
				return fmt.Errorf("failed to load TLS key pair: %w", err)
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
		} else {
			cert, err := util.GenerateSelfSignedCert()
			if err != nil {
				return fmt.Errorf("failed to generate self-signed certificate: %w", err)
			}
			tlsConfig = &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			}
			fmt.Println("Using self-signed runtime generated certificate for TLS")
		}

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			TLSConfig:         tlsConfig,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		// Graceful shutdown on SIGINT/SIGTERM.
		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner()
		fmt.Printf("Starting server on port %d (storage: %s)...\n", port, storageKind)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8443, "Port to listen on")
	serverCmd.Flags().StringVar(&dataDir, "data-dir", "./data", "Directory for persistent data (bbolt storage)")
	serverCmd.Flags().StringVar(&tlsCert, "tls-cert", "", "Path to TLS certificate file")
	serverCmd.Flags().StringVar(&tlsKey, "tls-key", "", "Path to TLS key file")
	serverCmd.Flags().StringVar(&storageKind, "storage", "bbolt", "Storage backend: bbolt, postgres, or memory")
	serverCmd.Flags().StringVar(&postgresDSN, "postgres-dsn", "", "Postgres connection string (postgres storage)")
}

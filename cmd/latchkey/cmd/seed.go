package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jcarver/latchkey/storage"
	bboltstorage "github.com/jcarver/latchkey/storage/bbolt"
	"github.com/jcarver/latchkey/storage/postgres"
)

// defaultQuestions is the stock security-question catalog.
var defaultQuestions = []string{
	"What was the name of your first pet?",
	"What is your mother's maiden name?",
	"What city were you born in?",
	"What was the name of your elementary school?",
	"What is your favorite movie?",
	"What was the make of your first car?",
	"What is the name of the street you grew up on?",
	"What was your childhood nickname?",
	"What is your favorite book?",
	"What was the name of your first boss?",
}

var (
	seedDataDir     string
	seedStorageKind string
	seedPostgresDSN string
)

var seedCmd = &cobra.Command{
	Use:   "seed-questions",
	Short: "Populate the security-question catalog with the default questions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var repo storage.Repository

		switch seedStorageKind {
		case "bbolt":
			if err := os.MkdirAll(seedDataDir, 0o700); err != nil {
				return fmt.Errorf("failed to create data directory: %w", err)
			}
			store, err := bboltstorage.NewRepositoryFromFile(filepath.Join(seedDataDir, "latchkey.db"), nil)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer store.Close()
			repo = store
		case "postgres":
			if seedPostgresDSN == "" {
				return errors.New("--postgres-dsn is required with --storage postgres")
			}
			store, err := postgres.NewRepositoryFromDSN(cmd.Context(), seedPostgresDSN)
			if err != nil {
				return fmt.Errorf("failed to open postgres storage: %w", err)
			}
			defer store.Close()
			repo = store
		default:
			return fmt.Errorf("unknown storage kind %q (want bbolt or postgres)", seedStorageKind)
		}

		created, err := seedQuestions(cmd.Context(), repo, defaultQuestions)
		if err != nil {
			return err
		}
		fmt.Printf("Successfully created %d new security questions\n", created)
		return nil
	},
}

// seedQuestions inserts each text that is not already in the catalog.
// Existing questions keep their IDs and active flags.
func seedQuestions(ctx context.Context, repo storage.Repository, texts []string) (int, error) {
	created := 0
	for _, text := range texts {
		_, err := repo.QuestionByText(ctx, text)
		if err == nil {
			fmt.Printf("Already exists: %s\n", text)
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return created, fmt.Errorf("checking question %q: %w", text, err)
		}

		q := storage.Question{
			ID:        uuid.NewString(),
			Text:      text,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.PutQuestion(ctx, &q); err != nil {
			return created, fmt.Errorf("creating question %q: %w", text, err)
		}
		fmt.Printf("Created: %s\n", text)
		created++
	}
	return created, nil
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().StringVar(&seedDataDir, "data-dir", "./data", "Directory for persistent data (bbolt storage)")
	seedCmd.Flags().StringVar(&seedStorageKind, "storage", "bbolt", "Storage backend: bbolt or postgres")
	seedCmd.Flags().StringVar(&seedPostgresDSN, "postgres-dsn", "", "Postgres connection string (postgres storage)")
}

package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"evidence-rag/internal/app"
	"evidence-rag/internal/config"
	"evidence-rag/internal/helper"
	"evidence-rag/internal/models"
)

const (
	configFilePath = "./configs/config.yaml"
	envFilePath    = ".env"
	dbPath         = "./db"
	evidenceDir    = "./evidence"
)

func main() {
	helper.SetupLogger("info", "console")

	if err := config.LoadEnv(envFilePath); err != nil {
		log.Fatal().Err(err).Msg("Error loading env file")
	}
	cfg, err := config.LoadConfig(configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	helper.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	cfg.Store.Path = dbPath
	cfg.Evidence.Dir = evidenceDir
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Error validating config")
	}

	ctx := context.Background()
	coldStart := !helper.FolderExists(dbPath)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening vector store")
	}
	defer a.Close()

	if coldStart {
		log.Info().Msg("Initializing vector store...")
		docs := a.LoadEvidence()
		if len(docs) == 0 {
			log.Error().Str("dir", evidenceDir).Msg("No evidence files found to ingest.")
			return
		}
		if _, err := a.RAG.Ingest(ctx, docs); err != nil {
			log.Fatal().Err(err).Msg("Error ingesting evidence")
		}
	} else {
		log.Info().Msg("Updating vector store...")
		if _, err := a.RAG.Ingest(ctx, a.LoadEvidence()); err != nil {
			log.Fatal().Err(err).Msg("Error ingesting evidence")
		}
	}

	question := models.DefaultQuestion
	fmt.Printf("QUESTION: %s\n", question)

	answer, ok := askDetective(ctx, a, question)
	if !ok {
		return
	}
	fmt.Printf("\nDETECTIVE'S REPORT:\n\n%s\n", answer)
}

func askDetective(ctx context.Context, a *app.App, question string) (string, bool) {
	fmt.Printf("\nScanning case files for: '%s'...\n", question)

	evidence, err := a.RAG.RetrieveContext(ctx, question, a.Config.RAG.TopK)
	if err != nil {
		log.Fatal().Err(err).Msg("Error retrieving evidence")
	}
	if evidence == "" {
		fmt.Println("No relevant evidence found.")
		return "", false
	}
	return a.RAG.Generate(ctx, evidence, question), true
}

// Command ingest runs one document through the pipeline synchronously.
// Useful for reprocessing and local debugging; the worker service handles
// steady-state load.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/receiptworks/reconciler/internal/app"
	"github.com/receiptworks/reconciler/internal/config"
	"github.com/receiptworks/reconciler/internal/logger"
)

func main() {
	log := logger.New()

	documentID := flag.String("document-id", "", "ID of an uploaded document (required)")
	cancelDoc := flag.Bool("cancel", false, "cancel the document instead of processing it")
	flag.Parse()

	if *documentID == "" {
		log.Fatal().Msg("Error: --document-id is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wire dependencies")
	}
	defer a.Close()

	if *cancelDoc {
		if err := a.Orchestrator.Cancel(ctx, *documentID); err != nil {
			log.Fatal().Err(err).Msg("cancel failed")
		}
		fmt.Printf("Document %s cancelled.\n", *documentID)
		return
	}

	log.Info().Str("document_id", *documentID).Msg("starting processing")
	if err := a.Orchestrator.Process(ctx, *documentID); err != nil {
		log.Fatal().Err(err).Msg("processing failed")
	}

	status, err := a.Store.GetStatus(ctx, *documentID)
	if err != nil {
		log.Fatal().Err(err).Msg("read final status")
	}
	fmt.Printf("Document %s finished in state %s.\n", *documentID, status.State)
}

// Command upload ingests a local document: it stores the bytes in the
// working bucket, registers the document, and leaves it in the uploaded state
// for a worker to pick up. Re-uploading identical bytes returns the existing
// document instead of creating a duplicate.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/receiptworks/reconciler/internal/app"
	"github.com/receiptworks/reconciler/internal/apperrors"
	"github.com/receiptworks/reconciler/internal/config"
	"github.com/receiptworks/reconciler/internal/domain"
	"github.com/receiptworks/reconciler/internal/logger"
)

func main() {
	log := logger.New()

	filePath := flag.String("file", "", "path to the document to upload (required)")
	contentType := flag.String("content-type", "", "MIME type (default: guessed from the extension)")
	flag.Parse()

	if *filePath == "" {
		log.Fatal().Msg("Usage: upload -file /path/to/document.pdf [-content-type application/pdf]")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("wire dependencies")
	}
	defer a.Close()

	data, err := os.ReadFile(*filePath)
	if err != nil {
		log.Fatal().Err(err).Msg("read file")
	}

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	if existing, err := a.Store.FindDocumentByChecksum(ctx, checksum); err == nil {
		fmt.Printf("Already ingested as document %s\n", existing.ID)
		return
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		log.Fatal().Err(err).Msg("checksum lookup")
	}

	ct := *contentType
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(*filePath))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}

	docID := uuid.New().String()
	uri, err := a.Objects.Put(ctx, "documents/"+docID+filepath.Ext(*filePath), data, ct)
	if err != nil {
		log.Fatal().Err(err).Msg("store document bytes")
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:          docID,
		Filename:    filepath.Base(*filePath),
		ContentType: ct,
		StorageURI:  uri,
		Checksum:    checksum,
		UploadedAt:  now,
	}
	if err := a.Store.SaveDocument(ctx, doc); err != nil {
		log.Fatal().Err(err).Msg("save document")
	}
	if err := a.Store.SaveStatus(ctx, &domain.DocumentStatus{
		DocumentID: docID,
		State:      domain.StateUploaded,
		UpdatedAt:  now,
	}); err != nil {
		log.Fatal().Err(err).Msg("save status")
	}

	fmt.Printf("Uploaded %s as document %s (%s)\n", *filePath, docID, uri)
}

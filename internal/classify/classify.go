// Package classify assigns a DocumentType to raw document content. The
// perceptual judgment is delegated to the inference capability; deterministic
// guards are applied to whatever comes back.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/receiptworks/reconciler/internal/apperrors"
	"github.com/receiptworks/reconciler/internal/domain"
	"github.com/receiptworks/reconciler/internal/inference"
	"github.com/receiptworks/reconciler/internal/logger"
)

const classifyPrompt = `Classify this financial document into exactly one of these types:
- receipt: a purchase receipt from a store or restaurant
- invoice: an invoice from a vendor requesting payment
- bill: a bill such as a utility or service bill
- bank_statement: a bank account statement listing transactions
- check: an image of a single check
- credit_card_statement: a credit card statement
- unknown: cannot determine

Return ONLY valid raw JSON, no markdown fences, in this exact shape:
{"type": "receipt", "confidence": 0.95}

"confidence" is your certainty in the classification, between 0 and 1.`

// Classifier wraps the inference call with the deterministic guards from the
// pipeline contract: closed type set, configured confidence floor.
type Classifier struct {
	infer inference.Client
	floor float64
}

// New builds a classifier. floor is the minimum acceptable confidence for a
// non-unknown classification.
func New(client inference.Client, floor float64) *Classifier {
	return &Classifier{infer: client, floor: floor}
}

// Classify returns the document's type and the model's confidence.
//
// Exhausted transient retries yield (unknown, 0, nil): unknown is a meaningful
// terminal classification, not an error. A permanent inference failure, a
// type outside the closed set, or a confidence below the floor all fail.
func (c *Classifier) Classify(ctx context.Context, content []byte, mimeType string) (domain.DocumentType, float64, error) {
	resp, err := c.infer.Infer(ctx, inference.Request{
		Task:     "classify_document",
		Prompt:   classifyPrompt,
		Document: content,
		MIMEType: mimeType,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInferenceTransient) {
			log := logger.FromContext(ctx)
			log.Warn().Err(err).Msg("Classification retries exhausted, falling back to unknown")
			return domain.TypeUnknown, 0, nil
		}
		return domain.TypeUnknown, 0, err
	}

	payload, err := inference.ParsePayload(resp.Text)
	if err != nil {
		return domain.TypeUnknown, 0, fmt.Errorf("%w: %v", apperrors.ErrInvalidClassification, err)
	}

	rawType, err := payload.String("type")
	if err != nil {
		return domain.TypeUnknown, 0, fmt.Errorf("%w: %v", apperrors.ErrInvalidClassification, err)
	}

	docType, ok := domain.ParseDocumentType(rawType)
	if !ok {
		return domain.TypeUnknown, 0, fmt.Errorf("%w: type %q is not in the document type set", apperrors.ErrInvalidClassification, rawType)
	}

	confidence := payload.Confidence("confidence")
	if docType != domain.TypeUnknown && confidence < c.floor {
		return domain.TypeUnknown, 0, fmt.Errorf("%w: confidence %.2f below floor %.2f", apperrors.ErrInvalidClassification, confidence, c.floor)
	}

	return docType, confidence, nil
}

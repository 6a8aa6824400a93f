package classify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptworks/reconciler/internal/apperrors"
	"github.com/receiptworks/reconciler/internal/domain"
	"github.com/receiptworks/reconciler/internal/inference"
)

// stubClient returns a canned response or error for every call.
type stubClient struct {
	text string
	err  error
}

func (s *stubClient) Infer(ctx context.Context, req inference.Request) (*inference.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &inference.Response{Text: s.text}, nil
}

func TestClassifyValidResult(t *testing.T) {
	c := New(&stubClient{text: `{"type": "receipt", "confidence": 0.92}`}, 0.5)

	docType, conf, err := c.Classify(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeReceipt, docType)
	assert.Equal(t, 0.92, conf)
}

func TestClassifyFencedOutput(t *testing.T) {
	c := New(&stubClient{text: "```json\n{\"type\": \"bank_statement\", \"confidence\": 0.8}\n```"}, 0.5)

	docType, _, err := c.Classify(context.Background(), []byte("pdf"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeBankStatement, docType)
}

func TestClassifyUnknownTypeRejected(t *testing.T) {
	c := New(&stubClient{text: `{"type": "tax_return", "confidence": 0.99}`}, 0.5)

	_, _, err := c.Classify(context.Background(), []byte("img"), "image/png")
	assert.ErrorIs(t, err, apperrors.ErrInvalidClassification)
}

func TestClassifyBelowFloorRejected(t *testing.T) {
	c := New(&stubClient{text: `{"type": "invoice", "confidence": 0.3}`}, 0.5)

	_, _, err := c.Classify(context.Background(), []byte("img"), "image/png")
	assert.ErrorIs(t, err, apperrors.ErrInvalidClassification)
}

func TestClassifyModelSaysUnknown(t *testing.T) {
	// unknown is valid even with confidence below the floor.
	c := New(&stubClient{text: `{"type": "unknown", "confidence": 0.1}`}, 0.5)

	docType, _, err := c.Classify(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeUnknown, docType)
}

func TestClassifyTransientExhaustionFallsBackToUnknown(t *testing.T) {
	c := New(&stubClient{err: fmt.Errorf("%w: backend unavailable", apperrors.ErrInferenceTransient)}, 0.5)

	docType, conf, err := c.Classify(context.Background(), []byte("img"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, domain.TypeUnknown, docType)
	assert.Zero(t, conf)
}

func TestClassifyPermanentFailureSurfaces(t *testing.T) {
	c := New(&stubClient{err: fmt.Errorf("%w: unsupported content", apperrors.ErrInferencePermanent)}, 0.5)

	_, _, err := c.Classify(context.Background(), []byte("img"), "image/png")
	assert.ErrorIs(t, err, apperrors.ErrInferencePermanent)
}

func TestClassifyGarbageOutputRejected(t *testing.T) {
	c := New(&stubClient{text: "definitely a receipt, trust me"}, 0.5)

	_, _, err := c.Classify(context.Background(), []byte("img"), "image/png")
	assert.ErrorIs(t, err, apperrors.ErrInvalidClassification)
}

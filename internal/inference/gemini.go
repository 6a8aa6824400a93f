package inference

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/receiptworks/reconciler/internal/apperrors"
	"github.com/receiptworks/reconciler/internal/logger"
)

// Options tunes the Gemini client. Zero values are replaced with defaults.
type Options struct {
	Model       string
	Timeout     time.Duration
	MaxRetries  int           // retry ceiling for transient failures
	BaseBackoff time.Duration // doubled per attempt
	MaxInflight int           // admission limit for concurrent calls
}

func (o *Options) fillDefaults() {
	if o.Model == "" {
		o.Model = "gemini-2.5-flash"
	}
	if o.Timeout <= 0 {
		o.Timeout = 90 * time.Second
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = time.Second
	}
	if o.MaxInflight <= 0 {
		o.MaxInflight = 4
	}
}

// Gemini is the production Client backed by Google's GenAI API.
type Gemini struct {
	client *genai.Client
	opts   Options
	sem    chan struct{}
}

// NewGemini creates the client. Credentials come from the environment the
// same way the rest of the Google Cloud stack picks them up.
func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	opts.fillDefaults()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("inference: create genai client: %w", err)
	}

	return &Gemini{
		client: client,
		opts:   opts,
		sem:    make(chan struct{}, opts.MaxInflight),
	}, nil
}

// Infer sends the document and prompt to the model. Transient failures are
// retried with bounded exponential backoff; after the ceiling the last
// transient error is returned. Permanent failures return immediately.
func (g *Gemini) Infer(ctx context.Context, req Request) (*Response, error) {
	select {
	case g.sem <- struct{}{}:
		defer func() { <-g.sem }()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: waiting for inference slot: %v", apperrors.ErrInferenceTransient, ctx.Err())
	}

	log := logger.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= g.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := g.opts.BaseBackoff << (attempt - 1)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", apperrors.ErrInferenceTransient, ctx.Err())
			}
			log.Warn().
				Str("task", req.Task).
				Int("attempt", attempt).
				Msg("Retrying inference call")
		}

		resp, err := g.generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if errors.Is(err, apperrors.ErrInferencePermanent) {
			return nil, err
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return nil, lastErr
}

func (g *Gemini) generate(ctx context.Context, req Request) (*Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	parts := []*genai.Part{{Text: req.Prompt}}
	if len(req.Document) > 0 {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{
				MIMEType: req.MIMEType,
				Data:     req.Document,
			},
		})
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	resp, err := g.client.Models.GenerateContent(callCtx, g.opts.Model, contents, nil)
	if err != nil {
		return nil, classifyCallError(req.Task, err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: task %s: empty response from model", apperrors.ErrInferenceTransient, req.Task)
	}

	return &Response{Text: text}, nil
}

// classifyCallError sorts a raw API error into the transient/permanent
// taxonomy. Anything we cannot positively identify as permanent is treated as
// retryable.
func classifyCallError(task string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: task %s: %v", apperrors.ErrInferenceTransient, task, err)
	}

	code := 0
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		code = gerr.Code
	}
	var aerr genai.APIError
	if errors.As(err, &aerr) {
		code = aerr.Code
	}

	switch {
	case code == 400, code == 403, code == 404, code == 413, code == 415:
		return fmt.Errorf("%w: task %s: %v", apperrors.ErrInferencePermanent, task, err)
	default:
		return fmt.Errorf("%w: task %s: %v", apperrors.ErrInferenceTransient, task, err)
	}
}

// Package inference wraps the external model capability behind a small
// interface. Every result is untrusted text; callers validate before anything
// enters the canonical data model.
package inference

import "context"

// Request describes one inference call: a task label for logging, the prompt,
// and the document bytes the model should look at.
type Request struct {
	Task     string
	Prompt   string
	Document []byte
	MIMEType string
}

// Response carries the model's raw text output. No parsing happens here.
type Response struct {
	Text string
}

// Client issues inference calls. Implementations are responsible for
// admission control, timeouts, and retrying transient failures up to the
// configured ceiling; callers see either a response or a terminal error
// wrapping apperrors.ErrInferenceTransient / ErrInferencePermanent.
type Client interface {
	Infer(ctx context.Context, req Request) (*Response, error)
}

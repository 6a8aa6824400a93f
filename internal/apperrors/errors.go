package apperrors

import "errors"

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrInvalidClassification indicates the classifier returned a type outside the
// known document-type set or a confidence below the configured floor.
var ErrInvalidClassification = errors.New("invalid classification")

// ErrExtractionValidation indicates extracted data failed deterministic
// validation (bad amount precision, unparseable or far-future date).
var ErrExtractionValidation = errors.New("extraction validation failed")

// ErrInferenceTransient indicates an inference call failed in a way that is
// safe to retry (timeout, rate limit, backend unavailable).
var ErrInferenceTransient = errors.New("transient inference failure")

// ErrInferencePermanent indicates an inference call failed in a way that will
// not succeed on retry (unsupported content, rejected request).
var ErrInferencePermanent = errors.New("permanent inference failure")

// ErrDuplicatePush indicates push was invoked on a document that has already
// been pushed. Callers treat this as a no-op and return the prior result.
var ErrDuplicatePush = errors.New("document already pushed")

// ErrCancelled indicates the document's processing was cancelled; stage
// results produced after cancellation are discarded.
var ErrCancelled = errors.New("document processing cancelled")

// ErrUnsupportedDocumentType indicates extraction was requested for a document
// type that has no extraction path (the unknown classification).
var ErrUnsupportedDocumentType = errors.New("unsupported document type")

package knowledge

import "errors"

var (
	// ErrDocumentNotFound indicates the requested document does not exist.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrDuplicateName indicates a document with the same display name
	// already exists.
	ErrDuplicateName = errors.New("document with this display name already exists")

	// ErrAlreadyProcessing indicates an ingestion run already owns the
	// document.
	ErrAlreadyProcessing = errors.New("document is already being processed")

	// ErrEmptyEmbedding indicates the embedding backend returned no vector.
	ErrEmptyEmbedding = errors.New("empty embedding response")

	// ErrExternalService indicates the embedding backend call itself failed.
	ErrExternalService = errors.New("external service error")
)

package types

import "fmt"

// DocumentStatus is the closed status set for Document records.
// A Document is created in processing and is mutated exactly once, by the
// ingestion stage, into one of the two terminal states.
type DocumentStatus string

const (
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentError      DocumentStatus = "error"
)

// documentTransitions is the complete forward graph; anything absent is illegal.
var documentTransitions = map[DocumentStatus][]DocumentStatus{
	DocumentProcessing: {DocumentReady, DocumentError},
	DocumentReady:      {},
	DocumentError:      {},
}

// Valid reports whether s is a member of the closed set.
func (s DocumentStatus) Valid() bool {
	_, ok := documentTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is allowed from s.
func (s DocumentStatus) IsTerminal() bool {
	next, ok := documentTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether s -> to is an allowed forward step.
func (s DocumentStatus) CanTransition(to DocumentStatus) bool {
	for _, n := range documentTransitions[s] {
		if n == to {
			return true
		}
	}
	return false
}

// ParseDocumentStatus validates a raw string against the closed set.
func ParseDocumentStatus(raw string) (DocumentStatus, error) {
	s := DocumentStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown document status: %q", raw)
	}
	return s, nil
}

// ArtifactStatus is the closed status set for Artifact records.
// The graph is generating -> executing -> {ready, failed}; failed is also
// reachable directly from generating. Status never moves backward.
type ArtifactStatus string

const (
	ArtifactGenerating ArtifactStatus = "generating"
	ArtifactExecuting  ArtifactStatus = "executing"
	ArtifactReady      ArtifactStatus = "ready"
	ArtifactFailed     ArtifactStatus = "failed"
)

var artifactTransitions = map[ArtifactStatus][]ArtifactStatus{
	ArtifactGenerating: {ArtifactExecuting, ArtifactFailed},
	ArtifactExecuting:  {ArtifactReady, ArtifactFailed},
	ArtifactReady:      {},
	ArtifactFailed:     {},
}

// Valid reports whether s is a member of the closed set.
func (s ArtifactStatus) Valid() bool {
	_, ok := artifactTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is allowed from s.
func (s ArtifactStatus) IsTerminal() bool {
	next, ok := artifactTransitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether s -> to is an allowed forward step.
func (s ArtifactStatus) CanTransition(to ArtifactStatus) bool {
	for _, n := range artifactTransitions[s] {
		if n == to {
			return true
		}
	}
	return false
}

// ParseArtifactStatus validates a raw string against the closed set.
func ParseArtifactStatus(raw string) (ArtifactStatus, error) {
	s := ArtifactStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown artifact status: %q", raw)
	}
	return s, nil
}

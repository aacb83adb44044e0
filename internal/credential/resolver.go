// Package credential resolves the API key used for a single upstream call.
package credential

import (
	"strings"

	"github.com/bull/rag-studio/internal/apperr"
)

// Header carries a per-request API key.
const Header = "X-OpenAI-API-Key"

// Resolver picks a request-scoped key over the process-wide default.
type Resolver struct {
	fallback string
}

// NewResolver creates a resolver with an optional process-wide default key.
func NewResolver(fallback string) *Resolver {
	return &Resolver{fallback: strings.TrimSpace(fallback)}
}

// Resolve returns requestKey when set, else the default, else a MissingCredential error.
func (r *Resolver) Resolve(requestKey string) (string, error) {
	if key := strings.TrimSpace(requestKey); key != "" {
		return key, nil
	}
	if r != nil && r.fallback != "" {
		return r.fallback, nil
	}
	return "", apperr.New(apperr.KindMissingCredential,
		"no OpenAI API key provided: send the %s header or set OPENAI_API_KEY", Header)
}

// HasDefault reports whether a process-wide key is configured.
func (r *Resolver) HasDefault() bool {
	return r != nil && r.fallback != ""
}

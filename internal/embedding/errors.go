package embedding

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"

	"github.com/bull/rag-studio/internal/apperr"
)

// invalidKeyMessage is shown whenever OpenAI rejects the key.
const invalidKeyMessage = "invalid OpenAI API key, check the key and try again"

// Classify maps an OpenAI SDK error onto the apperr taxonomy.
// Auth failures are recognised by status code first, then by message wording.
func Classify(err error, action string) error {
	if err == nil {
		return nil
	}
	if apperr.KindOf(err) != apperr.KindUnknown {
		return err
	}
	if isAuthError(err, false) {
		return apperr.Wrap(apperr.KindAuth, err, invalidKeyMessage)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.KindUpstream, err, "%s timed out or was cancelled", action)
	}
	return apperr.Wrap(apperr.KindUpstream, err, "%s failed: %s", action, upstreamMessage(err))
}

// isAuthError reports whether err looks like a rejected credential.
// Loose matching also accepts generic "invalid"/"incorrect" wording, used by key validation.
func isAuthError(err error, loose bool) bool {
	if status := statusCode(err); status == http.StatusUnauthorized || status == http.StatusForbidden {
		return true
	}

	msg := strings.ToLower(upstreamMessage(err))
	if strings.Contains(msg, "api key") || strings.Contains(msg, "authentication") {
		return true
	}
	return loose && (strings.Contains(msg, "invalid") || strings.Contains(msg, "incorrect"))
}

func statusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// upstreamMessage prefers the API's own message over the SDK's formatted error.
func upstreamMessage(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

package middleware

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/jokr/taaskly/internal/metrics"
)

type contextKey string

// xhubContextKey carries the signature verdict for the request.
const xhubContextKey contextKey = "xhub"

const signaturePrefix = "sha1="

// XHub verifies the x-hub-signature header: an HMAC-SHA1 of the raw
// request body keyed by the shared app secret. It only records the
// verdict in the request context; enforcement is downstream policy,
// so that every callback can still be recorded for audit. It must see
// the raw bytes: JSON re-serialization does not round-trip.
func XHub(appSecret string, logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "failed to read request body", http.StatusBadRequest)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body)) // Reset for handler

			valid := false
			header := r.Header.Get("x-hub-signature")
			switch {
			case header == "":
				metrics.SignatureFailures.WithLabelValues("missing").Inc()
				logger.Warn().Msg("missing x-hub-signature")
			case !strings.HasPrefix(header, signaturePrefix):
				metrics.SignatureFailures.WithLabelValues("mismatch").Inc()
				logger.Warn().Str("header", header).Msg("malformed x-hub-signature")
			default:
				mac := hmac.New(sha1.New, []byte(appSecret))
				mac.Write(body)
				computed := hex.EncodeToString(mac.Sum(nil))
				expected := strings.TrimPrefix(header, signaturePrefix)
				valid = hmac.Equal([]byte(computed), []byte(expected))
				if !valid {
					metrics.SignatureFailures.WithLabelValues("mismatch").Inc()
					logger.Warn().
						Str("expected", expected).
						Str("computed", computed).
						Msg("mismatch xhub")
				}
			}

			ctx := context.WithValue(r.Context(), xhubContextKey, valid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// XHubValid reports the signature verdict recorded by XHub.
func XHubValid(ctx context.Context) bool {
	valid, ok := ctx.Value(xhubContextKey).(bool)
	return ok && valid
}

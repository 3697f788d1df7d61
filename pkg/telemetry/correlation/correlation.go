// Package correlation carries the cross-service correlation ID used to tie
// price calculations to the order or quote that triggered them.
package correlation

import (
	"context"
	"net/http"
	"strings"

	"github.com/oklog/ulid/v2"
)

const (
	HeaderName = "X-Correlation-Id"
	// MaxLength bounds caller supplied IDs.
	MaxLength = 128
)

type ctxKey struct{}

// Normalize trims id and rejects values that are too long or contain
// characters unsafe for headers and logs.
func Normalize(id string) string {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxLength {
		return ""
	}
	for _, r := range id {
		if r <= ' ' || r > '~' {
			return ""
		}
	}
	return id
}

func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// ContextWithCorrelationID stores id on ctx. Invalid IDs leave ctx untouched.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id = Normalize(id); id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, id)
}

// EnsureCorrelationID returns ctx with a correlation ID, minting a ULID when none is set.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := ExtractCorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := ulid.Make().String()
	return context.WithValue(ctx, ctxKey{}, id), id
}

// FromRequest adopts the inbound header and echoes the effective ID on the response.
func FromRequest(ctx context.Context, in http.Header, out http.Header) (context.Context, string) {
	ctx = ContextWithCorrelationID(ctx, in.Get(HeaderName))
	ctx, id := EnsureCorrelationID(ctx)
	if out != nil {
		out.Set(HeaderName, id)
	}
	return ctx, id
}

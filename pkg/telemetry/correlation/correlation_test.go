package correlation

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureCorrelationIDGeneratesULID(t *testing.T) {
	ctx, cid := EnsureCorrelationID(context.Background())

	_, err := ulid.Parse(cid)
	require.NoError(t, err)
	assert.Equal(t, cid, ExtractCorrelationID(ctx))
}

func TestEnsureCorrelationIDKeepsExisting(t *testing.T) {
	ctx := ContextWithCorrelationID(context.Background(), "  order-123 ")

	_, cid := EnsureCorrelationID(ctx)
	assert.Equal(t, "order-123", cid)
}

func TestNormalizeRejectsUnsafeValues(t *testing.T) {
	assert.Equal(t, "", Normalize("quote 7"))
	assert.Equal(t, "", Normalize("quote\n7"))
	assert.Equal(t, "", Normalize(strings.Repeat("a", MaxLength+1)))
	assert.Equal(t, "quote-7", Normalize(" quote-7 "))
}

func TestFromRequestEchoesHeader(t *testing.T) {
	in := http.Header{}
	in.Set(HeaderName, "quote-7")
	out := http.Header{}

	ctx, id := FromRequest(context.Background(), in, out)
	assert.Equal(t, "quote-7", id)
	assert.Equal(t, "quote-7", ExtractCorrelationID(ctx))
	assert.Equal(t, "quote-7", out.Get(HeaderName))

	in.Set(HeaderName, "bad value")
	_, id = FromRequest(context.Background(), in, out)
	_, err := ulid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, out.Get(HeaderName))
}

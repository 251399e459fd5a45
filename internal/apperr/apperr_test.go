package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOfWrapped(t *testing.T) {
	base := Forbidden("space quota exceeded")
	wrapped := fmt.Errorf("commit: %w", base)

	assert.Equal(t, KindForbidden, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindForbidden))
	assert.False(t, IsKind(nil, KindForbidden))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestPublicHidesUpstreamCause(t *testing.T) {
	err := Upstream(errors.New("dial tcp 10.0.0.1:9000: refused"), "failed to store rendition")

	pub := Public(err)
	require.NotNil(t, pub)
	assert.Equal(t, KindInternal, pub.Kind)
	assert.NotContains(t, pub.Error(), "10.0.0.1")
	assert.Equal(t, 50000, pub.Kind.Code())
	assert.Equal(t, http.StatusInternalServerError, pub.Kind.HTTPStatus())
}

func TestPublicKeepsClientErrors(t *testing.T) {
	pub := Public(fmt.Errorf("wrap: %w", Conflict("space already exists")))
	assert.Equal(t, KindConflict, pub.Kind)
	assert.Equal(t, "space already exists", pub.Message)
	assert.Equal(t, 40900, pub.Kind.Code())
	assert.Equal(t, http.StatusConflict, pub.Kind.HTTPStatus())
}

func TestCodes(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidInput: 40000,
		KindForbidden:    40300,
		KindNotFound:     40400,
		KindConflict:     40900,
		KindInternal:     50000,
		KindUpstream:     50200,
	}
	for kind, code := range cases {
		assert.Equal(t, code, kind.Code(), kind.String())
	}
}

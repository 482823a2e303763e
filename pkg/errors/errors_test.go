package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:     http.StatusBadRequest,
		KindAuthentication: http.StatusUnauthorized,
		KindAuthorization:  http.StatusForbidden,
		KindNotFound:       http.StatusNotFound,
		KindConflict:       http.StatusConflict,
		KindInternal:       http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.Status(), kind.String())
	}
}

func TestKindOfUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", NotFound("菜单不存在"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))

	assert.Equal(t, KindInternal, KindOf(stderrors.New("boom")))
}

func TestSentinelComparison(t *testing.T) {
	err := fmt.Errorf("login: %w", ErrInvalidCredentials)
	assert.True(t, Is(err, ErrInvalidCredentials))
	assert.False(t, Is(err, ErrTokenInvalidOrExpired))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Internal("查询失败", cause)
	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection reset")
}

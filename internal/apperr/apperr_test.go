package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	wrapped := Wrap(KindValidationFailed, CodeInvalidAmount, `amount "x" is not an integer`, strconv.ErrSyntax)

	assert.ErrorIs(t, wrapped, ErrInvalidAmount)
	assert.ErrorIs(t, wrapped, strconv.ErrSyntax)
	assert.NotErrorIs(t, wrapped, ErrInvalidTarget)
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "domain", err: ErrNotHost, want: KindPermissionDenied},
		{name: "wrapped by fmt", err: fmt.Errorf("start: %w", ErrTooFewMembers), want: KindPreconditionFailed},
		{name: "foreign", err: errors.New("boom"), want: KindInternal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestKindHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, KindPermissionDenied.HTTPStatus())
	assert.Equal(t, http.StatusConflict, KindPreconditionFailed.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, KindValidationFailed.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindInternal.HTTPStatus())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeRoleUnavailable, CodeOf(fmt.Errorf("claim: %w", ErrRoleUnavailable)))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, Code(""), CodeOf(nil))
}

package apierror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"

	"github.com/stretchr/testify/assert"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domainerr.Validation("monto inválido"), http.StatusBadRequest, "validation"},
		{domainerr.Conflict("duplicado"), http.StatusConflict, "conflict"},
		{domainerr.NotFound("no existe"), http.StatusNotFound, "not_found"},
		{domainerr.Precondition("sin turno"), http.StatusPreconditionFailed, "precondition"},
		{domainerr.Ambiguous("claves"), http.StatusConflict, "ambiguous"},
		{domainerr.Unauthorized("token"), http.StatusUnauthorized, "unauthorized"},
		{domainerr.External(errors.New("502"), "winred"), http.StatusBadGateway, "external"},
	}
	for _, tc := range cases {
		status, body := FromError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, body.Code)
	}
}

func TestFromError_HidesInternalDetail(t *testing.T) {
	status, body := FromError(domainerr.Internal(errors.New("pq: relation missing"), "listar ventas"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, body.Detail, "pq")

	status, body = FromError(errors.New("raw"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal", body.Code)
}

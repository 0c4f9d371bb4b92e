package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOK(t *testing.T) {
	rec := httptest.NewRecorder()
	OK(rec, map[string]int{"count": 2})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"count":2}`, rec.Body.String())
}

func TestErrorHelpers(t *testing.T) {
	for _, tc := range []struct {
		write  func(http.ResponseWriter, string)
		status int
		code   string
	}{
		{BadRequest, http.StatusBadRequest, "BAD_REQUEST"},
		{NotFound, http.StatusNotFound, "NOT_FOUND"},
		{InternalError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	} {
		rec := httptest.NewRecorder()
		tc.write(rec, "nope")

		require.Equal(t, tc.status, rec.Code)
		require.JSONEq(t, `{"error":{"code":"`+tc.code+`","message":"nope"}}`, rec.Body.String())
	}
}

package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/classgate/core"
)

func TestAppHTTPErrorHandler(t *testing.T) {
	translator := core.NewTranslator()

	tests := []struct {
		name         string
		err          error
		debug        bool
		wantCode     int
		wantBody     string
		wantLogged   bool
		wantShutdown bool
	}{
		{name: "http error", err: errHttpForbidden, wantCode: http.StatusForbidden, wantBody: `{"error":"permission denied"}`},
		{name: "wrapped http error", err: errors.Wrap(errHttpNotFound, "finding"), wantCode: http.StatusNotFound, wantBody: `{"error":"not found"}`},
		{name: "internal http error", err: echo.NewHTTPError(http.StatusBadRequest).WithInternal(errAccountDeactivated), wantCode: http.StatusForbidden, wantBody: `{"error":"account deactivated"}`},
		{
			name:     "validation error with fields",
			err:      core.NewValidationError(nil, core.FieldError{Field: "email", Error: "lol"}),
			wantCode: http.StatusBadRequest, wantBody: `{"email":"lol"}`,
		},
		{name: "validation error", err: core.NewValidationError(errors.New("lol")), wantCode: http.StatusBadRequest, wantBody: `{"error":"lol"}`},
		{name: "server error", err: errors.New("boom"), wantCode: http.StatusInternalServerError, wantBody: `{"error":"Internal Server Error"}`, wantLogged: true},
		{name: "server error (debug)", err: errors.New("boom"), debug: true, wantCode: http.StatusInternalServerError, wantBody: `{"error":"boom"}`, wantLogged: true},
		{
			name: "shutdown", err: errors.Wrap(core.NewShutdownError("integrity"), "lol"),
			wantCode: http.StatusInternalServerError, wantBody: `{"error":"Internal Server Error"}`, wantLogged: true, wantShutdown: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := new(testLogger)
			var shutdown bool
			handler := newAppHTTPErrorHandler(logger, translator, func() { shutdown = true })

			e := echo.New()
			e.Debug = tt.debug
			rec := httptest.NewRecorder()
			ctx := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
			handler(tt.err, ctx)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, tt.wantLogged, len(logger.errors) > 0)
			assert.Equal(t, tt.wantShutdown, shutdown)
		})
	}
}

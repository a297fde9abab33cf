package validate

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginBody struct {
	Password string `json:"password" validate:"required"`
	Name     string `json:"name,omitempty" validate:"max=3"`
	Secret   string `json:"-" validate:"max=1"`
}

func TestValidateUsesJSONNames(t *testing.T) {
	err := New().Validate(loginBody{Name: "toolong"})
	require.Error(t, err)

	assert.Equal(t, map[string]string{
		"password": "required",
		"name":     "max=3",
	}, Details(err))
}

func TestValidateOK(t *testing.T) {
	assert.NoError(t, New().Validate(loginBody{Password: "x", Name: "abc"}))
}

func TestDetailsIgnoresOtherErrors(t *testing.T) {
	assert.Nil(t, Details(errors.New("boom")))
	assert.Nil(t, Details(nil))
}

func bindContext(body string) echo.Context {
	e := echo.New()
	e.Validator = New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestBind(t *testing.T) {
	var ok loginBody
	require.NoError(t, Bind(bindContext(`{"password":"x"}`), &ok))
	assert.Equal(t, "x", ok.Password)

	var he *echo.HTTPError
	err := Bind(bindContext(`{"password":`), &loginBody{})
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	assert.Equal(t, "Invalid request body", he.Message)

	err = Bind(bindContext(`{"name":"toolong"}`), &loginBody{})
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusBadRequest, he.Code)
	assert.Equal(t, map[string]any{
		"error":   "Validation failed",
		"details": map[string]string{"password": "required", "name": "max=3"},
	}, he.Message)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func roleContext(role interface{}) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if role != nil {
		c.Set("role", role)
	}
	return c, rec
}

func TestRequireRoleAllowsListedRole(t *testing.T) {
	called := false
	next := func(c echo.Context) error { called = true; return c.NoContent(http.StatusOK) }
	c, rec := roleContext("STAFF")

	err := RequireRole("STAFF", "GUEST")(next)(c)
	assert.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRoleRejectsOtherRole(t *testing.T) {
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	c, rec := roleContext("GUEST")

	err := RequireRole("STAFF")(next)(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleRejectsMissingRole(t *testing.T) {
	next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	c, rec := roleContext(nil)

	err := RequireRole("STAFF")(next)(c)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

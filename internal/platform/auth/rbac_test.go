package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func requestWithRoles(roles []string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, roles)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestRequireRole_Allows(t *testing.T) {
	called := false
	h := RequireRole("coordinator")(func(c echo.Context) error {
		called = true
		return nil
	})
	if err := h(requestWithRoles([]string{"coordinator"})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}

func TestRequireRole_AdminAlwaysPasses(t *testing.T) {
	h := RequireRole("coordinator")(func(c echo.Context) error { return nil })
	if err := h(requestWithRoles([]string{"admin"})); err != nil {
		t.Errorf("admin should pass: %v", err)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	h := RequireRole("admin")(func(c echo.Context) error { return nil })
	err := h(requestWithRoles([]string{"viewer"}))
	if err == nil {
		t.Fatal("expected error")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %v", err)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	h := RequireRole("admin")(func(c echo.Context) error { return nil })
	if err := h(requestWithRoles(nil)); err == nil {
		t.Error("expected error for request without roles")
	}
}

func TestDevAuthMiddleware_SetsAdmin(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var roles []string
	h := DevAuthMiddleware()(func(c echo.Context) error {
		roles = RolesFromContext(c.Request().Context())
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("expected admin role, got %v", roles)
	}
}

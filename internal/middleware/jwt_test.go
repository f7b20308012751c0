package middleware

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/dmarquez/venue-pos/internal/model"
    "github.com/dmarquez/venue-pos/internal/utils"
)

func TestJWTAuthRoundTrip(t *testing.T) {
    const secret = "test-secret"
    token, err := utils.NewAccessToken(secret, "emp-1", "Alice", model.RoleCashier, 15)
    require.NoError(t, err)

    e := echo.New()
    var seen model.Actor
    handler := JWTAuth(secret)(func(c echo.Context) error {
        seen = CurrentActor(c)
        return c.NoContent(http.StatusOK)
    })

    req := httptest.NewRequest(http.MethodGet, "/v1/registers/caja-1/lock", nil)
    req.Header.Set("Authorization", "Bearer "+token.Token)
    rec := httptest.NewRecorder()
    require.NoError(t, handler(e.NewContext(req, rec)))

    assert.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, "emp-1", seen.ID)
    assert.Equal(t, "Alice", seen.Name)
    assert.Equal(t, model.RoleCashier, seen.Role)
    assert.False(t, seen.IsAdmin())
}

func TestJWTAuthRejectsBadTokens(t *testing.T) {
    e := echo.New()
    handler := JWTAuth("test-secret")(func(c echo.Context) error {
        return c.NoContent(http.StatusOK)
    })

    cases := []struct {
        name   string
        header string
    }{
        {"no header", ""},
        {"not bearer", "Basic abc"},
        {"garbage token", "Bearer not.a.jwt"},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            req := httptest.NewRequest(http.MethodGet, "/", nil)
            if tc.header != "" {
                req.Header.Set("Authorization", tc.header)
            }
            rec := httptest.NewRecorder()
            require.NoError(t, handler(e.NewContext(req, rec)))
            assert.Equal(t, http.StatusUnauthorized, rec.Code)
        })
    }

    // Token signed with a different secret.
    token, err := utils.NewAccessToken("other-secret", "emp-1", "Alice", model.RoleCashier, 15)
    require.NoError(t, err)
    req := httptest.NewRequest(http.MethodGet, "/", nil)
    req.Header.Set("Authorization", "Bearer "+token.Token)
    rec := httptest.NewRecorder()
    require.NoError(t, handler(e.NewContext(req, rec)))
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRole(t *testing.T) {
    e := echo.New()
    next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
    guard := RequireRole(model.RoleAdmin)

    run := func(actor *model.Actor) *httptest.ResponseRecorder {
        req := httptest.NewRequest(http.MethodGet, "/", nil)
        rec := httptest.NewRecorder()
        c := e.NewContext(req, rec)
        if actor != nil {
            c.Set(actorKey, *actor)
        }
        require.NoError(t, guard(next)(c))
        return rec
    }

    assert.Equal(t, http.StatusForbidden, run(nil).Code)
    assert.Equal(t, http.StatusForbidden, run(&model.Actor{ID: "e1", Role: model.RoleCashier}).Code)
    assert.Equal(t, http.StatusOK, run(&model.Actor{ID: "e9", Role: model.RoleAdmin}).Code)
}

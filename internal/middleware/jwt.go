package middleware // middleware provides shared request processing for handlers

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"

    "github.com/dmarquez/venue-pos/internal/model"
)

// actorKey is the context key the auth middlewares store the acting identity
// under. Handlers read it back with CurrentActor.
const actorKey = "actor"

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the acting employee (id, name, role and client IP) in the request
// context. The provided secret must match the one used when issuing tokens.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
                if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
                    return nil, echo.ErrUnauthorized
                }
                return []byte(secret), nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            claims, ok := tok.Claims.(jwt.MapClaims)
            if !ok {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }

            sub, _ := claims["sub"].(string)
            name, _ := claims["name"].(string)
            role, _ := claims["role"].(string)
            if sub == "" || role == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
            }

            c.Set(actorKey, model.Actor{ID: sub, Name: name, Role: role, IP: c.RealIP()})
            return next(c)
        }
    }
}

// CurrentActor returns the acting identity stored by JWTAuth. The zero Actor
// comes back on unauthenticated routes.
func CurrentActor(c echo.Context) model.Actor {
    if a, ok := c.Get(actorKey).(model.Actor); ok {
        return a
    }
    return model.Actor{}
}

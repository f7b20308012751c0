package handler

import (
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/dmarquez/venue-pos/internal/config"
    "github.com/dmarquez/venue-pos/internal/repository"
    "github.com/dmarquez/venue-pos/internal/utils"
)

// AuthHandler issues access tokens to employees who present a valid PIN.
type AuthHandler struct {
    Employees *repository.EmployeeRepo
    Cfg       config.Config
}

// NewAuthHandler returns an AuthHandler.
func NewAuthHandler(employees *repository.EmployeeRepo, cfg config.Config) *AuthHandler {
    return &AuthHandler{Employees: employees, Cfg: cfg}
}

// Login handles POST /v1/auth/login. The response token carries the
// employee's id, name and role; cashier tablets cache it until expiry.
// A wrong PIN and an unknown employee are indistinguishable on the wire.
func (h *AuthHandler) Login(c echo.Context) error {
    var body struct {
        EmployeeID string `json:"employee_id"`
        PIN        string `json:"pin"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    body.EmployeeID = strings.TrimSpace(body.EmployeeID)
    if body.EmployeeID == "" || body.PIN == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "employee_id and pin are required"})
    }

    emp, err := h.Employees.GetByID(c.Request().Context(), body.EmployeeID)
    if err != nil {
        if errors.Is(err, repository.ErrNotFound) {
            return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
        }
        return fail(c, err)
    }
    if !utils.VerifyPIN(emp.PINHash, body.PIN) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }

    token, err := utils.NewAccessToken(h.Cfg.JWTSecret, emp.ID, emp.Name, emp.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "token":      token.Token,
        "expires_at": token.Exp,
        "employee": echo.Map{
            "id":   emp.ID,
            "name": emp.Name,
            "role": emp.Role,
        },
    })
}

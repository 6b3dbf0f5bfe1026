package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-marker-api/internal/middleware"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func jwtApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.JWTProtected(testSecret))
	app.Get("/", func(c *fiber.Ctx) error {
		user, _ := c.Locals(middleware.LocalUserID).(string)
		role, _ := c.Locals(middleware.LocalUserRole).(string)
		return c.SendString(user + "|" + role)
	})
	return app
}

func doWithAuth(t *testing.T, app *fiber.App, header string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, string(body)
}

func TestJWTProtectedAcceptsStringSubject(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "student-42", "role": "Student", "exp": time.Now().Add(time.Hour).Unix()}, testSecret)

	resp, body := doWithAuth(t, jwtApp(), "Bearer "+token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "student-42|student", body)
}

func TestJWTProtectedAcceptsNumericUserID(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"user_id": 7, "roles": []string{"teacher"}}, testSecret)

	resp, body := doWithAuth(t, jwtApp(), "bearer "+token)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "7|teacher", body)
}

func TestJWTProtectedRejects(t *testing.T) {
	app := jwtApp()

	resp, _ := doWithAuth(t, app, "")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = doWithAuth(t, app, "Token abc")
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	wrongKey := signToken(t, jwt.MapClaims{"sub": "u"}, "other")
	resp, _ = doWithAuth(t, app, "Bearer "+wrongKey)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	expired := signToken(t, jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Minute).Unix()}, testSecret)
	resp, _ = doWithAuth(t, app, "Bearer "+expired)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	noSubject := signToken(t, jwt.MapClaims{"role": "student"}, testSecret)
	resp, _ = doWithAuth(t, app, "Bearer "+noSubject)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

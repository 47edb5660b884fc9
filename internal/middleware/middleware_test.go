package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine(auth *AuthMiddleware) *gin.Engine {
	engine := gin.New()
	engine.Use(RequestID(), Recovery())
	protected := engine.Group("/api", auth.RequireAuth())
	protected.GET("/me", func(c *gin.Context) {
		name, _ := GetUsername(c)
		c.JSON(http.StatusOK, gin.H{"username": name})
	})
	protected.GET("/admin", auth.RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	engine.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})
	return engine
}

func perform(engine *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *apperrors.ErrorResponse {
	var resp apperrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return &resp
}

func TestRequireAuth_Disabled(t *testing.T) {
	engine := newTestEngine(NewAuthMiddleware(nil))

	w := perform(engine, "/api/me", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(engine, "/api/admin", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireAuth_Tokens(t *testing.T) {
	manager := utils.NewJWTManager("secret", time.Hour)
	engine := newTestEngine(NewAuthMiddleware(manager))

	// 缺少令牌
	w := perform(engine, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, apperrors.ErrAuthentication, resp.Error.Code)
	assert.NotEmpty(t, resp.RequestID)

	// 无效令牌
	w = perform(engine, "/api/me", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperrors.ErrTokenInvalid, decodeError(t, w).Error.Code)

	// 过期令牌
	expired, _, err := utils.NewJWTManager("secret", -time.Minute).GenerateToken("tech", "admin")
	require.NoError(t, err)
	w = perform(engine, "/api/me", map[string]string{"X-Access-Token": expired})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, apperrors.ErrTokenExpired, decodeError(t, w).Error.Code)

	token, _, err := manager.GenerateToken("tech", "operator")
	require.NoError(t, err)
	w = perform(engine, "/api/me", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"username":"tech"}`, w.Body.String())

	w = perform(engine, "/api/me?token="+token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 角色不足
	w = perform(engine, "/api/admin", map[string]string{"Authorization": "Bearer " + token})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperrors.ErrAuthorization, decodeError(t, w).Error.Code)
}

func TestRequestID_Propagates(t *testing.T) {
	engine := newTestEngine(NewAuthMiddleware(nil))

	w := perform(engine, "/api/me", map[string]string{HeaderRequestID: "req-42"})
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))

	w = perform(engine, "/api/me", nil)
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
}

func TestRecovery(t *testing.T) {
	engine := newTestEngine(NewAuthMiddleware(nil))

	w := perform(engine, "/panic", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, apperrors.ErrUnknown, decodeError(t, w).Error.Code)
}

package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/utils"
)

// 上下文键
const (
	ContextUsername = "username"
	ContextRole     = "role"
	ContextToken    = "token"
)

// TokenValidator 令牌校验
type TokenValidator interface {
	ValidateToken(token string) (*utils.OperatorClaims, error)
}

// AuthMiddleware JWT认证中间件
type AuthMiddleware struct {
	validator TokenValidator
}

// NewAuthMiddleware 创建认证中间件，validator 为空时不做鉴权
func NewAuthMiddleware(validator TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
	}
}

// Enabled 是否启用鉴权
func (m *AuthMiddleware) Enabled() bool {
	return m.validator != nil
}

// RequireAuth 需要认证的中间件
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() {
			c.Next()
			return
		}

		token := m.extractToken(c)
		if token == "" {
			abort(c, apperrors.New(apperrors.ErrAuthentication, "缺少认证令牌"))
			return
		}

		claims, err := m.validator.ValidateToken(token)
		if err != nil {
			code := apperrors.ErrTokenInvalid
			if errors.Is(err, utils.ErrExpiredToken) {
				code = apperrors.ErrTokenExpired
			}
			abort(c, apperrors.Wrap(err, code))
			return
		}

		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)
		c.Set(ContextToken, token)
		c.Next()
	}
}

// RequireRole 需要特定角色的中间件，需放在 RequireAuth 之后
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.Enabled() || HasAnyRole(c, roles...) {
			c.Next()
			return
		}
		abort(c, apperrors.New(apperrors.ErrAuthorization, "权限不足"))
	}
}

// extractToken 从请求中提取令牌
func (m *AuthMiddleware) extractToken(c *gin.Context) string {
	// Authorization: Bearer <token>
	bearerToken := c.GetHeader("Authorization")
	if bearerToken != "" {
		parts := strings.Split(bearerToken, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	if token := c.GetHeader("X-Access-Token"); token != "" {
		return token
	}

	// 浏览器的 WebSocket 无法设置请求头，事件流允许 query 参数
	if token := c.Query("token"); token != "" {
		return token
	}

	return ""
}

// abort 输出统一错误响应并中止
func abort(c *gin.Context, err *apperrors.AppError) {
	err.Stack = nil
	c.AbortWithStatusJSON(err.HTTPStatus(), apperrors.NewErrorResponse(err, GetRequestID(c)))
}

// GetUsername 从上下文获取用户名
func GetUsername(c *gin.Context) (string, bool) {
	if username, exists := c.Get(ContextUsername); exists {
		if name, ok := username.(string); ok {
			return name, true
		}
	}
	return "", false
}

// GetUserRole 从上下文获取角色
func GetUserRole(c *gin.Context) (string, bool) {
	if role, exists := c.Get(ContextRole); exists {
		if r, ok := role.(string); ok {
			return r, true
		}
	}
	return "", false
}

// HasAnyRole 检查是否有任一角色
func HasAnyRole(c *gin.Context, roles ...string) bool {
	if userRole, exists := GetUserRole(c); exists {
		for _, role := range roles {
			if userRole == role {
				return true
			}
		}
	}
	return false
}

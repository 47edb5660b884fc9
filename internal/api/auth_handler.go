package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/egm-aft/internal/config"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/logger"
	"github.com/wfunc/egm-aft/internal/utils"
	"go.uber.org/zap"
)

// operatorRole 维护人员角色
const operatorRole = "operator"

// AuthHandler 维护人员登录
type AuthHandler struct {
	operator config.OperatorConfig
	jwt      *utils.JWTManager
}

// NewAuthHandler 创建认证处理器，jwt 为空表示未启用鉴权
func NewAuthHandler(operator config.OperatorConfig, jwt *utils.JWTManager) *AuthHandler {
	return &AuthHandler{
		operator: operator,
		jwt:      jwt,
	}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 登录结果
type LoginResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login 维护人员登录
// @Summary 维护人员登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "登录信息"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	if h.jwt == nil {
		respondError(c, newError(apperrors.ErrNotImplemented, "未配置 security.jwt.secret"))
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidParam(err))
		return
	}

	log := logger.WithModule("api")
	if h.operator.PasswordHash == "" || req.Username != h.operator.Username {
		log.Warn("维护人员登录失败", zap.String("username", req.Username), zap.String("client_ip", c.ClientIP()))
		respondError(c, newError(apperrors.ErrAuthentication, "用户名或密码错误"))
		return
	}

	valid, err := utils.VerifyPassword(req.Password, h.operator.PasswordHash)
	if err != nil {
		log.Error("维护人员密码哈希无效", zap.Error(err))
		respondError(c, apperrors.Wrap(err, apperrors.ErrConfigValidate, "security.operator.password_hash"))
		return
	}
	if !valid {
		log.Warn("维护人员登录失败", zap.String("username", req.Username), zap.String("client_ip", c.ClientIP()))
		respondError(c, newError(apperrors.ErrAuthentication, "用户名或密码错误"))
		return
	}

	token, expiresAt, err := h.jwt.GenerateToken(req.Username, operatorRole)
	if err != nil {
		respondError(c, apperrors.Wrap(err, apperrors.ErrEncryption))
		return
	}

	log.Info("维护人员登录", zap.String("username", req.Username))
	respondOK(c, LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresAt: expiresAt,
	})
}

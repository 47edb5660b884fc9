package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	apperrors "github.com/wfunc/egm-aft/internal/errors"
	"github.com/wfunc/egm-aft/internal/middleware"
)

// Response 成功响应
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// PageResponse 分页响应
type PageResponse struct {
	Items    interface{} `json:"items"`
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// respondError 非应用错误按内部错误处理
func respondError(c *gin.Context, err error) {
	appErr := apperrors.Wrap(err, apperrors.ErrUnknown)
	// 调用栈只写日志，不返回给客户端
	resp := *appErr
	resp.Stack = nil
	c.JSON(appErr.HTTPStatus(), apperrors.NewErrorResponse(&resp, middleware.GetRequestID(c)))
}

func newError(code apperrors.ErrorCode, details string) *apperrors.AppError {
	return apperrors.New(code, details)
}

func invalidParam(err error) *apperrors.AppError {
	return apperrors.Wrap(err, apperrors.ErrInvalidParam)
}

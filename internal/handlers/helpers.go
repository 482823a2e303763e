package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"rbacadmin/internal/middleware"
	"rbacadmin/internal/services"
	"rbacadmin/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// parseID 解析路径中的数字ID，失败时直接返回400
func parseID(c *gin.Context, key string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(key), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "无效的ID")
		return 0, false
	}
	return uint(id), true
}

// bindJSON 绑定请求体，失败时直接返回400
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, bindErrorMessage(err))
		return false
	}
	return true
}

func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "参数错误"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			fields = append(fields, fmt.Sprintf("%s不能为空", fe.Field()))
		case "email":
			fields = append(fields, fmt.Sprintf("%s格式错误", fe.Field()))
		case "min", "max":
			fields = append(fields, fmt.Sprintf("%s长度不符合要求(%s=%s)", fe.Field(), fe.Tag(), fe.Param()))
		default:
			fields = append(fields, fmt.Sprintf("%s校验失败(%s)", fe.Field(), fe.Tag()))
		}
	}
	return "参数错误: " + strings.Join(fields, "; ")
}

// currentIdentity 当前登录身份，RequireLogin之后一定存在
func currentIdentity(c *gin.Context) (*services.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Unauthorized(c, "请先登录")
		return nil, false
	}
	return identity, true
}

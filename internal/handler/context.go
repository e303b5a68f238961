package handler

import "github.com/gin-gonic/gin"

// currentUserID 取认证中间件写入的用户 ID，未认证路由上返回 0
func currentUserID(c *gin.Context) int64 {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}

package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"rbacadmin/internal/audit"
	"rbacadmin/internal/models"

	"github.com/gin-gonic/gin"
)

const maxAuditBodyBytes = 64 << 10

// AuditTrail 处理完成后记录一条审计事件，不阻塞响应
func AuditTrail(recorder audit.Recorder, action models.AuditAction, resource models.AuditResource) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := snapshotBody(c)

		c.Next()

		event := audit.Event{
			Username:   audit.UsernameAnonymous,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID(c, body),
			IPAddress:  c.ClientIP(),
			UserAgent:  c.Request.UserAgent(),
			OccurredAt: time.Now().UTC(),
		}
		if identity, ok := CurrentIdentity(c); ok {
			userID := identity.UserID
			event.UserID = &userID
			event.Username = identity.Username
		}

		client := audit.ParseClient(event.UserAgent, c.GetHeader(HeaderComputerName))
		params := map[string]interface{}{}
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}
		query := map[string]interface{}{}
		for k, v := range c.Request.URL.Query() {
			if k == "token" {
				continue
			}
			if len(v) == 1 {
				query[k] = v[0]
			} else {
				query[k] = v
			}
		}

		details := map[string]interface{}{
			"method":       c.Request.Method,
			"path":         c.Request.URL.Path,
			"params":       params,
			"query":        query,
			"statusCode":   c.Writer.Status(),
			"computerName": client.ComputerName,
			"browser":      client.Browser,
			"os":           client.OS,
			"timestamp":    event.OccurredAt.Format(time.RFC3339),
		}
		if body != nil {
			details["body"] = body
		}
		if id := c.GetString(ContextRequestID); id != "" {
			details["requestId"] = id
		}
		event.Details = details

		recorder.Record(event)
	}
}

// snapshotBody 读取JSON请求体用于审计，并放回供后续处理器读取
func snapshotBody(c *gin.Context) map[string]interface{} {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAuditBodyBytes+1))
	rest := c.Request.Body
	c.Request.Body = io.NopCloser(io.MultiReader(bytes.NewReader(raw), rest))
	if err != nil || len(raw) == 0 || len(raw) > maxAuditBodyBytes {
		return nil
	}

	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body
}

// resourceID 依次取路径参数id、userId和请求体中的id
func resourceID(c *gin.Context, body map[string]interface{}) *string {
	for _, key := range []string{"id", "userId"} {
		if v := c.Param(key); v != "" {
			return &v
		}
	}
	if body == nil {
		return nil
	}
	var id string
	switch v := body["id"].(type) {
	case string:
		id = v
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return nil
	}
	if id == "" {
		return nil
	}
	return &id
}

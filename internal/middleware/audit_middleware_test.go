package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"rbacadmin/internal/audit"
	"rbacadmin/internal/models"
	"rbacadmin/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captured) Record(e audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuditTrailRecordsAfterHandlerAndKeepsBody(t *testing.T) {
	rec := &captured{}
	r := gin.New()
	r.Use(RequestID())
	r.PUT("/users/:id", func(c *gin.Context) {
		c.Set(ContextIdentity, &services.Identity{UserID: 7, Username: "alice"})
	}, AuditTrail(rec, models.AuditUpdate, models.ResourceUser), func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"fullName":"Alice","password":"hunter22"}`, string(raw))
		c.Status(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPut, "/users/42?verbose=1&token=abc", bytes.NewBufferString(`{"fullName":"Alice","password":"hunter22"}`))
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) Safari/605.1.15")
	req.Header.Set(HeaderComputerName, "MAC-01")
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Len(t, rec.events, 1)
	e := rec.events[0]
	assert.Equal(t, models.AuditUpdate, e.Action)
	assert.Equal(t, "alice", e.Username)
	assert.Equal(t, uint(7), *e.UserID)
	assert.Equal(t, "42", *e.ResourceID)
	assert.Equal(t, "203.0.113.9", e.IPAddress)
	assert.Equal(t, http.StatusAccepted, e.Details["statusCode"])
	assert.Equal(t, "MAC-01", e.Details["computerName"])
	assert.Equal(t, "Safari", e.Details["browser"])
	assert.NotEmpty(t, e.Details["requestId"])
	assert.Equal(t, map[string]interface{}{"verbose": "1"}, e.Details["query"])

	// 脱敏在持久化时进行
	entry, err := e.ToEntry()
	require.NoError(t, err)
	assert.NotContains(t, string(entry.Details), "hunter22")
}

func TestAuditTrailDefaultsForAnonymousRequests(t *testing.T) {
	rec := &captured{}
	r := gin.New()
	r.POST("/things", AuditTrail(rec, models.AuditCreate, models.ResourceMenu), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/things", bytes.NewBufferString(`{"id":15,"name":"x"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Len(t, rec.events, 1)
	e := rec.events[0]
	assert.Equal(t, audit.UsernameAnonymous, e.Username)
	assert.Nil(t, e.UserID)
	require.NotNil(t, e.ResourceID)
	assert.Equal(t, "15", *e.ResourceID)
}

func TestResourceIDPrefersPathParams(t *testing.T) {
	rec := &captured{}
	r := gin.New()
	r.DELETE("/groups/:gid/members/:userId", AuditTrail(rec, models.AuditRemoveUserFromGroup, models.ResourceGroup), func(c *gin.Context) {})

	req := httptest.NewRequest(http.MethodDelete, "/groups/3/members/9", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.Len(t, rec.events, 1)
	assert.Equal(t, "9", *rec.events[0].ResourceID)
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		query   string
		upgrade bool
		token   string
		ok      bool
	}{
		{"bearer", "Bearer abc", "", false, "abc", true},
		{"wrong scheme", "Basic abc", "", false, "", false},
		{"empty bearer", "Bearer ", "", false, "", false},
		{"missing", "", "", false, "", false},
		{"query without upgrade", "", "abc", false, "", false},
		{"query on websocket upgrade", "", "abc", true, "abc", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			target := "/stream"
			if tc.query != "" {
				target += "?token=" + tc.query
			}
			c.Request = httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				c.Request.Header.Set("Authorization", tc.header)
			}
			if tc.upgrade {
				c.Request.Header.Set("Connection", "Upgrade")
				c.Request.Header.Set("Upgrade", "websocket")
			}
			token, ok := bearerToken(c)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.token, token)
		})
	}
}

func TestNotFoundUsesEnvelope(t *testing.T) {
	r := gin.New()
	r.NoRoute(NotFound())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"接口不存在"}`, w.Body.String())
}

func TestErrorHandlerRecoversPanics(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/boom", func(c *gin.Context) { panic("boom") })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"服务器内部错误"}`, w.Body.String())
}

package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"

	"rbacadmin/internal/audit"
	"rbacadmin/internal/database"
	"rbacadmin/internal/models"
	"rbacadmin/internal/router"
	"rbacadmin/internal/services"
	"rbacadmin/pkg/config"
	"rbacadmin/pkg/jwt"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/gorm"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

var _ = Describe("RBAC admin API", func() {
	var (
		db     *gorm.DB
		engine *gin.Engine
	)

	do := func(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
		var reader *bytes.Reader
		if body != nil {
			raw, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(raw)
		} else {
			reader = bytes.NewReader(nil)
		}
		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		var env envelope
		if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
			Expect(json.Unmarshal(w.Body.Bytes(), &env)).To(Succeed())
		}
		return w, env
	}

	login := func(username, password string) string {
		w, env := do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
		Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())
		var issued struct {
			Token string `json:"token"`
		}
		Expect(json.Unmarshal(env.Data, &issued)).To(Succeed())
		return issued.Token
	}

	createUser := func(username string, isAdmin bool, groups ...string) *models.User {
		user := &models.User{Username: username, FullName: username, Email: username + "@example.com", IsActive: true, IsAdmin: isAdmin}
		Expect(user.SetPassword("secret1")).To(Succeed())
		Expect(db.Create(user).Error).To(Succeed())
		for _, name := range groups {
			var group models.Group
			Expect(db.Where("name = ?", name).Take(&group).Error).To(Succeed())
			Expect(db.Create(&models.Membership{UserID: user.ID, GroupID: group.ID}).Error).To(Succeed())
		}
		return user
	}

	countAudit := func(action models.AuditAction) int64 {
		var n int64
		Expect(db.Model(&models.AuditLogEntry{}).Where("action = ?", action).Count(&n).Error).To(Succeed())
		return n
	}

	BeforeEach(func() {
		var err error
		db, err = database.OpenMemory()
		Expect(err).NotTo(HaveOccurred())

		Expect(services.NewBootstrapper(db).Seed(context.Background(), services.AdminAccount{
			Username: "admin", Password: "admin123", Email: "admin@example.com", FullName: "Administrator",
		})).To(Succeed())

		hub := audit.NewHub(8)
		store := audit.NewGormStore(db, hub)
		recorder := audit.RecorderFunc(func(e audit.Event) {
			_ = store.Write(context.Background(), e)
		})

		authz := services.NewAuthorizationService(db)
		engine = router.SetupRouter(router.Dependencies{
			Sessions:    services.NewSessionService(db, jwt.NewJWTManager("router-test", 0, "RBAC-ADMIN"), authz, recorder),
			Authz:       authz,
			Users:       services.NewUserService(db),
			Groups:      services.NewGroupService(db),
			Menus:       services.NewMenuService(db),
			Permissions: services.NewPermissionService(db),
			AuditLogs:   services.NewAuditLogService(db),
			MenuUsage:   services.NewMenuUsageService(db, store),
			Health:      services.NewHealthChecker(nil, nil),
			Recorder:    recorder,
			Hub:         hub,
			CORS:        config.CORSConfig{AllowOrigins: []string{"*"}, AllowMethods: []string{"GET", "POST", "PUT", "DELETE"}},
		})
	})

	AfterEach(func() {
		Expect(database.Close(db)).To(Succeed())
	})

	Describe("authentication", func() {
		It("logs in and returns token, expiry and effective menus", func() {
			w, env := do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin", "password": "admin123"})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(env.Success).To(BeTrue())

			var issued struct {
				Token     string             `json:"token"`
				ExpiresAt string             `json:"expiresAt"`
				User      models.UserProfile `json:"user"`
				Menus     []models.Menu      `json:"menus"`
			}
			Expect(json.Unmarshal(env.Data, &issued)).To(Succeed())
			Expect(issued.Token).NotTo(BeEmpty())
			Expect(issued.User.IsAdmin).To(BeTrue())
			Expect(issued.Menus).To(HaveLen(len(services.DefaultMenus)))
			Expect(countAudit(models.AuditLogin)).To(BeEquivalentTo(1))
		})

		It("rejects bad credentials with 401 and one LOGIN_FAILED", func() {
			w, env := do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin", "password": "nope"})
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(env.Success).To(BeFalse())
			Expect(env.Message).To(Equal("用户名或密码错误"))
			Expect(countAudit(models.AuditLoginFailed)).To(BeEquivalentTo(1))
			Expect(countAudit(models.AuditLogin)).To(BeZero())
		})

		It("rejects missing fields with 400", func() {
			w, _ := do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": "admin"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(countAudit(models.AuditLoginFailed)).To(BeEquivalentTo(1))
		})

		It("requires a valid bearer token", func() {
			w, _ := do(http.MethodGet, "/api/auth/profile", "", nil)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))

			w, env := do(http.MethodGet, "/api/auth/profile", "garbage", nil)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
			Expect(env.Message).To(Equal("Token无效或已过期"))
		})

		It("returns profile with groups and audits the view", func() {
			token := login("admin", "admin123")
			w, env := do(http.MethodGet, "/api/auth/profile", token, nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(string(env.Data)).To(ContainSubstring(`"groups"`))
			Expect(string(env.Data)).To(ContainSubstring(`"name":"admin"`))
			Expect(countAudit(models.AuditViewProfile)).To(BeEquivalentTo(1))
		})

		It("changes password with wrong current password as 401", func() {
			createUser("maker1", false, "maker")
			token := login("maker1", "secret1")

			w, _ := do(http.MethodPut, "/api/auth/change-password", token, map[string]string{
				"currentPassword": "wrong1", "newPassword": "newpass1", "confirmPassword": "newpass1",
			})
			Expect(w.Code).To(Equal(http.StatusUnauthorized))

			w, _ = do(http.MethodPut, "/api/auth/change-password", token, map[string]string{
				"currentPassword": "secret1", "newPassword": "newpass1", "confirmPassword": "newpass2",
			})
			Expect(w.Code).To(Equal(http.StatusBadRequest))

			w, _ = do(http.MethodPut, "/api/auth/change-password", token, map[string]string{
				"currentPassword": "secret1", "newPassword": "newpass1", "confirmPassword": "newpass1",
			})
			Expect(w.Code).To(Equal(http.StatusOK))
			login("maker1", "newpass1")

			Expect(countAudit(models.AuditChangePasswordFailed)).To(BeEquivalentTo(2))
			Expect(countAudit(models.AuditChangePassword)).To(BeEquivalentTo(1))
		})

		It("audits a malformed change-password body as a failure", func() {
			createUser("maker1", false, "maker")
			token := login("maker1", "secret1")

			req := httptest.NewRequest(http.MethodPut, "/api/auth/change-password", bytes.NewReader([]byte("{not json")))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(countAudit(models.AuditChangePasswordFailed)).To(BeEquivalentTo(1))
		})
	})

	Describe("admin gate", func() {
		It("forbids regular users", func() {
			createUser("maker1", false, "maker")
			token := login("maker1", "secret1")
			w, env := do(http.MethodGet, "/api/users", token, nil)
			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(env.Success).To(BeFalse())
		})

		It("admits admin group members without the admin flag", func() {
			createUser("ops", false, "admin")
			token := login("ops", "secret1")
			w, _ := do(http.MethodGet, "/api/users", token, nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(countAudit(models.AuditViewAll)).To(BeEquivalentTo(1))
		})

		It("keeps audit logs for the admin group only", func() {
			createUser("flagged", true)
			token := login("flagged", "secret1")

			w, _ := do(http.MethodGet, "/api/users", token, nil)
			Expect(w.Code).To(Equal(http.StatusOK))

			w, _ = do(http.MethodGet, "/api/audit-logs", token, nil)
			Expect(w.Code).To(Equal(http.StatusForbidden))
		})
	})

	Describe("users", func() {
		var token string

		BeforeEach(func() {
			token = login("admin", "admin123")
		})

		It("creates users and reports conflicts as 409", func() {
			body := map[string]interface{}{
				"username": "newbie", "password": "secret1", "fullName": "New User", "email": "newbie@example.com",
			}
			w, env := do(http.MethodPost, "/api/users", token, body)
			Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
			Expect(string(env.Data)).NotTo(ContainSubstring("secret1"))
			Expect(string(env.Data)).NotTo(ContainSubstring("password"))

			w, _ = do(http.MethodPost, "/api/users", token, body)
			Expect(w.Code).To(Equal(http.StatusConflict))

			var entry models.AuditLogEntry
			Expect(db.Where("action = ? AND resource = ?", models.AuditCreate, models.ResourceUser).First(&entry).Error).To(Succeed())
			Expect(string(entry.Details)).NotTo(ContainSubstring("secret1"))
			Expect(string(entry.Details)).To(ContainSubstring("newbie"))
		})

		It("validates request bodies", func() {
			w, env := do(http.MethodPost, "/api/users", token, map[string]interface{}{"username": "x"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(env.Message).To(ContainSubstring("参数错误"))
		})

		It("forbids resetting the caller's own password", func() {
			var admin models.User
			Expect(db.Where("username = ?", "admin").Take(&admin).Error).To(Succeed())

			w, _ := do(http.MethodPut, "/api/users/"+itoa(admin.ID)+"/reset-password", token, map[string]string{"newPassword": "another1"})
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("generates a temporary password for others", func() {
			other := createUser("temp", false)
			w, env := do(http.MethodPost, "/api/users/"+itoa(other.ID)+"/generate-temp-password", token, nil)
			Expect(w.Code).To(Equal(http.StatusOK))

			var result struct {
				TempPassword string `json:"tempPassword"`
			}
			Expect(json.Unmarshal(env.Data, &result)).To(Succeed())
			Expect(result.TempPassword).To(HaveLen(services.TempPasswordLength))
			login("temp", result.TempPassword)
		})

		It("returns 404 for unknown users and 400 for bad ids", func() {
			w, _ := do(http.MethodGet, "/api/users/9999", token, nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))

			w, _ = do(http.MethodGet, "/api/users/abc", token, nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("groups and permissions", func() {
		It("assigns menus and permissions that drive effective menus", func() {
			token := login("admin", "admin123")
			member := createUser("member", false, "checker")

			var checker models.Group
			Expect(db.Where("name = ?", "checker").Take(&checker).Error).To(Succeed())
			var dashboard models.Menu
			Expect(db.Where("path = ?", "/dashboard").Take(&dashboard).Error).To(Succeed())

			w, _ := do(http.MethodPost, "/api/groups/"+itoa(checker.ID)+"/menus", token, map[string]uint{"menuId": dashboard.ID})
			Expect(w.Code).To(Equal(http.StatusOK))

			memberToken := login("member", "secret1")
			w, env := do(http.MethodGet, "/api/auth/menus", memberToken, nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(string(env.Data)).To(ContainSubstring(`"/dashboard"`))

			w, _ = do(http.MethodPut, "/api/permissions/group/"+itoa(checker.ID), token, map[string]interface{}{
				"permissions": []map[string]interface{}{{"menuId": 9999, "canView": true}},
			})
			Expect(w.Code).To(Equal(http.StatusBadRequest))

			w, _ = do(http.MethodDelete, "/api/groups/"+itoa(checker.ID)+"/menus/"+itoa(dashboard.ID), token, nil)
			Expect(w.Code).To(Equal(http.StatusOK))

			w, _ = do(http.MethodPost, "/api/groups/"+itoa(checker.ID)+"/members", token, map[string]uint{"userId": member.ID})
			Expect(w.Code).To(Equal(http.StatusConflict))
		})
	})

	Describe("menu usage and audit", func() {
		It("lets any user log menu access but keeps reports for the admin group", func() {
			createUser("maker1", false, "maker")
			token := login("maker1", "secret1")

			w, _ := do(http.MethodPost, "/api/menu-usage/log", token, map[string]interface{}{"menuId": 1, "menuPath": "/dashboard", "menuName": "Dashboard"})
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(countAudit(models.AuditAccessMenu)).To(BeEquivalentTo(1))

			w, _ = do(http.MethodGet, "/api/menu-usage/report", token, nil)
			Expect(w.Code).To(Equal(http.StatusForbidden))

			adminToken := login("admin", "admin123")
			w, env := do(http.MethodGet, "/api/menu-usage/summary/menu", adminToken, nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(string(env.Data)).To(ContainSubstring(`"accessCount":1`))
		})

		It("gates the live audit stream on the audit-logs menu", func() {
			auditor := createUser("auditor", false, "admin")
			token := login("auditor", "secret1")

			// 未携带升级头时，通过闸门后由升级器返回400
			w, _ := do(http.MethodGet, "/api/audit-logs/stream", token, nil)
			Expect(w.Code).To(Equal(http.StatusBadRequest))

			var menu models.Menu
			Expect(db.Where("path = ?", router.AuditLogsMenuPath).Take(&menu).Error).To(Succeed())
			Expect(db.Create(&models.UserPermission{UserID: auditor.ID, MenuID: menu.ID}).Error).To(Succeed())

			w, env := do(http.MethodGet, "/api/audit-logs/stream", token, nil)
			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(env.Message).To(ContainSubstring(router.AuditLogsMenuPath))

			Expect(db.Model(&models.Menu{}).Where("id = ?", menu.ID).Update("is_active", false).Error).To(Succeed())
			w, _ = do(http.MethodGet, "/api/audit-logs/stream", token, nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
		})

		It("queries and cleans audit logs", func() {
			token := login("admin", "admin123")

			w, env := do(http.MethodGet, "/api/audit-logs?action=LOGIN", token, nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			var page struct {
				Total int `json:"total"`
			}
			Expect(json.Unmarshal(env.Data, &page)).To(Succeed())
			Expect(page.Total).To(Equal(1))

			w, _ = do(http.MethodDelete, "/api/audit-logs/clean", token, map[string]int{"days": 0})
			Expect(w.Code).To(Equal(http.StatusBadRequest))

			w, env = do(http.MethodDelete, "/api/audit-logs/clean", token, nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(string(env.Data)).To(ContainSubstring(`"deleted":0`))
			Expect(countAudit(models.AuditCleanLogs)).To(BeEquivalentTo(1))

			w, _ = do(http.MethodGet, "/api/audit-logs/stats", token, nil)
			Expect(w.Code).To(Equal(http.StatusOK))
		})
	})

	Describe("operations", func() {
		It("answers health, liveness and metrics", func() {
			w, _ := do(http.MethodGet, "/health", "", nil)
			Expect(w.Code).To(Equal(http.StatusOK))

			w, _ = do(http.MethodGet, "/health/live", "", nil)
			Expect(w.Code).To(Equal(http.StatusOK))

			w, _ = do(http.MethodGet, "/metrics", "", nil)
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring("rbac_http_requests_total"))
		})

		It("returns the envelope for unknown routes", func() {
			w, env := do(http.MethodGet, "/api/nope", "", nil)
			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(env.Success).To(BeFalse())
			Expect(env.Message).To(Equal("接口不存在"))
		})
	})
})

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

package router

import (
	"rbacadmin/internal/audit"
	"rbacadmin/internal/handlers"
	"rbacadmin/internal/middleware"
	"rbacadmin/internal/models"
	"rbacadmin/internal/services"
	"rbacadmin/pkg/config"

	"github.com/gin-gonic/gin"
)

// Dependencies 路由所需的服务
// AuditLogsMenuPath 审计日志菜单路径
const AuditLogsMenuPath = "/audit-logs"

type Dependencies struct {
	Sessions    *services.SessionService
	Authz       *services.AuthorizationService
	Users       *services.UserService
	Groups      *services.GroupService
	Menus       *services.MenuService
	Permissions *services.PermissionService
	AuditLogs   *services.AuditLogService
	MenuUsage   *services.MenuUsageService
	Health      *services.HealthChecker
	Recorder    audit.Recorder
	Hub         *audit.Hub
	CORS        config.CORSConfig
}

// SetupRouter 设置路由
func SetupRouter(deps Dependencies) *gin.Engine {
	if deps.Recorder == nil {
		deps.Recorder = audit.Nop
	}

	router := gin.New()

	// 中间件
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.Metrics())
	router.Use(middleware.SetupCORS(deps.CORS))

	registerRoutes(router, deps)

	router.NoRoute(middleware.NotFound())
	return router
}

// 注册所有路由
func registerRoutes(router *gin.Engine, deps Dependencies) {
	auth := middleware.NewAuthMiddleware(deps.Sessions, deps.Authz)
	trail := func(action models.AuditAction, resource models.AuditResource) gin.HandlerFunc {
		return middleware.AuditTrail(deps.Recorder, action, resource)
	}

	// 健康检查与指标
	systemHandler := handlers.NewSystemHandler(deps.Health)
	router.GET("/health", systemHandler.Health)
	router.GET("/health/live", systemHandler.Live)
	router.GET("/metrics", systemHandler.Metrics())

	api := router.Group("/api")

	// 认证（登录审计由会话服务记录）
	authHandler := handlers.NewAuthHandler(deps.Sessions, deps.Authz, deps.Users)
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/profile", auth.RequireLogin(), trail(models.AuditViewProfile, models.ResourceAuth), authHandler.Profile)
		authGroup.GET("/menus", auth.RequireLogin(), trail(models.AuditViewMenus, models.ResourceAuth), authHandler.Menus)
		authGroup.PUT("/change-password", auth.RequireLogin(), authHandler.ChangePassword)
	}

	// 以下后台管理接口均要求管理员或管理员组成员
	admin := api.Group("", auth.RequireLogin(), auth.RequireAdminOrAdminGroup())

	userHandler := handlers.NewUserHandler(deps.Users)
	users := admin.Group("/users")
	{
		users.GET("", trail(models.AuditViewAll, models.ResourceUsers), userHandler.List)
		users.POST("", trail(models.AuditCreate, models.ResourceUser), userHandler.Create)
		users.GET("/:id", trail(models.AuditView, models.ResourceUser), userHandler.Get)
		users.PUT("/:id", trail(models.AuditUpdate, models.ResourceUser), userHandler.Update)
		users.DELETE("/:id", trail(models.AuditDelete, models.ResourceUser), userHandler.Delete)
		users.PUT("/:id/reset-password", trail(models.AuditResetPassword, models.ResourceUsers), userHandler.ResetPassword)
		users.POST("/:id/generate-temp-password", trail(models.AuditGenerateTempPassword, models.ResourceUsers), userHandler.GenerateTempPassword)
	}

	groupHandler := handlers.NewGroupHandler(deps.Groups, deps.Permissions)
	groups := admin.Group("/groups")
	{
		groups.GET("", trail(models.AuditViewAll, models.ResourceGroups), groupHandler.List)
		groups.POST("", trail(models.AuditCreate, models.ResourceGroup), groupHandler.Create)
		groups.GET("/:id", trail(models.AuditView, models.ResourceGroup), groupHandler.Get)
		groups.PUT("/:id", trail(models.AuditUpdate, models.ResourceGroup), groupHandler.Update)
		groups.DELETE("/:id", trail(models.AuditDelete, models.ResourceGroup), groupHandler.Delete)

		groups.GET("/:id/permissions", trail(models.AuditViewGroupPermissions, models.ResourceGroup), groupHandler.Permissions)
		groups.POST("/:id/permissions", trail(models.AuditAssignPermissions, models.ResourceGroup), groupHandler.SetPermissions)

		groups.GET("/:id/menus", trail(models.AuditViewGroupMenus, models.ResourceGroup), groupHandler.Menus)
		groups.POST("/:id/menus", trail(models.AuditAddMenuToGroup, models.ResourceGroup), groupHandler.AddMenu)
		groups.DELETE("/:id/menus/:menuId", trail(models.AuditRemoveMenuFromGroup, models.ResourceGroup), groupHandler.RemoveMenu)

		groups.GET("/:id/members", trail(models.AuditViewGroupMembers, models.ResourceGroup), groupHandler.Members)
		groups.POST("/:id/members", trail(models.AuditAddUserToGroup, models.ResourceGroup), groupHandler.AddMember)
		groups.DELETE("/:id/members/:userId", trail(models.AuditRemoveUserFromGroup, models.ResourceGroup), groupHandler.RemoveMember)
	}

	menuHandler := handlers.NewMenuHandler(deps.Menus)
	menus := admin.Group("/menus")
	{
		menus.GET("", trail(models.AuditViewAll, models.ResourceMenus), menuHandler.List)
		menus.POST("", trail(models.AuditCreate, models.ResourceMenu), menuHandler.Create)
		menus.GET("/:id", trail(models.AuditView, models.ResourceMenu), menuHandler.Get)
		menus.PUT("/:id", trail(models.AuditUpdate, models.ResourceMenu), menuHandler.Update)
		menus.DELETE("/:id", trail(models.AuditDelete, models.ResourceMenu), menuHandler.Delete)
	}

	permissionHandler := handlers.NewPermissionHandler(deps.Permissions)
	permissions := admin.Group("/permissions")
	{
		permissions.GET("/group/:groupId", trail(models.AuditViewGroupPermissions, models.ResourcePermissions), permissionHandler.GetGroup)
		permissions.PUT("/group/:groupId", trail(models.AuditUpdateGroupPermissions, models.ResourcePermissions), permissionHandler.SetGroup)
		permissions.GET("/user/:userId", trail(models.AuditViewUserPermissions, models.ResourcePermissions), permissionHandler.GetUser)
		permissions.PUT("/user/:userId", trail(models.AuditUpdateUserPermissions, models.ResourcePermissions), permissionHandler.SetUser)
	}

	// 菜单访问：记录对所有登录用户开放，报表仅管理员组
	menuUsageHandler := handlers.NewMenuUsageHandler(deps.MenuUsage)
	menuUsage := api.Group("/menu-usage", auth.RequireLogin())
	{
		menuUsage.POST("/log", menuUsageHandler.Log)

		reports := menuUsage.Group("", auth.RequireAdminGroup())
		reports.GET("/report", menuUsageHandler.Report)
		reports.GET("/summary/menu", menuUsageHandler.MenuSummary)
		reports.GET("/summary/user", menuUsageHandler.UserSummary)
	}

	// 审计日志仅管理员组
	auditHandler := handlers.NewAuditLogHandler(deps.AuditLogs)
	auditLogs := api.Group("/audit-logs", auth.RequireLogin(), auth.RequireAdminGroup())
	{
		auditLogs.GET("", auditHandler.Query)
		auditLogs.GET("/stats", auditHandler.Stats)
		auditLogs.DELETE("/clean", trail(models.AuditCleanLogs, models.ResourceAudit), auditHandler.Clean)

		if deps.Hub != nil {
			wsHandler := handlers.NewWebSocketHandler(deps.Hub, deps.CORS.AllowOrigins)
			// 实时流还需对审计日志菜单有查看权限
			auditLogs.GET("/stream", auth.RequireMenuPermission(AuditLogsMenuPath, models.ActionView), wsHandler.AuditStream)
		}
	}
}

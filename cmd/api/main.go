package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/coem-edu/sga-api/api/swagger"
	"github.com/coem-edu/sga-api/internal/authz"
	"github.com/coem-edu/sga-api/internal/handler"
	"github.com/coem-edu/sga-api/internal/middleware"
	"github.com/coem-edu/sga-api/internal/repository"
	"github.com/coem-edu/sga-api/internal/service"
	"github.com/coem-edu/sga-api/pkg/cache"
	"github.com/coem-edu/sga-api/pkg/config"
	"github.com/coem-edu/sga-api/pkg/database"
	appErrors "github.com/coem-edu/sga-api/pkg/errors"
	"github.com/coem-edu/sga-api/pkg/logger"
	corsmiddleware "github.com/coem-edu/sga-api/pkg/middleware/cors"
	reqidmiddleware "github.com/coem-edu/sga-api/pkg/middleware/requestid"
	"github.com/coem-edu/sga-api/pkg/response"
)

// @title SGA COEM API
// @version 1.0.0
// @description Academic records back office: students, guardians, classes and grades
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard cache disabled", "error", err)
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	parentRepo := repository.NewParentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	guard := authz.NewGuard(classRepo, parentRepo)

	authSvc := service.NewAuthService(userRepo, teacherRepo, parentRepo, cfg.JWT, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, userRepo, userRepo, logr)
	parentSvc := service.NewParentService(parentRepo, userRepo, userRepo, guard, logr)
	studentSvc := service.NewStudentService(studentRepo, parentRepo, classRepo, enrollmentRepo, userRepo, guard, logr)
	classSvc := service.NewClassService(classRepo, teacherRepo, enrollmentRepo, gradeRepo, userRepo, guard, logr)
	gradeSvc := service.NewGradeService(gradeRepo, studentRepo, guard, userRepo, cfg.Grades, logr)
	reportSvc := service.NewReportService(gradeRepo, studentRepo, enrollmentRepo, guard, cfg.Grades, logr)
	dashboardSvc := service.NewDashboardService(studentRepo, teacherRepo, parentRepo, classRepo, cacheRepo, cfg.Dashboard, logr)
	metricsSvc := service.NewMetricsService()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrStorageUnavailable.Code, appErrors.ErrStorageUnavailable.Status, "database unavailable"))
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handlers := handler.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Teachers:  handler.NewTeacherHandler(teacherSvc, classSvc),
		Parents:   handler.NewParentHandler(parentSvc, studentSvc),
		Students:  handler.NewStudentHandler(studentSvc),
		Classes:   handler.NewClassHandler(classSvc),
		Grades:    handler.NewGradeHandler(gradeSvc),
		Reports:   handler.NewReportHandler(reportSvc),
		Dashboard: handler.NewDashboardHandler(dashboardSvc),
	}
	handler.RegisterRoutes(r, cfg.APIPrefix, handlers, authSvc, dashboardSvc, userRepo)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

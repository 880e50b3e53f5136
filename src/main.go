package main

import (
	"accessbus/src/boot"
	"accessbus/src/config"
	"accessbus/src/lib"
	"accessbus/src/middlewares"
	"accessbus/src/types"
	"accessbus/src/utils"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path"
	"regexp"
	"syscall"
	"time"

	"github.com/covalenthq/lumberjack"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var reservationTimeValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	value, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	_, err := utils.ParseReservationTime(value, time.Now())
	return err == nil
}

func registerValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("reservationtime", reservationTimeValidatorFunc)
	}
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(lib.MetricsMiddleware)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func maintenanceModeMiddleware(g *gin.Engine) *gin.Engine {
	g.Use(func(ctx *gin.Context) {
		if config.MaintenanceMode() {
			err := errors.New("server is under maintenance")
			log.Println(err.Error())
			ctx.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "maintenance", "message": err.Error(), "success": false})
			return
		}
	})
	return g
}

// abortWithError renders err in the common error shape.
func abortWithError(ctx *gin.Context, status int, err error) {
	code, body := types.ErrorBody(status, err)
	if code >= http.StatusInternalServerError {
		log.Printf("Error on %s %s: %s\n", ctx.Request.Method, ctx.FullPath(), err.Error())
	}
	ctx.AbortWithStatusJSON(code, body)
}

func registerRoutes(router *gin.Engine) {
	router = maintenanceModeMiddleware(router)

	public := router.Group("/")
	public = authHandlers(public)
	public = transitHandlers(public)
	public.POST("/upload_pdf_temp", uploadDocumentHandler(false))

	refresh := router.Group("/")
	refresh.Use(middlewares.RefreshMiddleware)
	refreshHandlers(refresh)

	authorized := router.Group("/")
	authorized.Use(middlewares.AuthMiddleware)
	{
		authorized = sessionHandlers(authorized)
		authorized = timetableHandlers(authorized)
		authorized = reservationHandlers(authorized)
		authorized = volunteerHandlers(authorized)
		authorized = accountHandlers(authorized)
		documentHandlers(authorized)
	}
}

func corsMiddleware() gin.HandlerFunc {
	if config.ApiEnv() == string(types.Local) {
		return cors.Default()
	}
	appHost := os.Getenv("APP_HOST")
	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, "Authorization")
	cc.AllowOriginFunc = func(origin string) bool {
		if appHost == "" {
			return false
		}
		match, _ := regexp.MatchString(appHost, origin)
		return match
	}
	return cors.New(cc)
}

func initLogger() {
	dir := os.Getenv("LOG_DIR")
	if dir == "" {
		return
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("Error creating log directory: %s\n", err.Error())
		return
	}
	gin.ForceConsoleColor()
	gin.DefaultWriter = io.MultiWriter(&lumberjack.Logger{
		Filename:   path.Join(dir, "api.log"),
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	}, os.Stdout)
	log.SetOutput(&lumberjack.Logger{
		Filename:   path.Join(dir, "server.log"),
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     30,
		Compress:   true,
	})
}

func main() {
	if config.ApiEnv() == string(types.Local) {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			log.Printf("No .env file loaded: %s\n", err.Error())
		}
	}
	initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := boot.InitSecrets(ctx); err != nil {
		log.Fatalf("Error loading secrets: %s\n", err.Error())
	}
	if err := boot.InitPlanner(); err != nil {
		log.Fatalf("Error loading stops: %s\n", err.Error())
	}
	if err := boot.InitStorage(ctx); err != nil {
		log.Fatalf("Error initializing document storage: %s\n", err.Error())
	}
	if err := boot.InitPublisher(ctx); err != nil {
		log.Printf("Error initializing event publisher, events will only be logged: %s\n", err.Error())
	}
	boot.InitDb()
	boot.InitScheduler()
	defer boot.StopScheduler()

	router := setupRouter()
	router.Use(corsMiddleware())
	registerValidations()
	registerRoutes(router)

	srv := &http.Server{
		Addr:    ":" + config.Port(),
		Handler: router,
	}
	go func() {
		log.Printf("Listening on %s\n", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting server: %s\n", err.Error())
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %s\n", err.Error())
	}
}

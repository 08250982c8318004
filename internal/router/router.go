package router

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"invoicer/internal/handler"
	"invoicer/internal/middleware"
)

// Options holds the HTTP surface settings.
type Options struct {
	AllowedOrigins []string
	MaxUploadBytes int64
	// PublicDir, when it exists, is served as the web UI.
	PublicDir string
}

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	opts Options,
	sessionH *handler.SessionHandler,
	settingsH *handler.SettingsHandler,
	providerH *handler.ProviderHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = 32 << 20

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(opts.AllowedOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)

	api := r.Group("/api")
	api.GET("/health", healthH.Health)
	api.GET("/providers", providerH.List)
	api.GET("/settings", settingsH.Get)
	api.POST("/settings", settingsH.Update)

	// Batch sessions
	api.POST("/process", middleware.BodyLimit(multipartLimit(opts.MaxUploadBytes)), sessionH.Process)
	api.GET("/progress/:sessionId", sessionH.Progress)
	api.GET("/download/:sessionId", sessionH.Download)
	api.POST("/cancel/:sessionId", sessionH.Cancel)
	api.POST("/retry/:sessionId", sessionH.Retry)
	api.GET("/report/:sessionId", sessionH.Report)

	if opts.PublicDir != "" {
		if info, err := os.Stat(opts.PublicDir); err == nil && info.IsDir() {
			r.NoRoute(staticHandler(opts.PublicDir))
		}
	}

	return r
}

// multipartLimit leaves room for the multipart envelope around the file.
func multipartLimit(maxUpload int64) int64 {
	if maxUpload <= 0 {
		return 0
	}
	return maxUpload + 1<<20
}

// staticHandler serves files under dir and falls back to index.html.
func staticHandler(dir string) gin.HandlerFunc {
	fs := gin.Dir(dir, false)
	fileServer := http.StripPrefix("/", http.FileServer(fs))
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			handler.RespondError(c, http.StatusNotFound, "NOT_FOUND", "resource not found")
			return
		}
		clean := filepath.Clean("/" + c.Request.URL.Path)
		if info, err := os.Stat(filepath.Join(dir, clean)); err != nil || info.IsDir() {
			index := filepath.Join(dir, "index.html")
			if _, err := os.Stat(index); err != nil {
				handler.RespondError(c, http.StatusNotFound, "NOT_FOUND", "resource not found")
				return
			}
			c.File(index)
			return
		}
		fileServer.ServeHTTP(c.Writer, c.Request)
	}
}

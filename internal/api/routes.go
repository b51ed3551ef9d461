// 文件: internal/api/routes.go
package api

import (
	"PhotoFlow_Manager/config"
	"PhotoFlow_Manager/internal/task"
	"PhotoFlow_Manager/pkg/database"
	"PhotoFlow_Manager/pkg/ingest"
	"PhotoFlow_Manager/pkg/maintenance"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RegisterRoutes 注册所有API路由
func RegisterRoutes(tm *task.Manager, db database.Store, ing ingest.PhotoIngestor, maint maintenance.Maintenance) *chi.Mux {
	r := chi.NewRouter()

	// --- 中间件 (Middleware) ---
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// 配置CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handlers := NewAPIHandlers(tm, db, ing, maint)

	// --- API路由 ---
	r.Route("/api/v1", func(r chi.Router) {
		// 清理接口由调度器调用，没有用户身份，不经过鉴权中间件
		r.Post("/jobs/reap", handlers.HandleReapStuckJobs)

		// 其余接口都要求有效的 Bearer 令牌
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(config.C.Auth.JWTSecret))

			r.Get("/jobs/status", handlers.HandleGetJobStatus)
			r.Post("/jobs/rename", handlers.HandleStartRenameJob)

			r.Post("/photos/upload", handlers.HandleUploadPhotos)
			r.Get("/photos", handlers.HandleListPhotos)
			r.Get("/photos/{photoID}", handlers.HandleGetPhoto)
			r.Delete("/photos/{photoID}", handlers.HandleDeletePhoto)

			r.Get("/history", handlers.HandleListHistory)

			r.Post("/errors/log", handlers.HandleLogError)

			r.Get("/config", handlers.HandleGetConfig)
			r.Put("/config", handlers.HandleUpdateConfig)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}

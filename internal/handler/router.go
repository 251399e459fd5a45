package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
}

// NewRouter mounts the API under /api and, when objects is non-nil, the
// object passthrough under /objects.
func NewRouter(conf RouterConfig, pictures *PictureHandler, spaces *SpaceHandler, objects *ObjectHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(conf.RequestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   conf.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/picture", func(r chi.Router) {
			r.Post("/upload", pictures.Upload)
			r.Post("/upload/url", pictures.UploadByURL)
			r.Post("/upload/batch", pictures.UploadByBatch)
			r.Post("/list", pictures.List)
			r.Put("/edit", pictures.Edit)
			r.Post("/review", pictures.Review)
			r.Post("/cache/refresh", pictures.RefreshCache)
			r.Get("/{id}", pictures.Get)
			r.Delete("/{id}", pictures.Delete)
		})

		r.Route("/space", func(r chi.Router) {
			r.Post("/", spaces.Create)
			r.Get("/mine", spaces.GetMine)
			r.Get("/levels", spaces.Levels)
			r.Post("/list", spaces.List)
			r.Put("/edit", spaces.Edit)
			r.Put("/update", spaces.Update)
			r.Get("/{id}", spaces.Get)
			r.Get("/{id}/quota", spaces.QuotaInfo)
			r.Delete("/{id}", spaces.Delete)
		})
	})

	if objects != nil {
		r.Get("/objects/*", objects.Get)
	}
	return r
}

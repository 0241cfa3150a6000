package api

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/internal/ratelimit"
	"github.com/amirk1998/daybook/internal/service"
	"github.com/amirk1998/daybook/internal/session"
)

// Deps are the collaborators the HTTP layer dispatches to.
type Deps struct {
	DB         *sql.DB
	Auth       *service.AuthService
	Notes      *service.NoteService
	Todos      *service.TodoService
	Categories *service.CategoryService
	Diary      *service.DiaryService
	Images     *service.ImageService
	Sessions   *session.Manager
	Limiter    *ratelimit.RateLimiter
	UploadMax  int64
	// TrustProxy honors X-Forwarded-For and X-Real-IP for the client address.
	TrustProxy bool
}

type Server struct {
	db         *sql.DB
	auth       *service.AuthService
	notes      *service.NoteService
	todos      *service.TodoService
	categories *service.CategoryService
	diary      *service.DiaryService
	images     *service.ImageService
	sessions   *session.Manager
	limiter    *ratelimit.RateLimiter
	uploadMax  int64
	trustProxy bool
	router     chi.Router
}

func NewServer(d Deps) *Server {
	s := &Server{
		db:         d.DB,
		auth:       d.Auth,
		notes:      d.Notes,
		todos:      d.Todos,
		categories: d.Categories,
		diary:      d.Diary,
		images:     d.Images,
		sessions:   d.Sessions,
		limiter:    d.Limiter,
		uploadMax:  d.UploadMax,
		trustProxy: d.TrustProxy,
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusNotFound, "endpoint not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Get("/healthz", s.handleHealth)

	notes := resource[models.Note, models.CreateNoteRequest, models.UpdateNoteRequest, models.NoteListFilters]{
		name: "note", plural: "notes", svc: s.notes, filters: noteFilters,
	}
	todos := resource[models.Todo, models.CreateTodoRequest, models.UpdateTodoRequest, models.TodoListFilters]{
		name: "todo", plural: "todos", svc: s.todos, filters: todoFilters,
	}
	categories := resource[models.Category, models.CreateCategoryRequest, models.UpdateCategoryRequest, models.CategoryListFilters]{
		name: "category", plural: "categories", svc: s.categories, filters: categoryFilters,
	}
	entries := resource[models.DiaryEntry, models.CreateDiaryEntryRequest, models.UpdateDiaryEntryRequest, models.DiaryListFilters]{
		name: "diary entry", plural: "diary entries", svc: diaryEntries{svc: s.diary}, filters: diaryFilters,
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/me", s.handleMe)
			r.Put("/auth/profile", s.handleUpdateProfile)
			r.Put("/auth/password", s.handleChangePassword)

			r.Route("/notes", func(r chi.Router) {
				notes.routes(r)
				r.Post("/{id}/pin", s.handleTogglePin)
			})

			r.Route("/todos", func(r chi.Router) {
				r.Put("/reorder", s.handleReorderTodos)
				todos.routes(r)
				r.Post("/{id}/toggle", s.handleToggleTodo)
			})

			r.Route("/categories", categories.routes)

			r.Route("/diary", func(r chi.Router) {
				r.Get("/status", s.handleDiaryStatus)
				r.Post("/pin", s.handleSetPin)
				r.Post("/verify", s.handleVerifyPin)
				r.Post("/lock", s.handleLockDiary)
				r.Post("/otp/request", s.handleRequestOTP)
				r.Post("/otp/confirm", s.handleConfirmOTP)

				r.Route("/entries", func(r chi.Router) {
					r.Use(s.requireDiaryUnlocked)
					entries.routes(r)
				})
			})

			r.Route("/images", func(r chi.Router) {
				r.Get("/", s.handleListImages)
				r.Post("/", s.handleUploadImage)
				r.Get("/{id}", s.handleGetImage)
				r.Delete("/{id}", s.handleDeleteImage)
				r.Get("/{id}/file", s.handleImageFile)
			})
		})
	})

	return r
}

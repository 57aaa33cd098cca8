package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	apimiddleware "github.com/markvault/markvault/internal/api/middleware"
)

// NewRouter assembles the management API router with all routes and standard
// middleware.
func NewRouter(tasks *TaskHandler, eventsHandler *EventHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.TraceMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", tasks.ListTasks)
			r.Post("/", tasks.CreateTask)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", tasks.GetTask)
				r.Put("/", tasks.UpdateTask)
				r.Delete("/", tasks.DeleteTask)
				r.Post("/enable", tasks.EnableTask)
				r.Post("/disable", tasks.DisableTask)
				r.Post("/run", tasks.RunTask)
				r.Get("/history", tasks.GetTaskHistory)
			})
		})
		r.Post("/events/{kind}", eventsHandler.PostEvent)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

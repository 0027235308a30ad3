package api

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts the authenticated API on r.
func RegisterRoutes(r chi.Router, tasks *TaskHandler, validations *ValidationHandler) {
	r.Post("/validations", validations.SubmitValidation)
	r.Get("/snapshots", validations.ListSnapshots)

	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", tasks.ListTasks)
		r.Get("/{id}", tasks.GetTask)
		r.Get("/{id}/result", tasks.GetTaskResult)
		r.Get("/{id}/snapshot", validations.GetTaskSnapshot)
		r.Delete("/{id}", tasks.CancelTask)
	})
}

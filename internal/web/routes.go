package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	identitiesHandler := handlers.NewIdentitiesHandler(s.engine.Lifecycle, s.engine.Registry)
	recognizeHandler := handlers.NewRecognizeHandler(s.engine.Session)
	attendanceHandler := handlers.NewAttendanceHandler(s.engine.Ledger)
	registryHandler := handlers.NewRegistryHandler(s.engine.Registry)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", handlers.HealthCheck)

		// Enrollment
		r.Get("/identities", identitiesHandler.List)
		r.Post("/identities/{name}", identitiesHandler.Enroll)
		r.Delete("/identities/{name}", identitiesHandler.Delete)

		// Recognition
		r.Post("/recognize", recognizeHandler.Recognize)
		r.Get("/session", recognizeHandler.Summary)

		// Attendance
		r.Get("/attendance", attendanceHandler.List)

		// Registry
		r.Get("/registry", registryHandler.Get)
		r.Post("/registry/rebuild", registryHandler.Rebuild)
	})
}

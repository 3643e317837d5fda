package web

import (
	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/attendance-kiosk/internal/web/middleware"
	"github.com/kozaktomas/attendance-kiosk/internal/web/static"
)

func (s *Server) setupRoutes() {
	s.router.Get("/api/v1/health", s.kiosk.Health)

	// Kiosk endpoints keep the paths the browser pages post to.
	s.router.Group(func(r chi.Router) {
		r.Use(middleware.KioskSession)
		r.Post("/process_frame", s.kiosk.ProcessFrame)
		r.Post("/save_user", s.kiosk.SaveUser)
		r.Post("/get_attendance_data", s.kiosk.AttendanceData)
	})

	// Pages
	s.router.Get("/", static.Serve(static.Dashboard))
	s.router.Get("/register", static.Serve(static.Register))
	s.router.Get("/static/"+static.Script, static.Serve(static.Script))
	s.router.Get("/static/"+static.Style, static.Serve(static.Style))
}

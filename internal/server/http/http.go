package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi"
)

type Server struct {
	public       *http.Server
	publicRouter *chi.Mux

	handler *Handler
}

func New(addr string, handler *Handler, mws ...func(http.Handler) http.Handler) *Server {
	s := &Server{
		publicRouter: chi.NewRouter(),

		handler: handler,
	}
	s.registerPublicRoutes(mws...)

	s.public = &http.Server{
		Addr:         addr,
		Handler:      s.publicRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Router() http.Handler {
	return s.publicRouter
}

func (s *Server) ServePublic() error {
	return s.public.ListenAndServe()
}

func (s *Server) ShutdownPublic(ctx context.Context) error {
	if err := s.public.Shutdown(ctx); err != nil {
		return s.public.Close()
	}
	return nil
}

func (s *Server) registerPublicRoutes(middlewares ...func(http.Handler) http.Handler) {
	s.publicRouter.Use(middlewares...)
	s.publicRouter.Get("/_/ready", s.handler.Ready)

	s.publicRouter.Route("/v1", func(r chi.Router) {
		r.Get("/stats", s.handler.Stats)
	})
}

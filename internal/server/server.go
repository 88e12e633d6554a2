package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"terrasync/internal/activity"
	"terrasync/internal/executor"
	"terrasync/internal/logger"
	"terrasync/internal/repository"
	"terrasync/internal/schedule"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server exposes schedule and connection CRUD, manual run triggers, and
// the history/activity feeds over HTTP.
type Server struct {
	echo     *echo.Echo
	manager  *schedule.Manager
	executor *executor.Executor
	connRepo *repository.ConnectionRepository
	histRepo *repository.HistoryRepository
	recorder *activity.Recorder
	port     int
	stopCh   chan struct{}
}

func New(manager *schedule.Manager, exec *executor.Executor, recorder *activity.Recorder, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		manager:  manager,
		executor: exec,
		connRepo: repository.NewConnectionRepository(),
		histRepo: repository.NewHistoryRepository(),
		recorder: recorder,
		port:     port,
		stopCh:   make(chan struct{}, 1),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	// Daemon lifecycle
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/stop", s.handleStop)

	// Connections
	c := s.echo.Group("/connections")
	c.GET("", s.handleListConnections)
	c.POST("", s.handleAddConnection)
	c.GET("/:connId", s.handleGetConnection)
	c.DELETE("/:connId", s.handleRemoveConnection)

	// Schedules scoped to a connection
	c.GET("/:connId/schedules/:name", s.handleGetSchedule)
	c.PUT("/:connId/schedules/:name", s.handleUpdateSchedule)
	c.DELETE("/:connId/schedules/:name", s.handleRemoveSchedule)
	c.POST("/:connId/schedules/:name/run", s.handleRunSchedule)
	c.GET("/:connId/history", s.handleConnectionHistory)

	// Schedules
	s.echo.GET("/schedules", s.handleListSchedules)
	s.echo.POST("/schedules", s.handleAddSchedule)
	s.echo.GET("/schedules/:id/history", s.handleScheduleHistory)

	// Activity feed
	s.echo.GET("/activity", s.handleActivity)
}

func (s *Server) Start() {
	go func() {
		addr := ":" + strconv.Itoa(s.port)
		logger.Log.Info("api server started", zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("api server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"active_jobs": s.executor.Registry().Count(),
	})
}

func (s *Server) handleStop(c echo.Context) error {
	s.stopCh <- struct{}{}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

// httpError maps the engine's error taxonomy onto status codes.
func httpError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, schedule.ErrInvalidSchedule):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, executor.ErrAlreadyRunning):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func connIDParam(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("connId"), 10, 32)
	return uint(id), err
}

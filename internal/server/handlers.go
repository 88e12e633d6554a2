package server

import (
	"net/http"
	"strconv"

	"terrasync/internal/model"
	"terrasync/internal/schedule"

	"github.com/labstack/echo/v4"
)

type addConnectionRequest struct {
	Name     string         `json:"name"`
	Host     string         `json:"host"`
	Port     int            `json:"port"`
	Username string         `json:"username"`
	Password string         `json:"password"`
	Protocol model.Protocol `json:"protocol"`
	Secure   bool           `json:"secure"`
}

func (s *Server) handleAddConnection(c echo.Context) error {
	var req addConnectionRequest
	if err := c.Bind(&req); err != nil || req.Name == "" || req.Host == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name and host required"})
	}

	conn := model.FTPConnection{
		Name:     req.Name,
		Host:     req.Host,
		Port:     req.Port,
		Username: req.Username,
		Password: req.Password,
		Protocol: req.Protocol,
		Secure:   req.Secure,
	}
	if conn.Protocol == "" {
		conn.Protocol = model.ProtocolFTP
	}

	if err := s.connRepo.Create(&conn); err != nil {
		return httpError(c, err)
	}

	s.recorder.Record("Connection added: "+conn.Name, "fas fa-plug", "text-info")
	return c.JSON(http.StatusCreated, conn)
}

func (s *Server) handleListConnections(c echo.Context) error {
	conns, err := s.connRepo.GetAll()
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, conns)
}

func (s *Server) handleGetConnection(c echo.Context) error {
	id, err := connIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid connection id"})
	}

	conn, err := s.connRepo.GetByID(id)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, conn)
}

func (s *Server) handleRemoveConnection(c echo.Context) error {
	id, err := connIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid connection id"})
	}

	if err := s.connRepo.Delete(id); err != nil {
		return httpError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

type addScheduleRequest struct {
	ConnectionID uint              `json:"connectionId"`
	Name         string            `json:"name"`
	Frequency    model.Frequency   `json:"frequency"`
	Time         string            `json:"time"`
	DayOfWeek    int               `json:"dayOfWeek"`
	DayOfMonth   int               `json:"dayOfMonth"`
	Source       model.Endpoint    `json:"source"`
	Destination  model.Endpoint    `json:"destination"`
	Options      model.SyncOptions `json:"options"`
	Enabled      *bool             `json:"enabled"`
}

func (s *Server) handleAddSchedule(c echo.Context) error {
	var req addScheduleRequest
	if err := c.Bind(&req); err != nil || req.Name == "" || req.ConnectionID == 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "connectionId and name required"})
	}

	if _, err := s.connRepo.GetByID(req.ConnectionID); err != nil {
		return httpError(c, err)
	}

	sched := model.SyncSchedule{
		ConnectionID: req.ConnectionID,
		Name:         req.Name,
		Frequency:    req.Frequency,
		Time:         req.Time,
		DayOfWeek:    req.DayOfWeek,
		DayOfMonth:   req.DayOfMonth,
		Source:       req.Source,
		Destination:  req.Destination,
		Options:      req.Options,
		Enabled:      true,
	}
	if sched.Time == "" {
		sched.Time = "00:00"
	}
	if req.Enabled != nil {
		sched.Enabled = *req.Enabled
	}

	if err := s.manager.Create(&sched); err != nil {
		return httpError(c, err)
	}

	s.recorder.Record("Schedule created: "+sched.Name, "fas fa-calendar-plus", "text-info")
	return c.JSON(http.StatusCreated, sched)
}

func (s *Server) handleListSchedules(c echo.Context) error {
	var connectionID uint
	if v := c.QueryParam("connection_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid connection_id"})
		}
		connectionID = uint(id)
	}

	schedules, err := s.manager.List(connectionID)
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, schedules)
}

func (s *Server) handleGetSchedule(c echo.Context) error {
	id, err := connIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid connection id"})
	}

	sched, err := s.manager.Get(id, c.Param("name"))
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, sched)
}

type updateScheduleRequest struct {
	Frequency   *model.Frequency   `json:"frequency"`
	Time        *string            `json:"time"`
	DayOfWeek   *int               `json:"dayOfWeek"`
	DayOfMonth  *int               `json:"dayOfMonth"`
	Source      *model.Endpoint    `json:"source"`
	Destination *model.Endpoint    `json:"destination"`
	Options     *model.SyncOptions `json:"options"`
	Enabled     *bool              `json:"enabled"`
}

func (s *Server) handleUpdateSchedule(c echo.Context) error {
	id, err := connIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid connection id"})
	}

	var req updateScheduleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid body"})
	}

	sched, err := s.manager.Update(id, c.Param("name"), schedule.Update{
		Frequency:   req.Frequency,
		Time:        req.Time,
		DayOfWeek:   req.DayOfWeek,
		DayOfMonth:  req.DayOfMonth,
		Source:      req.Source,
		Destination: req.Destination,
		Options:     req.Options,
		Enabled:     req.Enabled,
	})
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, sched)
}

func (s *Server) handleRemoveSchedule(c echo.Context) error {
	id, err := connIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid connection id"})
	}

	if err := s.manager.Delete(id, c.Param("name")); err != nil {
		return httpError(c, err)
	}

	s.recorder.Record("Schedule deleted: "+c.Param("name"), "fas fa-calendar-minus", "text-muted")
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleRunSchedule(c echo.Context) error {
	id, err := connIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid connection id"})
	}

	ok, err := s.executor.Run(id, c.Param("name"))
	if err != nil {
		return httpError(c, err)
	}

	status := "success"
	if !ok {
		status = "failed"
	}

	return c.JSON(http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleScheduleHistory(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid schedule id"})
	}

	histories, err := s.histRepo.GetBySchedule(uint(id), limitParam(c))
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, histories)
}

func (s *Server) handleConnectionHistory(c echo.Context) error {
	id, err := connIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid connection id"})
	}

	histories, err := s.histRepo.GetByConnection(id, limitParam(c))
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, histories)
}

func (s *Server) handleActivity(c echo.Context) error {
	entries, err := s.recorder.Recent(limitParam(c))
	if err != nil {
		return httpError(c, err)
	}

	return c.JSON(http.StatusOK, entries)
}

func limitParam(c echo.Context) int {
	n := 20
	if v := c.QueryParam("n"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			n = parsed
		}
	}

	return n
}

package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/coursechat/internal/rag"
	"github.com/mohammad-safakhou/coursechat/internal/vectorstore"
	"github.com/mohammad-safakhou/coursechat/models"
	"github.com/mohammad-safakhou/coursechat/session"
)

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
}

type queryResponse struct {
	Answer    string          `json:"answer"`
	Sources   []models.Source `json:"sources"`
	SessionID string          `json:"session_id"`
}

type courseStatsResponse struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type resetRequest struct {
	SessionID string `json:"session_id"`
}

func registerRoutes(e *echo.Echo, orch *rag.Orchestrator, sessions session.Store, store vectorstore.Store) {
	api := e.Group("/api")

	api.POST("/query", func(c echo.Context) error {
		var req queryRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.Query == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "query must not be empty")
		}

		answer, err := orch.Answer(c.Request().Context(), req.Query, req.SessionID)
		if err != nil {
			if errors.Is(err, rag.ErrModelUnavailable) || errors.Is(err, vectorstore.ErrIndexUnavailable) {
				return echo.NewHTTPError(http.StatusBadGateway, err.Error())
			}
			return err
		}
		sources := answer.Sources
		if sources == nil {
			sources = []models.Source{}
		}
		return c.JSON(http.StatusOK, queryResponse{
			Answer:    answer.Text,
			Sources:   sources,
			SessionID: answer.SessionID,
		})
	})

	api.GET("/courses", func(c echo.Context) error {
		titles, err := store.ListCourseTitles(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		if titles == nil {
			titles = []string{}
		}
		return c.JSON(http.StatusOK, courseStatsResponse{
			TotalCourses: len(titles),
			CourseTitles: titles,
		})
	})

	api.POST("/new-chat", func(c echo.Context) error {
		return c.JSON(http.StatusOK, sessionResponse{SessionID: sessions.Create()})
	})

	api.POST("/reset", func(c echo.Context) error {
		var req resetRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.SessionID == "" {
			return echo.NewHTTPError(http.StatusBadRequest, "session_id must not be empty")
		}
		return c.JSON(http.StatusOK, sessionResponse{SessionID: sessions.Reset(req.SessionID)})
	})
}

package main

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/academic-records-api/internal/handler"
)

func routeSet(r *gin.Engine) map[string]bool {
	out := map[string]bool{}
	for _, route := range r.Routes() {
		out[route.Method+" "+route.Path] = true
	}
	return out
}

func TestRegisterRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r.Group("/api/v1"), handlers{
		terms:       handler.NewTermHandler(nil),
		enrollments: handler.NewEnrollmentHandler(nil),
		grades:      handler.NewGradeHandler(nil),
		rankings:    handler.NewRankingHandler(nil),
		reports:     handler.NewReportHandler(nil),
	})

	routes := routeSet(r)
	for _, want := range []string{
		"POST /api/v1/terms/:id/activate",
		"GET /api/v1/terms/active",
		"GET /api/v1/enrollments/search",
		"GET /api/v1/enrollments/:id/grades/:subjectId",
		"GET /api/v1/cohorts/:id/enrollments",
		"POST /api/v1/subjects/:id/ranking",
		"PATCH /api/v1/grades/:id/scores",
		"GET /api/v1/reports/cohorts/:id/ranking",
	} {
		assert.True(t, routes[want], want)
	}
}

func TestRegisterRoutesWithoutReports(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r.Group("/api/v1"), handlers{
		terms:       handler.NewTermHandler(nil),
		enrollments: handler.NewEnrollmentHandler(nil),
		grades:      handler.NewGradeHandler(nil),
		rankings:    handler.NewRankingHandler(nil),
	})

	assert.False(t, routeSet(r)["GET /api/v1/reports/cohorts/:id/ranking"])
}

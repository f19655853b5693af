package main

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academic-records-api/internal/handler"
)

type handlers struct {
	terms       *handler.TermHandler
	enrollments *handler.EnrollmentHandler
	grades      *handler.GradeHandler
	rankings    *handler.RankingHandler
	reports     *handler.ReportHandler
}

func registerRoutes(api *gin.RouterGroup, h handlers) {
	terms := api.Group("/terms")
	terms.GET("", h.terms.List)
	terms.POST("", h.terms.Create)
	terms.GET("/active", h.terms.GetActive)
	terms.GET("/:id", h.terms.Get)
	terms.PUT("/:id", h.terms.Update)
	terms.DELETE("/:id", h.terms.Delete)
	terms.POST("/:id/activate", h.terms.Activate)
	terms.POST("/:id/deactivate", h.terms.Deactivate)

	enrollments := api.Group("/enrollments")
	enrollments.POST("", h.enrollments.Register)
	enrollments.GET("/search", h.enrollments.Search)
	enrollments.GET("/:id", h.enrollments.Get)
	enrollments.PATCH("/:id", h.enrollments.Update)
	enrollments.DELETE("/:id", h.enrollments.Delete)
	enrollments.GET("/:id/grades", h.grades.ListByEnrollment)
	enrollments.GET("/:id/grades/:subjectId", h.grades.Get)

	api.GET("/cohorts/:id/enrollments", h.enrollments.ListByCohort)
	api.POST("/cohorts/:id/ranking", h.rankings.RecomputeCohort)
	api.GET("/locations/:id/enrollments", h.enrollments.ListByLocation)
	api.GET("/subjects/:id/enrollments", h.enrollments.ListBySubject)
	api.GET("/subjects/:id/grades", h.grades.ListBySubject)
	api.POST("/subjects/:id/ranking", h.rankings.RecomputeSubject)

	grades := api.Group("/grades")
	grades.PUT("", h.grades.Upsert)
	grades.PATCH("/:id/scores", h.grades.PatchScores)
	grades.POST("/:id/void", h.grades.Void)

	if h.reports != nil {
		api.GET("/reports/cohorts/:id/ranking", h.reports.CohortRanking)
	}
}

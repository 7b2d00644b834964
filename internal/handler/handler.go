// Package handler exposes the attendance service over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/queue"
	"classattend/internal/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Publisher receives course events. queue.Queue satisfies it.
type Publisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Enroller edits a course catalog.
type Enroller interface {
	Enroll(ctx context.Context, courseID string, studentIDs ...string) error
	AddLessons(ctx context.Context, courseID string, lessonIDs ...string) error
}

// Handler serves the course attendance routes.
type Handler struct {
	svc       *attendance.Service
	catalog   Enroller
	events    Publisher
	submitURL string
	log       *zap.Logger
}

// New creates a Handler. events may be nil; submitURL is embedded in QR codes.
func New(svc *attendance.Service, catalog Enroller, events Publisher, submitURL string, log *zap.Logger) *Handler {
	return &Handler{svc: svc, catalog: catalog, events: events, submitURL: submitURL, log: log}
}

// Register mounts the routes under /v1. authn must store the caller for
// auth.ActorFrom; submitLimit guards the submission route.
func (h *Handler) Register(r gin.IRouter, authn, submitLimit gin.HandlerFunc) {
	v1 := r.Group("/v1", authn)
	course := v1.Group("/courses/:course_id")
	{
		course.POST("/windows", h.openWindow)
		course.GET("/windows/active", h.activeWindow)
		course.GET("/windows/active/qr", h.activeWindowQR)
		course.POST("/submissions", submitLimit, h.submit)
		course.PUT("/records/:student_id", h.override)
		course.POST("/reconcile", h.reconcile)
		course.GET("/summary", h.summary)
		course.GET("/report", h.report)
		course.GET("/report.xlsx", h.reportXLSX)
		course.GET("/students/:student_id/percentage", h.percentage)
		course.POST("/students", h.enroll)
		course.POST("/lessons", h.addLessons)
	}
}

type openWindowRequest struct {
	LessonID string `json:"lesson_id"`
	Date     string `json:"date"`
	Start    string `json:"start" binding:"required"`
	End      string `json:"end" binding:"required"`
}

func (h *Handler) openWindow(c *gin.Context) {
	var req openWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	open := attendance.OpenRequest{CourseID: c.Param("course_id"), LessonID: req.LessonID}
	var err error
	if open.Start, err = attendance.ParseTimeOfDay(req.Start); err != nil {
		h.writeError(c, err)
		return
	}
	if open.End, err = attendance.ParseTimeOfDay(req.End); err != nil {
		h.writeError(c, err)
		return
	}
	if req.Date != "" {
		if open.Date, err = attendance.ParseDate(req.Date); err != nil {
			h.writeError(c, err)
			return
		}
	}

	w, err := h.svc.OpenWindow(c.Request.Context(), h.actor(c), open)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.announce(c.Request.Context(), w)
	c.JSON(http.StatusCreated, w)
}

// announce publishes window.opened; the scheduled sweep covers lost events.
func (h *Handler) announce(ctx context.Context, w attendance.Window) {
	if h.events == nil {
		return
	}
	msg, err := queue.NewWindowOpened(w)
	if err == nil {
		err = h.events.Publish(ctx, msg)
	}
	if err != nil {
		h.log.Warn("publish window.opened failed", zap.String("course_id", w.CourseID), zap.Error(err))
	}
}

func (h *Handler) activeWindow(c *gin.Context) {
	w, err := h.svc.ActiveWindow(c.Request.Context(), h.actor(c), c.Param("course_id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"window": w, "open": w.IsOpen(h.svc.Now())})
}

func (h *Handler) activeWindowQR(c *gin.Context) {
	courseID := c.Param("course_id")
	if !h.manages(c, courseID) {
		return
	}
	w, err := h.svc.ActiveWindow(c.Request.Context(), h.actor(c), courseID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	png, err := report.QRCode(report.SubmitLink(h.submitURL, courseID, w.Code), report.DefaultQRSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}

type submitRequest struct {
	Code   string `json:"code" binding:"required"`
	Status string `json:"status"`
}

func (h *Handler) submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status := attendance.StatusPresent
	if req.Status != "" {
		var err error
		if status, err = attendance.ParseStatus(req.Status); err != nil {
			h.writeError(c, err)
			return
		}
	}
	rec, err := h.svc.Submit(c.Request.Context(), h.actor(c), c.Param("course_id"), req.Code, status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

type overrideRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) override(c *gin.Context) {
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	status, err := attendance.ParseStatus(req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	rec, err := h.svc.Override(c.Request.Context(), h.actor(c), c.Param("course_id"), c.Param("student_id"), status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) reconcile(c *gin.Context) {
	courseID := c.Param("course_id")
	if !h.manages(c, courseID) {
		return
	}
	n, err := h.svc.Reconcile(c.Request.Context(), courseID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"course_id": courseID, "marked_absent": n})
}

func (h *Handler) summary(c *gin.Context) {
	courseID := c.Param("course_id")
	if !h.manages(c, courseID) {
		return
	}
	sum, err := h.svc.CourseSummary(c.Request.Context(), courseID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) report(c *gin.Context) {
	courseID := c.Param("course_id")
	if !h.manages(c, courseID) {
		return
	}
	rep, err := h.svc.Report(c.Request.Context(), courseID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) reportXLSX(c *gin.Context) {
	courseID := c.Param("course_id")
	if !h.manages(c, courseID) {
		return
	}
	rep, err := h.svc.Report(c.Request.Context(), courseID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	buf, name, err := report.WriteXLSX(courseID, rep)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (h *Handler) percentage(c *gin.Context) {
	courseID, studentID := c.Param("course_id"), c.Param("student_id")
	a := h.actor(c)
	self := attendance.IsStudent(a) && a.ActorID() == studentID
	if !self && !attendance.CanManage(a, courseID) {
		h.writeError(c, attendance.ErrForbidden)
		return
	}
	pct, err := h.svc.Percentage(c.Request.Context(), courseID, studentID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"course_id": courseID, "student_id": studentID, "percentage": pct})
}

func (h *Handler) actor(c *gin.Context) attendance.Actor {
	a, _ := auth.ActorFrom(c)
	return a
}

func (h *Handler) manages(c *gin.Context, courseID string) bool {
	if attendance.CanManage(h.actor(c), courseID) {
		return true
	}
	h.writeError(c, attendance.ErrForbidden)
	return false
}

type idsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,dive,required"`
}

func (h *Handler) enroll(c *gin.Context) {
	h.editCatalog(c, h.catalog.Enroll)
}

func (h *Handler) addLessons(c *gin.Context) {
	h.editCatalog(c, h.catalog.AddLessons)
}

func (h *Handler) editCatalog(c *gin.Context, edit func(context.Context, string, ...string) error) {
	courseID := c.Param("course_id")
	if !h.manages(c, courseID) {
		return
	}
	var req idsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := edit(c.Request.Context(), courseID, req.IDs...); err != nil {
		h.writeError(c, &attendance.StorageError{Op: "edit catalog", Err: err})
		return
	}
	c.JSON(http.StatusOK, gin.H{"course_id": courseID, "ids": req.IDs})
}

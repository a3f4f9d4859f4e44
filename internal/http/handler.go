package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helioserv/solarops-submissions/internal/excel"
	"github.com/helioserv/solarops-submissions/internal/http/middleware"
	"github.com/helioserv/solarops-submissions/internal/model"
	"github.com/helioserv/solarops-submissions/internal/service"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExcelParser turns an uploaded workbook into submission rows.
type ExcelParser interface {
	Parse(content []byte) ([]excel.Row, error)
}

// ExcelGenerator renders submissions into a workbook.
type ExcelGenerator interface {
	Generate(submissions []model.Submission) ([]byte, error)
}

// PDFGenerator renders submissions into a report document.
type PDFGenerator interface {
	Generate(submissions []model.Submission, generatedAt time.Time) ([]byte, error)
}

type Handler struct {
	submissions *service.SubmissionService
	parser      ExcelParser
	excel       ExcelGenerator
	pdf         PDFGenerator
	log         zerolog.Logger
}

func NewHandler(submissions *service.SubmissionService, parser ExcelParser, excelGen ExcelGenerator, pdfGen PDFGenerator, log zerolog.Logger) *Handler {
	return &Handler{
		submissions: submissions,
		parser:      parser,
		excel:       excelGen,
		pdf:         pdfGen,
		log:         log,
	}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	api := router.Group("/api")
	api.Use(authMiddleware)

	api.GET("/calculate", h.calculate)
	api.GET("/sites", h.sites)
	api.GET("/years", h.years)
	api.GET("/submissions", h.listSubmissions)
	api.GET("/stats", h.stats)
	api.PUT("/submissions/:id", h.updateSubmission)

	admin := api.Group("/", middleware.RequireAdmin())
	admin.POST("/submissions", h.createSubmission)
	admin.POST("/submissions/bulk", h.bulkCreate)
	admin.POST("/submissions/upload", h.upload)
	admin.POST("/recalculate-all", h.recalculateAll)
	admin.POST("/sync-inverter", h.syncInverter)
	admin.GET("/submissions/export", h.export)

	super := api.Group("/", middleware.RequireSuperAdmin())
	super.DELETE("/submissions/cleanup", h.cleanup)
	super.DELETE("/submissions/:id", h.deleteSubmission)
}

func (h *Handler) calculate(c *gin.Context) {
	values, err := h.submissions.Calculate(c.Request.Context(), c.Query("site"), c.Query("date"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"site":      c.Query("site"),
		"date":      c.Query("date"),
		"invGen":    values.InvGen,
		"abtExport": values.AbtExport,
		"poa":       values.POA,
	})
}

func (h *Handler) sites(c *gin.Context) {
	sites, err := h.submissions.Sites(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, sites)
}

func (h *Handler) years(c *gin.Context) {
	years, err := h.submissions.Years(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, years)
}

func (h *Handler) listSubmissions(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	result, err := h.submissions.List(c.Request.Context(), principal, listQueryFromRequest(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) stats(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	counts, err := h.submissions.Stats(c.Request.Context(), principal, listQueryFromRequest(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

type createSubmissionRequest struct {
	Site          string   `json:"site" binding:"required"`
	Date          string   `json:"date" binding:"required"`
	InvGen        *float64 `json:"invGen"`
	AbtExport     *float64 `json:"abtExport"`
	POA           *float64 `json:"poa"`
	Status        string   `json:"status"`
	AutoCalculate bool     `json:"autoCalculate"`
}

func (h *Handler) createSubmission(c *gin.Context) {
	var req createSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	submission, err := h.submissions.Create(c.Request.Context(), service.CreateInput{
		Site:          req.Site,
		Date:          req.Date,
		InvGen:        req.InvGen,
		AbtExport:     req.AbtExport,
		POA:           req.POA,
		Status:        model.SubmissionStatus(req.Status),
		AutoCalculate: req.AutoCalculate,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, submission)
}

type updateSubmissionRequest struct {
	Site      *string  `json:"site"`
	Date      *string  `json:"date"`
	InvGen    *float64 `json:"invGen"`
	AbtExport *float64 `json:"abtExport"`
	POA       *float64 `json:"poa"`
	Status    *string  `json:"status"`
	Action    string   `json:"action"`
}

func (h *Handler) updateSubmission(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return
	}

	var req updateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var action service.Action
	if req.Action != "" {
		action, err = service.ParseAction(req.Action)
		if err != nil {
			h.handleError(c, err)
			return
		}
	} else if req.Status != nil {
		// A status value without a workflow action never matches the
		// transition rules.
		c.JSON(http.StatusForbidden, gin.H{"error": "status changes require an action"})
		return
	}

	submission, err := h.submissions.ApplyTransition(c.Request.Context(), id, principal, action, service.FieldEdits{
		Site:      req.Site,
		Date:      req.Date,
		InvGen:    req.InvGen,
		AbtExport: req.AbtExport,
		POA:       req.POA,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, submission)
}

type bulkCreateRequest struct {
	Submissions []createSubmissionRequest `json:"submissions" binding:"required"`
}

func (h *Handler) bulkCreate(c *gin.Context) {
	var req bulkCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inputs := make([]service.CreateInput, 0, len(req.Submissions))
	for _, row := range req.Submissions {
		inputs = append(inputs, service.CreateInput{
			Site:          row.Site,
			Date:          row.Date,
			InvGen:        row.InvGen,
			AbtExport:     row.AbtExport,
			POA:           row.POA,
			Status:        model.SubmissionStatus(row.Status),
			AutoCalculate: row.AutoCalculate,
		})
	}

	count, err := h.submissions.BulkCreate(c.Request.Context(), inputs)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"count": count})
}

func (h *Handler) upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file uploaded"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open uploaded file"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded file"})
		return
	}

	autoCalculate := true
	if raw := c.PostForm("autoCalculate"); raw != "" {
		autoCalculate = raw == "true"
	}

	rows, err := h.parser.Parse(content)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no valid records found in file"})
		return
	}

	inputs := make([]service.CreateInput, 0, len(rows))
	for _, row := range rows {
		poa := row.POA
		inputs = append(inputs, service.CreateInput{
			Site:          row.Site,
			Date:          row.Date,
			InvGen:        row.InvGen,
			AbtExport:     row.AbtExport,
			POA:           &poa,
			Status:        model.SubmissionStatus(row.Status),
			AutoCalculate: autoCalculate,
		})
	}

	count, err := h.submissions.BulkCreate(c.Request.Context(), inputs)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"count": count, "autoCalculated": autoCalculate})
}

type recalculateRequest struct {
	SubmissionIDs []string `json:"submissionIds" binding:"required"`
}

func (h *Handler) recalculateAll(c *gin.Context) {
	var req recalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids := make([]uuid.UUID, 0, len(req.SubmissionIDs))
	for _, raw := range req.SubmissionIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id: " + raw})
			return
		}
		ids = append(ids, id)
	}

	results, err := h.submissions.Recalculate(c.Request.Context(), ids)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(results), "results": results})
}

type syncInverterRequest struct {
	Site string `json:"site"`
}

func (h *Handler) syncInverter(c *gin.Context) {
	var req syncInverterRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.submissions.SyncFromSource(c.Request.Context(), req.Site)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) export(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	query := listQueryFromRequest(c)
	query.Limit = 10000
	result, err := h.submissions.List(c.Request.Context(), principal, query)
	if err != nil {
		h.handleError(c, err)
		return
	}

	switch c.DefaultQuery("format", "xlsx") {
	case "pdf":
		content, err := h.pdf.Generate(result.Submissions, time.Now())
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="submissions.pdf"`)
		c.Data(http.StatusOK, "application/pdf", content)
	case "xlsx":
		content, err := h.excel.Generate(result.Submissions)
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="submissions.xlsx"`)
		c.Data(http.StatusOK, xlsxContentType, content)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid format"})
	}
}

func (h *Handler) deleteSubmission(c *gin.Context) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission id"})
		return
	}

	if err := h.submissions.Delete(c.Request.Context(), id); err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "submission deleted"})
}

func (h *Handler) cleanup(c *gin.Context) {
	deleted, err := h.submissions.Cleanup(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deletedCount": deleted})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied), errors.Is(err, service.ErrLocked):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func listQueryFromRequest(c *gin.Context) service.ListQuery {
	return service.ListQuery{
		Site:      c.Query("site"),
		Status:    c.Query("status"),
		Month:     queryInt(c, "month"),
		Year:      queryInt(c, "year"),
		StartDate: c.Query("startDate"),
		EndDate:   c.Query("endDate"),
		Page:      queryInt(c, "page"),
		Limit:     queryInt(c, "limit"),
	}
}

func queryInt(c *gin.Context, key string) int {
	raw := c.Query(key)
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return value
}

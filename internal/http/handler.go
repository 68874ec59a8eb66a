package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"echallan-service/internal/compliance"
	"echallan-service/internal/config"
	"echallan-service/internal/domain/anpr"
	"echallan-service/internal/domain/challan"
	"echallan-service/internal/events"
	"echallan-service/internal/media"
	"echallan-service/internal/notify"
	"echallan-service/internal/service"
)

// VideoOpener turns an uploaded video file into a frame source.
type VideoOpener func(ctx context.Context, path string) (media.Source, error)

type Deps struct {
	Issuer    *service.Issuer
	Scanner   *service.Scanner
	Inspector *service.Inspector
	Captures  *service.Captures
	Hub       *events.Hub
	Frames    *events.FrameBuffer
	OpenVideo VideoOpener
}

type Handler struct {
	issuer    *service.Issuer
	scanner   *service.Scanner
	inspector *service.Inspector
	captures  *service.Captures
	hub       *events.Hub
	frames    *events.FrameBuffer
	openVideo VideoOpener
	config    *config.Config
	log       zerolog.Logger
}

func NewHandler(
	deps Deps,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	openVideo := deps.OpenVideo
	if openVideo == nil {
		ffmpegPath := cfg.Scan.FFmpegPath
		openVideo = func(ctx context.Context, path string) (media.Source, error) {
			return media.OpenFFmpeg(ctx, path, media.WithBinary(ffmpegPath))
		}
	}
	return &Handler{
		issuer:    deps.Issuer,
		scanner:   deps.Scanner,
		inspector: deps.Inspector,
		captures:  deps.Captures,
		hub:       deps.Hub,
		frames:    deps.Frames,
		openVideo: openVideo,
		config:    cfg,
		log:       log,
	}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/video_feed", h.videoFeed)

	api := r.Group("/api")
	{
		api.GET("/vehicles/:plate", h.getVehicle)
		api.GET("/vehicles/:plate/challans", h.listPendingForPlate)
		api.POST("/upload_scan", h.uploadScan)

		api.GET("/challans", h.recentChallans)
		api.POST("/challans", h.createManualChallan)
		api.GET("/challans/:id", h.getChallan)
		api.POST("/challans/:id/pay", h.payChallan)
		api.GET("/challans/:id/document", h.downloadChallan)
		api.POST("/challans/:id/notify", h.resendNotice)

		api.GET("/dashboard/stats", h.dashboardStats)
		api.GET("/captures/recent", h.recentCaptures)
		api.GET("/live/events", h.liveEvents)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) getVehicle(c *gin.Context) {
	report, found := h.inspector.Inspect(c.Param("plate"))
	if !found {
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "data": report})
}

func (h *Handler) listPendingForPlate(c *gin.Context) {
	list, err := h.issuer.PendingForPlate(c.Request.Context(), c.Param("plate"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(list))
}

type manualChallanRequest struct {
	Plate        string          `json:"plate_number" binding:"required"`
	OwnerName    string          `json:"owner_name"`
	Violation    string          `json:"violation"`
	Amount       decimal.Decimal `json:"amount"`
	Location     string          `json:"location"`
	OfficialID   string          `json:"official_id"`
	OfficialName string          `json:"official_name"`
}

func (h *Handler) createManualChallan(c *gin.Context) {
	var req manualChallanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	official := challan.Official{ID: req.OfficialID, Name: req.OfficialName}
	if official.ID == "" {
		official.ID = "SYSTEM"
	}
	if official.Name == "" {
		official.Name = "Manual Entry"
	}

	created, err := h.issuer.IssueManual(c.Request.Context(), service.ManualRequest{
		Plate:     req.Plate,
		OwnerName: req.OwnerName,
		Violation: req.Violation,
		Amount:    req.Amount,
		Location:  req.Location,
		Official:  official,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(created))
}

func (h *Handler) getChallan(c *gin.Context) {
	found, err := h.issuer.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(found))
}

func (h *Handler) payChallan(c *gin.Context) {
	paid, err := h.issuer.MarkPaid(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(paid))
}

func (h *Handler) downloadChallan(c *gin.Context) {
	id := c.Param("id")
	doc, err := h.issuer.Document(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", notify.DocumentName(id)))
	c.Data(http.StatusOK, "application/pdf", doc)
}

type resendRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) resendNotice(c *gin.Context) {
	var req resendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}
	err := h.issuer.Resend(c.Request.Context(), service.ResendRequest{ChallanID: c.Param("id"), Email: req.Email})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

func (h *Handler) dashboardStats(c *gin.Context) {
	stats, err := h.issuer.Stats(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(stats))
}

func (h *Handler) recentChallans(c *gin.Context) {
	limit := 10
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	list, err := h.issuer.Recent(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(list))
}

func (h *Handler) recentCaptures(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	list, err := h.captures.Recent(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(list))
}

type scanResponse struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message,omitempty"`
	Plate      string             `json:"plate,omitempty"`
	Confidence float64            `json:"confidence,omitempty"`
	ChallanID  *string            `json:"challan_id"`
	Violations []string           `json:"violations"`
	TotalFine  decimal.Decimal    `json:"total_fine"`
	ImageURL   string             `json:"image_url,omitempty"`
	Report     *compliance.Report `json:"report,omitempty"`
	Detections []anpr.PlateResult `json:"all_detections"`
}

func newScanResponse(out *service.ScanOutcome) scanResponse {
	resp := scanResponse{
		Violations: []string{},
		Detections: out.Detections,
	}
	if resp.Detections == nil {
		resp.Detections = []anpr.PlateResult{}
	}
	if out.Primary == nil {
		resp.Message = "Plate not detected clearly"
		return resp
	}
	resp.Success = true
	resp.Plate = out.Primary.Plate
	resp.Confidence = out.Primary.Confidence
	resp.ImageURL = string(out.Proof)
	resp.Report = out.Report
	if out.Report != nil {
		resp.Violations = out.Report.Violations
		resp.TotalFine = out.Report.TotalFine
	}
	if out.Challan != nil {
		id := out.Challan.ID
		resp.ChallanID = &id
	}
	return resp
}

func (h *Handler) uploadScan(c *gin.Context) {
	if limit := h.config.HTTP.MaxUploadMB; limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit<<20)
	}
	file, err := c.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse("file is required"))
		return
	}
	opts := service.ScanOptions{
		Official: challan.Official{
			ID:   c.DefaultPostForm("official_id", h.config.Scan.OfficialID),
			Name: c.DefaultPostForm("official_name", h.config.Scan.OfficialName),
		},
		Location: h.config.Scan.Location,
	}

	upload, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("cannot read upload"))
		return
	}
	defer upload.Close()

	ctx := c.Request.Context()
	var out *service.ScanOutcome
	switch kind := strings.ToLower(c.DefaultPostForm("type", "image")); kind {
	case "image":
		img, err := imaging.Decode(upload, imaging.AutoOrientation(true))
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("unsupported image"))
			return
		}
		out, err = h.scanner.ScanImage(ctx, img, opts)
		if err != nil {
			h.handleError(c, err)
			return
		}
	case "video":
		out, err = h.scanVideo(ctx, upload, filepath.Ext(file.Filename), opts)
		if err != nil {
			h.handleError(c, err)
			return
		}
	default:
		c.JSON(http.StatusBadRequest, errorResponse(fmt.Sprintf("unknown scan type %q", kind)))
		return
	}

	h.log.Info().
		Str("file", file.Filename).
		Int("frames", out.Frames).
		Int("plates", len(out.Detections)).
		Msg("upload scanned")
	c.JSON(http.StatusOK, newScanResponse(out))
}

func (h *Handler) scanVideo(ctx context.Context, upload io.Reader, ext string, opts service.ScanOptions) (*service.ScanOutcome, error) {
	tmp, err := os.CreateTemp("", "echallan-scan-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, upload); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("%w: read upload: %v", service.ErrInvalidInput, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	src, err := h.openVideo(ctx, tmp.Name())
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer src.Close()
	return h.scanner.Scan(ctx, src, opts)
}

func (h *Handler) liveEvents(c *gin.Context) {
	if h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("live events are disabled"))
		return
	}
	ch, cancel := h.hub.Subscribe()
	defer cancel()

	keepAlive := time.NewTicker(15 * time.Second)
	defer keepAlive.Stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("plate_detected", ev)
			return true
		case <-keepAlive.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		}
	})
}

func (h *Handler) videoFeed(c *gin.Context) {
	if h.frames == nil {
		c.JSON(http.StatusServiceUnavailable, errorResponse("camera is disabled"))
		return
	}
	c.Header("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	var version uint64
	c.Stream(func(w io.Writer) bool {
		data, v, err := h.frames.Next(ctx, version)
		if err != nil {
			return false
		}
		version = v
		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(data)); err != nil {
			return false
		}
		if _, err := w.Write(data); err != nil {
			return false
		}
		_, err = io.WriteString(w, "\r\n")
		return err == nil
	})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.As(err, &maxBytes):
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse("upload too large"))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}

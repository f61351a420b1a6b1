package controllers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/raptaro/meditrakk-sub001/internal/common/middlewares"
	"github.com/raptaro/meditrakk-sub001/internal/queue/models"
	"github.com/raptaro/meditrakk-sub001/internal/queue/services"
)

type QueueController struct {
	QueueService *services.QueueService
	Logger       zerolog.Logger
}

func NewQueueController(service *services.QueueService, logger zerolog.Logger) *QueueController {
	return &QueueController{QueueService: service, Logger: logger}
}

// EnqueueRequest adalah body untuk mendaftarkan pasien walk-in ke antrian.
type EnqueueRequest struct {
	Lane string `json:"lane"`
	models.PatientSnapshot
}

func respond(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, map[string]interface{}{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

// queueErrorStatus memetakan error dari service ke HTTP status.
func queueErrorStatus(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidLane), errors.Is(err, models.ErrInvalidPatient):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrLaneEmpty):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateID),
		errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrLaneBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError hides internal failures from the client and logs them with
// the request id instead.
func (qc *QueueController) respondError(c echo.Context, err error) error {
	status := queueErrorStatus(err)
	if status == http.StatusInternalServerError {
		rid, _ := c.Get("request_id").(string)
		qc.Logger.Error().
			Err(err).
			Str("request_id", rid).
			Str("method", c.Request().Method).
			Str("uri", c.Request().RequestURI).
			Msg("queue request failed")
		return respond(c, status, "Internal server error", nil)
	}
	return respond(c, status, err.Error(), nil)
}

// withStaff carries the operator id from the JWT into the service context.
func withStaff(c echo.Context) echo.Context {
	if claims := middlewares.ClaimsFrom(c); claims != nil {
		req := c.Request()
		c.SetRequest(req.WithContext(services.WithStaffID(req.Context(), claims.StaffID)))
	}
	return c
}

func (qc *QueueController) EnqueueHandler(c echo.Context) error {
	var req EnqueueRequest
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, "Invalid request body", nil)
	}
	lane, err := models.ParseLane(req.Lane)
	if err != nil {
		return qc.respondError(c, err)
	}

	c = withStaff(c)
	entry, err := qc.QueueService.Enqueue(c.Request().Context(), lane, req.PatientSnapshot)
	if err != nil {
		return qc.respondError(c, err)
	}
	return respond(c, http.StatusCreated, "Pasien berhasil ditambahkan ke antrian", entry)
}

func (qc *QueueController) GetEntryHandler(c echo.Context) error {
	entry, err := qc.QueueService.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return qc.respondError(c, err)
	}
	return respond(c, http.StatusOK, "Antrian ditemukan", entry)
}

func (qc *QueueController) AcceptHandler(c echo.Context) error {
	c = withStaff(c)
	entry, err := qc.QueueService.Accept(c.Request().Context(), c.Param("id"))
	if err != nil {
		return qc.respondError(c, err)
	}
	return respond(c, http.StatusOK, "Pasien berhasil dimasukkan", entry)
}

func (qc *QueueController) AcceptNextHandler(c echo.Context) error {
	lane, err := models.ParseLane(c.Param("lane"))
	if err != nil {
		return qc.respondError(c, err)
	}
	c = withStaff(c)
	entry, err := qc.QueueService.AcceptNext(c.Request().Context(), lane)
	if err != nil {
		return qc.respondError(c, err)
	}
	return respond(c, http.StatusOK, "Pasien berhasil dimasukkan", entry)
}

func (qc *QueueController) CompleteHandler(c echo.Context) error {
	c = withStaff(c)
	entry, err := qc.QueueService.Complete(c.Request().Context(), c.Param("id"))
	if err != nil {
		return qc.respondError(c, err)
	}
	return respond(c, http.StatusOK, "Pemeriksaan selesai", entry)
}

func (qc *QueueController) CancelHandler(c echo.Context) error {
	c = withStaff(c)
	entry, err := qc.QueueService.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return qc.respondError(c, err)
	}
	return respond(c, http.StatusOK, "Antrian dibatalkan", entry)
}

// ListLanesHandler returns the operator view of both lanes.
func (qc *QueueController) ListLanesHandler(c echo.Context) error {
	snapshot, err := qc.QueueService.OperatorSnapshot(c.Request().Context())
	if err != nil {
		return qc.respondError(c, err)
	}
	return respond(c, http.StatusOK, "Data antrian berhasil diambil", snapshot)
}

func (qc *QueueController) GetLaneHandler(c echo.Context) error {
	lane, err := models.ParseLane(c.Param("lane"))
	if err != nil {
		return qc.respondError(c, err)
	}
	view, err := qc.QueueService.LaneView(c.Request().Context(), lane)
	if err != nil {
		return qc.respondError(c, err)
	}
	return respond(c, http.StatusOK, "Data antrian berhasil diambil", view)
}

// DisplayHandler serves the public waiting-room view. It is also the poll
// fallback for screens whose websocket dropped.
func (qc *QueueController) DisplayHandler(c echo.Context) error {
	snapshot, err := qc.QueueService.DisplaySnapshot(c.Request().Context())
	if err != nil {
		return qc.respondError(c, err)
	}
	return respond(c, http.StatusOK, "Data antrian berhasil diambil", snapshot)
}

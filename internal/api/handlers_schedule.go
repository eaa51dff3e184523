// handlers_schedule.go - Schedule rendering handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/schedule"
)

// ScheduleHandlerImpl implements the ScheduleHandler interface
type ScheduleHandlerImpl struct {
	sessions SessionManager
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(sessions SessionManager) ScheduleHandler {
	return &ScheduleHandlerImpl{sessions: sessions}
}

// ScheduleResponse is the rendered schedule of a session.
type ScheduleResponse struct {
	Generation        uint64                `json:"generation" msgpack:"generation"`
	ReferenceTime     string                `json:"referenceTime" msgpack:"referenceTime"`
	ReportedReference string                `json:"reportedReference,omitempty" msgpack:"reportedReference,omitempty"`
	Display           models.DisplayOptions `json:"display" msgpack:"display"`
	Entries           []models.DisplayEntry `json:"entries" msgpack:"entries"`
}

// HandleGetSchedule returns the ordered schedule. Query parameters "invasion" and
// "seconds" override the session's display options for this response only.
func (h *ScheduleHandlerImpl) HandleGetSchedule(c echo.Context) error {
	resp, err := h.render(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// HandleGetScheduleMsgpack returns the schedule in MessagePack format
func (h *ScheduleHandlerImpl) HandleGetScheduleMsgpack(c echo.Context) error {
	resp, err := h.render(c)
	if err != nil {
		return err
	}
	data, err := msgpack.Marshal(resp)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleExportSchedule returns the schedule as "<time> <name>" lines
func (h *ScheduleHandlerImpl) HandleExportSchedule(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	sched, opts, err := h.load(c, id)
	if err != nil {
		return err
	}
	return c.String(http.StatusOK, schedule.ExportText(sched, opts))
}

// HandleSetDisplay stores the session's display options
func (h *ScheduleHandlerImpl) HandleSetDisplay(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return err
	}
	var opts models.DisplayOptions
	if err := c.Bind(&opts); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	view, err := h.sessions.SetDisplay(id, opts)
	if err != nil {
		return FromError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *ScheduleHandlerImpl) render(c echo.Context) (*ScheduleResponse, error) {
	id, err := sessionID(c)
	if err != nil {
		return nil, err
	}
	sched, opts, err := h.load(c, id)
	if err != nil {
		return nil, err
	}
	resp := &ScheduleResponse{
		Display: opts,
		Entries: schedule.Render(sched, opts),
	}
	if sched != nil {
		resp.Generation = sched.Generation
		resp.ReferenceTime = sched.ReferenceTime
		resp.ReportedReference = sched.ReportedReference
	}
	return resp, nil
}

func (h *ScheduleHandlerImpl) load(c echo.Context, id string) (*models.Schedule, models.DisplayOptions, error) {
	opts, err := h.sessions.Display(id)
	if err != nil {
		return nil, opts, FromError(err)
	}
	if opts, err = displayOverrides(c, opts); err != nil {
		return nil, opts, err
	}
	sched, err := h.sessions.Schedule(id)
	if err != nil {
		return nil, opts, FromError(err)
	}
	return sched, opts, nil
}

func displayOverrides(c echo.Context, opts models.DisplayOptions) (models.DisplayOptions, error) {
	if v := c.QueryParam("invasion"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, NewValidationError("invasion")
		}
		opts.Invasion = b
	}
	if v := c.QueryParam("seconds"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, NewValidationError("seconds")
		}
		opts.ShowSeconds = b
	}
	return opts, nil
}

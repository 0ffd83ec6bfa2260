package intake

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/labstack/echo/v4"

	"github.com/trialdesk/trialdesk/internal/platform/auth"
	"github.com/trialdesk/trialdesk/pkg/oid"
	"github.com/trialdesk/trialdesk/pkg/pagination"
	"github.com/trialdesk/trialdesk/pkg/respond"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the intake surfaces. Reads require a session;
// mutations require admin.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/excel-files", h.ListFiles)
	api.GET("/excel-files/:id", h.GetFile)
	api.GET("/excel-files/:id/rows", h.ListRows)
	api.GET("/form-submissions", h.ListSubmissions)
	api.GET("/form-submissions/:id", h.GetSubmission)
	api.GET("/stages", h.ListStages)
	api.GET("/stages/:id", h.GetStage)
	api.GET("/migration-logs", h.ListLogs)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/excel-files", h.CreateFile)
	admin.PUT("/excel-files/:id", h.UpdateFile)
	admin.PATCH("/excel-files/:id/permanent", h.MarkPermanent)
	admin.DELETE("/excel-files/:id", h.DeleteFile)
	admin.POST("/excel-files/:id/rows", h.CreateRow)
	admin.PUT("/excel-rows/:id", h.UpdateRow)
	admin.PATCH("/excel-rows/:id/sent", h.MarkRowSent)
	admin.DELETE("/excel-rows/:id", h.DeleteRow)
	admin.POST("/form-submissions", h.CreateSubmission)
	admin.DELETE("/form-submissions/:id", h.DeleteSubmission)
	admin.POST("/stages", h.CreateStage)
	admin.PUT("/stages/:id", h.UpdateStage)
	admin.DELETE("/stages/:id", h.DeleteStage)
	admin.POST("/migration-logs", h.AppendLog)
}

// -- Excel Files --

func (h *Handler) ListFiles(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := FileFilter{Search: c.QueryParam("search")}
	if v := c.QueryParam("temporary"); v != "" {
		tmp, err := strconv.ParseBool(v)
		if err != nil {
			return respond.BadRequest(c, "invalid temporary: expected true or false")
		}
		f.Temporary = &tmp
	}
	items, total, err := h.svc.ListFiles(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewEnvelope(items, len(items), total, pg))
}

func (h *Handler) GetFile(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	f, err := h.svc.GetFile(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, f)
}

func (h *Handler) CreateFile(c echo.Context) error {
	var in ExcelFileInput
	if err := c.Bind(&in); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	f, err := h.svc.CreateFile(c.Request().Context(), in)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.Created(c, f)
}

func (h *Handler) UpdateFile(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	var in ExcelFileInput
	if err := c.Bind(&in); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	f, err := h.svc.UpdateFile(c.Request().Context(), id, in)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, f)
}

func (h *Handler) MarkPermanent(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	f, err := h.svc.MarkPermanent(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, f)
}

func (h *Handler) DeleteFile(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	if err := h.svc.DeleteFile(c.Request().Context(), id); err != nil {
		return writeErr(c, err)
	}
	return respond.Message(c, http.StatusOK, "excel file deleted")
}

// -- Excel Rows --

func (h *Handler) ListRows(c echo.Context) error {
	fileID, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListRows(c.Request().Context(), fileID, pg.Limit, pg.Offset())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewEnvelope(items, len(items), total, pg))
}

func (h *Handler) CreateRow(c echo.Context) error {
	fileID, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	var in ExcelRowInput
	if err := c.Bind(&in); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	row, err := h.svc.CreateRow(c.Request().Context(), fileID, in)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.Created(c, row)
}

func (h *Handler) UpdateRow(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	var in ExcelRowInput
	if err := c.Bind(&in); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	row, err := h.svc.UpdateRow(c.Request().Context(), id, in)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, row)
}

func (h *Handler) MarkRowSent(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	var body struct {
		ClinicalRecordID *string `json:"clinicalRecordId"`
	}
	if err := c.Bind(&body); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	var cid *oid.ID
	if body.ClinicalRecordID != nil {
		parsed, err := oid.Parse(*body.ClinicalRecordID)
		if err != nil {
			return respond.BadRequest(c, "invalid clinicalRecordId")
		}
		cid = &parsed
	}
	row, err := h.svc.MarkRowSent(c.Request().Context(), id, cid)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, row)
}

func (h *Handler) DeleteRow(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	if err := h.svc.DeleteRow(c.Request().Context(), id); err != nil {
		return writeErr(c, err)
	}
	return respond.Message(c, http.StatusOK, "excel row deleted")
}

// -- Form Submissions --

func (h *Handler) ListSubmissions(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListSubmissions(c.Request().Context(), pg.Limit, pg.Offset())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewEnvelope(items, len(items), total, pg))
}

func (h *Handler) GetSubmission(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	sub, err := h.svc.GetSubmission(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, sub)
}

func (h *Handler) CreateSubmission(c echo.Context) error {
	var body struct {
		FormName string                 `json:"formName"`
		Payload  map[string]interface{} `json:"payload"`
	}
	if err := c.Bind(&body); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	sub, err := h.svc.CreateSubmission(c.Request().Context(), body.FormName, body.Payload)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.Created(c, sub)
}

func (h *Handler) DeleteSubmission(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	if err := h.svc.DeleteSubmission(c.Request().Context(), id); err != nil {
		return writeErr(c, err)
	}
	return respond.Message(c, http.StatusOK, "form submission deleted")
}

// -- Stages --

func (h *Handler) ListStages(c echo.Context) error {
	items, err := h.svc.ListStages(c.Request().Context())
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, items)
}

func (h *Handler) GetStage(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	st, err := h.svc.GetStage(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, st)
}

func (h *Handler) CreateStage(c echo.Context) error {
	var in StageInput
	if err := c.Bind(&in); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	st, err := h.svc.CreateStage(c.Request().Context(), in)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.Created(c, st)
}

func (h *Handler) UpdateStage(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	var in StageInput
	if err := c.Bind(&in); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	st, err := h.svc.UpdateStage(c.Request().Context(), id, in)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, st)
}

func (h *Handler) DeleteStage(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	if err := h.svc.DeleteStage(c.Request().Context(), id); err != nil {
		return writeErr(c, err)
	}
	return respond.Message(c, http.StatusOK, "stage deleted")
}

// -- Migration Logs --

func (h *Handler) ListLogs(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListLogs(c.Request().Context(), pg.Limit, pg.Offset())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewEnvelope(items, len(items), total, pg))
}

func (h *Handler) AppendLog(c echo.Context) error {
	var body struct {
		Page   string  `json:"page"`
		Action string  `json:"action"`
		Detail *string `json:"detail"`
	}
	if err := c.Bind(&body); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	l, err := h.svc.AppendLog(c.Request().Context(), body.Page, body.Action, body.Detail)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.Created(c, l)
}

func writeErr(c echo.Context, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, ErrInvalid):
		return respond.BadRequest(c, err.Error())
	case errors.Is(err, pgx.ErrNoRows):
		return respond.NotFound(c, "record not found")
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return respond.BadRequest(c, "record already exists")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

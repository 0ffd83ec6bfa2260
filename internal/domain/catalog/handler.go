package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"time"

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

// RegisterRoutes mounts the classifier surface under base, e.g.
// "/study-designs". Reads require a session; mutations require admin.
func (h *Handler) RegisterRoutes(api *echo.Group, base string) {
	api.GET(base, h.List)
	api.GET(base+"/stats", h.Stats)
	api.GET(base+"/available-studies", h.AvailableStudies)
	api.GET(base+"/:id", h.Get)
	api.GET(base+"/:id/studies", h.Members)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST(base, h.Create)
	admin.PUT(base+"/:id", h.Update)
	admin.PATCH(base+"/:id/toggle-status", h.ToggleStatus)
	admin.DELETE(base+"/:id", h.Delete)
	admin.POST(base+"/:id/studies/bulk", h.BulkAdd)
	admin.POST(base+"/:id/studies/:studyId", h.AddMember)
	admin.DELETE(base+"/:id/studies/:studyId", h.RemoveMember)
	admin.POST(base+"/sync-relationships", h.SyncRelationships)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Search:  c.QueryParam("search"),
		SortBy:  c.QueryParam("sortBy"),
		SortDir: c.QueryParam("sortOrder"),
	}
	if v := c.QueryParam("isActive"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return respond.BadRequest(c, "invalid isActive: expected true or false")
		}
		f.Active = &active
	}
	if v := c.QueryParam("startDate"); v != "" {
		t, err := parseDateParam(v)
		if err != nil {
			return respond.BadRequest(c, "invalid startDate: expected RFC 3339 timestamp or YYYY-MM-DD")
		}
		f.CreatedFrom = &t
	}
	if v := c.QueryParam("endDate"); v != "" {
		t, err := parseDateParam(v)
		if err != nil {
			return respond.BadRequest(c, "invalid endDate: expected RFC 3339 timestamp or YYYY-MM-DD")
		}
		f.CreatedTo = &t
	}

	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset())
	if err != nil {
		return h.writeErr(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewEnvelope(items, len(items), total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	cl, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return h.writeErr(c, err)
	}
	return respond.OK(c, cl)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	cl, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return h.writeErr(c, err)
	}
	return respond.Created(c, cl)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	cl, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return h.writeErr(c, err)
	}
	return respond.OK(c, cl)
}

func (h *Handler) ToggleStatus(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	cl, err := h.svc.ToggleStatus(c.Request().Context(), id)
	if err != nil {
		return h.writeErr(c, err)
	}
	return respond.OK(c, cl)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	if _, err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return h.writeErr(c, err)
	}
	return respond.Message(c, http.StatusOK, h.svc.Kind().Label()+" deleted")
}

func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return h.writeErr(c, err)
	}
	return respond.OK(c, st)
}

func (h *Handler) Members(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	members, err := h.svc.Members(c.Request().Context(), id)
	if err != nil {
		return h.writeErr(c, err)
	}
	return respond.OK(c, members)
}

func (h *Handler) AddMember(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	studyID, err := oid.Parse(c.Param("studyId"))
	if err != nil {
		return respond.BadRequest(c, "invalid study id")
	}
	cl, err := h.svc.AddMember(c.Request().Context(), id, studyID)
	if err != nil {
		return h.writeErr(c, err)
	}
	return respond.OK(c, cl)
}

func (h *Handler) RemoveMember(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	studyID, err := oid.Parse(c.Param("studyId"))
	if err != nil {
		return respond.BadRequest(c, "invalid study id")
	}
	cl, err := h.svc.RemoveMember(c.Request().Context(), id, studyID)
	if err != nil {
		return h.writeErr(c, err)
	}
	return respond.OK(c, cl)
}

func (h *Handler) BulkAdd(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	var body struct {
		Studies []string `json:"studies"`
	}
	if err := c.Bind(&body); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	cl, added, err := h.svc.BulkAdd(c.Request().Context(), id, body.Studies)
	if err != nil {
		return h.writeErr(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":    true,
		"addedCount": added,
		"data":       cl,
	})
}

func (h *Handler) AvailableStudies(c echo.Context) error {
	items, err := h.svc.AvailableStudies(c.Request().Context())
	if err != nil {
		return h.writeErr(c, err)
	}
	return respond.OK(c, items)
}

func (h *Handler) SyncRelationships(c echo.Context) error {
	report, err := h.svc.SyncRelationships(c.Request().Context())
	if err != nil {
		return h.writeErr(c, err)
	}
	return respond.OK(c, report)
}

func parseDateParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func (h *Handler) writeErr(c echo.Context, err error) error {
	var missing *MissingStudiesError
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, ErrInvalid):
		return respond.BadRequest(c, err.Error())
	case errors.As(err, &missing):
		ids := make([]string, len(missing.IDs))
		for i, id := range missing.IDs {
			ids[i] = string(id)
		}
		return respond.Error(c, http.StatusNotFound, "studies not found",
			map[string]interface{}{"missing": ids})
	case errors.Is(err, ErrNotMember):
		return respond.NotFound(c, err.Error())
	case errors.Is(err, pgx.ErrNoRows):
		return respond.NotFound(c, h.svc.Kind().Label()+" not found")
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return respond.BadRequest(c, h.svc.Kind().Label()+" already exists")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

package study

import (
	"errors"
	"net/http"
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

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/studies", h.List)
	api.GET("/studies/stats", h.Stats)
	api.GET("/studies/:id", h.Get)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/studies", h.Create)
	admin.PUT("/studies/:id", h.Update)
	admin.DELETE("/studies/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Search:  c.QueryParam("search"),
		SortBy:  c.QueryParam("sortBy"),
		SortDir: c.QueryParam("sortOrder"),
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
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewEnvelope(items, len(items), total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid study id")
	}
	st, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, st)
}

func (h *Handler) Create(c echo.Context) error {
	var in CreateInput
	if err := c.Bind(&in); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	st, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.Created(c, st)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid study id")
	}
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	st, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, st)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid study id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return writeErr(c, err)
	}
	return respond.Message(c, http.StatusOK, "study deleted")
}

func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, st)
}

// parseDateParam accepts either an RFC 3339 timestamp or a bare date.
func parseDateParam(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

// writeErr maps service and repository errors onto the response taxonomy:
// validation 400, absent document 404, unique violation 400, anything else
// falls through to the generic 500 handler.
func writeErr(c echo.Context, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, ErrInvalid):
		return respond.BadRequest(c, err.Error())
	case errors.Is(err, pgx.ErrNoRows):
		return respond.NotFound(c, "study not found")
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return respond.BadRequest(c, "duplicate value for a unique field")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

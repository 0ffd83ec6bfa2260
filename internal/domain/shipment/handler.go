package shipment

import (
	"errors"
	"net/http"

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

// RegisterRoutes mounts the acknowledgment surface. Reads require a session;
// mutations require admin.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/shipment-acknowledgments", h.List)
	api.GET("/shipment-acknowledgments/stats", h.Stats)
	api.GET("/shipment-acknowledgments/:id", h.Get)

	admin := api.Group("", auth.RequireRole("admin"))
	admin.POST("/shipment-acknowledgments", h.Create)
	admin.PUT("/shipment-acknowledgments/:id", h.Update)
	admin.DELETE("/shipment-acknowledgments/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{ShipmentID: c.QueryParam("shipmentId")}
	if v := c.QueryParam("studyId"); v != "" {
		id, err := oid.Parse(v)
		if err != nil {
			return respond.BadRequest(c, "invalid studyId")
		}
		f.StudyID = &id
	}
	if v := c.QueryParam("status"); v != "" {
		status := Status(v)
		if !status.Valid() {
			return respond.BadRequest(c, "unknown status")
		}
		f.Status = &status
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
		return respond.BadRequest(c, "invalid id")
	}
	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, a)
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	a, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.Created(c, a)
}

func (h *Handler) Update(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	var in Input
	if err := c.Bind(&in); err != nil {
		return respond.BadRequest(c, err.Error())
	}
	a, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, a)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := oid.Parse(c.Param("id"))
	if err != nil {
		return respond.BadRequest(c, "invalid id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return writeErr(c, err)
	}
	return respond.Message(c, http.StatusOK, "acknowledgment deleted")
}

func (h *Handler) Stats(c echo.Context) error {
	st, err := h.svc.Stats(c.Request().Context())
	if err != nil {
		return writeErr(c, err)
	}
	return respond.OK(c, st)
}

func writeErr(c echo.Context, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, ErrInvalid):
		return respond.BadRequest(c, err.Error())
	case errors.Is(err, ErrStudyNotFound):
		return respond.NotFound(c, err.Error())
	case errors.Is(err, pgx.ErrNoRows):
		return respond.NotFound(c, "acknowledgment not found")
	case errors.As(err, &pgErr) && pgErr.Code == "23505":
		return respond.BadRequest(c, "acknowledgment already exists")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
}

package httpapi

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/roadmetrics/defect-analytics/internal/analytics"
	"github.com/roadmetrics/defect-analytics/internal/domain"
	"github.com/roadmetrics/defect-analytics/internal/pipeline"
)

// Handler holds the collaborators behind the REST routes. Handlers are thin:
// parse, delegate, map errors to status codes.
type Handler struct {
	store    domain.DefectStore
	ingestor *pipeline.Ingestor
	logger   *slog.Logger
}

// NewHandler creates the route handlers.
func NewHandler(store domain.DefectStore, ingestor *pipeline.Ingestor, logger *slog.Logger) *Handler {
	return &Handler{store: store, ingestor: ingestor, logger: logger}
}

// ListDefects returns stored defects, optionally narrowed by type, severity,
// a bounding box, a reported_at range, and skip/limit pagination.
func (h *Handler) ListDefects(c *fiber.Ctx) error {
	q := domain.FilterQuery{
		Skip:  c.QueryInt("skip", 0),
		Limit: c.QueryInt("limit", 100),
	}
	if q.Skip < 0 || q.Limit < 1 || q.Limit > 1000 {
		return fiber.NewError(fiber.StatusBadRequest, "skip must be >= 0 and limit in [1, 1000]")
	}

	var err error
	if q.Type, err = typeParam(c); err != nil {
		return err
	}
	if q.Severity, err = severityParam(c); err != nil {
		return err
	}
	if q.BBox, err = bboxParam(c); err != nil {
		return err
	}

	defects, err := h.store.FetchByFilter(c.Context(), q)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(fiber.Map{"count": len(defects), "defects": defects})
}

type createDefectRequest struct {
	DefectType string   `json:"defect_type"`
	Severity   string   `json:"severity"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Notes      *string  `json:"notes"`
	ReportedAt *string  `json:"reported_at"`
}

// CreateDefect accepts a manually reported defect. Unlike machine uploads
// there is no vehicle attribution; missing severity defaults to medium and a
// missing timestamp means "now".
func (h *Handler) CreateDefect(c *fiber.Ctx) error {
	var req createDefectRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.DefectType == "" || req.Latitude == nil || req.Longitude == nil {
		return fiber.NewError(fiber.StatusBadRequest, domain.ReasonMissingField.Message())
	}

	coord := domain.Coordinate{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if !coord.InRange() {
		return fiber.NewError(fiber.StatusBadRequest, domain.ReasonInvalidCoordinateRange.Message())
	}

	severity := domain.SeverityMedium
	if req.Severity != "" {
		parsed, ok := domain.ParseSeverity(req.Severity)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, domain.ReasonInvalidSeverity.Message())
		}
		severity = parsed
	}

	reportedAt := domain.Now().UTC()
	if req.ReportedAt != nil {
		parsed, ok := domain.ParseTimestamp(*req.ReportedAt)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, domain.ReasonInvalidTimestamp.Message())
		}
		reportedAt = parsed
	}

	defect, err := h.store.Insert(c.Context(), domain.Defect{
		Type:       domain.ParseDefectType(req.DefectType),
		Severity:   severity,
		Coordinate: coord,
		Notes:      req.Notes,
		ReportedAt: reportedAt,
	})
	if err != nil {
		return storeError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(defect)
}

// GetDefect returns one defect by ID.
func (h *Handler) GetDefect(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	defect, err := h.store.GetByID(c.Context(), id)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(defect)
}

type updateDefectRequest struct {
	DefectType *string `json:"defect_type"`
	Severity   *string `json:"severity"`
	Notes      *string `json:"notes"`
}

// UpdateDefect changes the mutable fields of an accepted defect. Coordinates
// and reported_at stay fixed after acceptance.
func (h *Handler) UpdateDefect(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}

	var req updateDefectRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var upd domain.DefectUpdate
	if req.DefectType != nil {
		t := domain.ParseDefectType(*req.DefectType)
		upd.Type = &t
	}
	if req.Severity != nil {
		parsed, ok := domain.ParseSeverity(*req.Severity)
		if !ok {
			return fiber.NewError(fiber.StatusBadRequest, domain.ReasonInvalidSeverity.Message())
		}
		upd.Severity = &parsed
	}
	upd.Notes = req.Notes

	defect, err := h.store.Update(c.Context(), id, upd)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(defect)
}

// DeleteDefect removes one defect by ID.
func (h *Handler) DeleteDefect(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.store.Delete(c.Context(), id); err != nil {
		return storeError(err)
	}
	return c.JSON(fiber.Map{"status": "deleted", "id": id})
}

// UploadDefect accepts a single machine-reported record and runs it through
// the same validation as bulk uploads.
func (h *Handler) UploadDefect(c *fiber.Ctx) error {
	var raw domain.RawRecord
	if err := c.BodyParser(&raw); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	out := domain.ValidateRecord(raw)
	if !out.Accepted() {
		return fiber.NewError(fiber.StatusBadRequest, out.Reason.Message())
	}

	defect, err := h.store.Insert(c.Context(), out.Defect)
	if err != nil {
		return storeError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(defect)
}

// BulkUpload ingests a JSON array of machine-reported records. A structurally
// broken payload fails with 400; per-record failures never fail the request —
// the result reports them alongside the accepted count.
func (h *Handler) BulkUpload(c *fiber.Ctx) error {
	raws, err := pipeline.DecodeBatch(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	result, err := h.ingestor.IngestBatch(c.Context(), raws)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(result)
}

// StatisticsSummary returns the rollup for the current calendar year, with
// monthly buckets.
func (h *Handler) StatisticsSummary(c *fiber.Ctx) error {
	w := analytics.YearWindow(domain.Now().UTC().Year())

	defects, err := h.store.FetchByFilter(c.Context(), domain.FilterQuery{
		Since: &w.Start,
		Until: &w.End,
		Limit: -1,
	})
	if err != nil {
		return storeError(err)
	}
	return c.JSON(analytics.Compute(defects, w))
}

// Density counts defects within a radius around a center point, grouped by
// type and severity.
func (h *Handler) Density(c *fiber.Ctx) error {
	center, err := centerParam(c)
	if err != nil {
		return err
	}
	radius := c.QueryFloat("radius", 500)

	filter, err := filterParams(c)
	if err != nil {
		return err
	}

	// Validate before touching the store so range errors stay 400s even
	// when the database is down.
	if radius <= 0 || radius > analytics.MaxRadiusMeters {
		return fiber.NewError(fiber.StatusBadRequest,
			"radius must be in (0, "+strconv.Itoa(analytics.MaxRadiusMeters)+"] meters")
	}

	candidates, err := h.store.FetchByRadius(c.Context(), center, radius)
	if err != nil {
		return storeError(err)
	}

	result, err := analytics.Density(candidates, center, radius, filter)
	if err != nil {
		return analyticsError(err)
	}
	return c.JSON(result)
}

// Hotspots returns the densest ~111m grid cells.
func (h *Handler) Hotspots(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	if limit < 1 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
	}
	filter, err := filterParams(c)
	if err != nil {
		return err
	}

	defects, err := h.store.FetchByFilter(c.Context(), domain.FilterQuery{Limit: -1})
	if err != nil {
		return storeError(err)
	}

	cells, err := analytics.Hotspots(defects, limit, filter)
	if err != nil {
		return analyticsError(err)
	}
	return c.JSON(fiber.Map{"count": len(cells), "hotspots": cells})
}

// Heatmap returns severity-weighted points for map rendering.
func (h *Handler) Heatmap(c *fiber.Ctx) error {
	filter, err := filterParams(c)
	if err != nil {
		return err
	}

	defects, err := h.store.FetchByFilter(c.Context(), domain.FilterQuery{Limit: -1})
	if err != nil {
		return storeError(err)
	}

	points, err := analytics.Heatmap(defects, filter)
	if err != nil {
		return analyticsError(err)
	}
	return c.JSON(fiber.Map{"count": len(points), "points": points})
}

func idParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "id must be a positive integer")
	}
	return id, nil
}

func typeParam(c *fiber.Ctx) (*domain.DefectType, error) {
	s := c.Query("type")
	if s == "" {
		return nil, nil
	}
	for _, t := range domain.DefectTypes() {
		if string(t) == s {
			return &t, nil
		}
	}
	return nil, fiber.NewError(fiber.StatusBadRequest, "unknown defect type: "+s)
}

func severityParam(c *fiber.Ctx) (*domain.Severity, error) {
	s := c.Query("severity")
	if s == "" {
		return nil, nil
	}
	parsed, ok := domain.ParseSeverity(s)
	if !ok {
		return nil, fiber.NewError(fiber.StatusBadRequest, domain.ReasonInvalidSeverity.Message())
	}
	return &parsed, nil
}

func centerParam(c *fiber.Ctx) (domain.Coordinate, error) {
	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr == "" || lngStr == "" {
		return domain.Coordinate{}, fiber.NewError(fiber.StatusBadRequest, "lat and lng are required")
	}
	lat, latErr := strconv.ParseFloat(latStr, 64)
	lng, lngErr := strconv.ParseFloat(lngStr, 64)
	if latErr != nil || lngErr != nil {
		return domain.Coordinate{}, fiber.NewError(fiber.StatusBadRequest, "lat and lng must be numbers")
	}
	center := domain.Coordinate{Latitude: lat, Longitude: lng}
	if !center.InRange() {
		return domain.Coordinate{}, fiber.NewError(fiber.StatusBadRequest, domain.ReasonInvalidCoordinateRange.Message())
	}
	return center, nil
}

// bboxParam reads lat_min/lat_max/lng_min/lng_max; either all four are
// present or none.
func bboxParam(c *fiber.Ctx) (*domain.BBox, error) {
	keys := []string{"lat_min", "lat_max", "lng_min", "lng_max"}
	vals := make([]float64, 0, len(keys))
	missing := 0
	for _, key := range keys {
		s := c.Query(key)
		if s == "" {
			missing++
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fiber.NewError(fiber.StatusBadRequest, key+" must be a number")
		}
		vals = append(vals, v)
	}
	if missing == len(keys) {
		return nil, nil
	}
	if missing > 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "bounding box requires lat_min, lat_max, lng_min and lng_max")
	}
	return &domain.BBox{LatMin: vals[0], LatMax: vals[1], LngMin: vals[2], LngMax: vals[3]}, nil
}

func filterParams(c *fiber.Ctx) (analytics.Filter, error) {
	var f analytics.Filter

	t, err := typeParam(c)
	if err != nil {
		return f, err
	}
	f.Type = t

	sev, err := severityParam(c)
	if err != nil {
		return f, err
	}
	f.Severity = sev

	if s := c.Query("days"); s != "" {
		days, err := strconv.Atoi(s)
		if err != nil || days < 1 {
			return f, fiber.NewError(fiber.StatusBadRequest, "days must be a positive integer")
		}
		f.Days = &days
	}
	return f, nil
}

func storeError(err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "defect not found")
	}
	return fiber.NewError(fiber.StatusServiceUnavailable, "storage unavailable")
}

func analyticsError(err error) error {
	if errors.Is(err, analytics.ErrOutOfRange) {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, err.Error())
}

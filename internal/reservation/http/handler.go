package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/reservation-backend/internal/auth"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/request"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/response"
	"github.com/nekogravitycat/reservation-backend/internal/report"
	"github.com/nekogravitycat/reservation-backend/internal/reservation"
)

const (
	reportPageSize = 500
	reportMaxRows  = 10000
	xlsxMIME       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Handler struct {
	service reservation.Service
}

func NewHandler(service reservation.Service) *Handler {
	return &Handler{service: service}
}

func actorFrom(c *gin.Context) reservation.Actor {
	return reservation.Actor{UserID: auth.GetUserID(c), IsSystemAdmin: auth.IsSystemAdmin(c)}
}

// scopeFilter restricts a listing to what the caller may see: everything for a system admin,
// one organization for its managers, otherwise the caller's own reservations.
func (h *Handler) scopeFilter(c *gin.Context, req ListReservationsRequest) (reservation.Filter, error) {
	actor := actorFrom(c)
	filter := reservation.Filter{
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		ResourceID:     req.ResourceID,
		StatusName:     req.Status,
		Source:         req.Source,
		Code:           strings.ToUpper(req.Code),
		From:           req.From,
		To:             req.To,
		Page:           req.Page,
		PageSize:       req.PageSize,
		SortBy:         req.SortBy,
		SortOrder:      strings.ToUpper(req.SortOrder),
	}
	switch {
	case actor.IsSystemAdmin:
	case req.OrganizationID != "":
		if err := h.service.AuthorizeOrganization(c.Request.Context(), actor, req.OrganizationID); err != nil {
			return filter, err
		}
	default:
		filter.UserID = actor.UserID
	}
	return filter, nil
}

func (h *Handler) List(c *gin.Context) {
	var req ListReservationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	filter, err := h.scopeFilter(c, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	list, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]ReservationResponse, len(list))
	for i, r := range list {
		items[i] = NewReservationResponse(r)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) ListByResources(c *gin.Context) {
	var req ByResourcesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	list, err := h.service.ListByResources(c.Request.Context(), req.ResourceIDs, req.StartDate, req.EndDate)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]OccupancyResponse, len(list))
	for i, r := range list {
		items[i] = NewOccupancyResponse(r)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var query GetReservationRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	actor := actorFrom(c)
	get := h.service.GetByID
	// Soft-deleted rows stay readable for system admins.
	if query.IncludeDeleted && actor.IsSystemAdmin {
		get = h.service.GetByIDIncludingDeleted
	}

	r, err := get(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Authorize(c.Request.Context(), actor, r); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	actor := actorFrom(c)
	req := body.toCreate()
	if req.UserID == "" {
		req.UserID = actor.UserID
	}
	req.TotalAmount = nil

	r, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewReservationResponse(r))
}

func (h *Handler) Update(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var body UpdateReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	r, err := h.service.Update(c.Request.Context(), actorFrom(c), uri.ID, body.toUpdate())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) Delete(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	if err := h.service.Delete(c.Request.Context(), actorFrom(c), req.ID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Confirm(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	r, err := h.service.Confirm(c.Request.Context(), actorFrom(c), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) Cancel(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	// The body is optional.
	var body CancelReservationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}
	}

	r, err := h.service.Cancel(c.Request.Context(), actorFrom(c), uri.ID, body.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) CreateForOrganization(c *gin.Context) {
	var uri OrganizationRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var body CreateReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	req := body.toCreate()
	req.OrganizationID = uri.OrganizationID

	r, err := h.service.CreateForOrganization(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewReservationResponse(r))
}

func (h *Handler) UpdateForOrganization(c *gin.Context) {
	var uri OrganizationReservationRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	var body UpdateReservationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	current, err := h.service.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if current.OrganizationID != uri.OrganizationID {
		response.Error(c, reservation.ErrNotFound)
		return
	}

	r, err := h.service.UpdateForOrganization(c.Request.Context(), actorFrom(c), uri.ID, body.toUpdate())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) GetTicket(c *gin.Context) {
	var req TicketRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	r, err := h.service.GetByCode(c.Request.Context(), strings.ToUpper(req.Code))
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.service.Authorize(c.Request.Context(), actorFrom(c), r); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

func (h *Handler) ValidateTicket(c *gin.Context) {
	var req TicketRequest
	if err := c.ShouldBindUri(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	r, err := h.service.ValidateTicket(c.Request.Context(), actorFrom(c), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewReservationResponse(r))
}

// statsFilter binds the analytics query; only system admins may aggregate across organizations.
func (h *Handler) statsFilter(c *gin.Context) (reservation.StatsFilter, bool) {
	var req StatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return reservation.StatsFilter{}, false
	}

	actor := actorFrom(c)
	if !actor.IsSystemAdmin {
		if req.OrganizationID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": "organization_id is required"})
			return reservation.StatsFilter{}, false
		}
		if err := h.service.AuthorizeOrganization(c.Request.Context(), actor, req.OrganizationID); err != nil {
			response.Error(c, err)
			return reservation.StatsFilter{}, false
		}
	}
	return reservation.StatsFilter{OrganizationID: req.OrganizationID, From: req.From, To: req.To}, true
}

func (h *Handler) Stats(c *gin.Context) {
	filter, ok := h.statsFilter(c)
	if !ok {
		return
	}

	st, err := h.service.Stats(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, StatsResponse{Total: st.Total, ByStatus: st.ByStatus, Revenue: st.Revenue})
}

func (h *Handler) CountPerDay(c *gin.Context) {
	filter, ok := h.statsFilter(c)
	if !ok {
		return
	}

	days, err := h.service.CountPerDay(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]DayCountResponse, len(days))
	for i, d := range days {
		items[i] = DayCountResponse{Date: d.Date.Format(dateLayout), Count: d.Count}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) CountBySource(c *gin.Context) {
	filter, ok := h.statsFilter(c)
	if !ok {
		return
	}

	sources, err := h.service.CountBySource(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SourceCountResponse, len(sources))
	for i, s := range sources {
		items[i] = SourceCountResponse{Source: s.Source, Count: s.Count}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) SearchClients(c *gin.Context) {
	var req SearchClientsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	clients, err := h.service.SearchClients(c.Request.Context(), req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]ClientResponse, len(clients))
	for i, cl := range clients {
		items[i] = ClientResponse{
			Name:         cl.Name,
			Email:        cl.Email,
			Phone:        cl.Phone,
			Reservations: cl.Reservations,
			LastStay:     cl.LastStay.Format(dateLayout),
		}
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Report streams the filtered reservations as an xlsx workbook.
func (h *Handler) Report(c *gin.Context) {
	var req ListReservationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	filter, err := h.scopeFilter(c, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	filter.PageSize = reportPageSize

	var rows []report.Row
	for filter.Page = 1; ; filter.Page++ {
		list, total, err := h.service.List(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		for _, r := range list {
			rows = append(rows, reportRow(r))
		}
		if filter.Page >= response.PageCount(total, filter.PageSize) || len(rows) >= reportMaxRows {
			break
		}
	}

	data, err := report.Reservations(rows)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("reservations-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxMIME, data)
}

func reportRow(r *reservation.Reservation) report.Row {
	names := make([]string, len(r.Resources))
	for i, l := range r.Resources {
		names[i] = l.ResourceName
		if names[i] == "" {
			names[i] = l.ResourceID
		}
	}
	row := report.Row{
		Code:         r.Code,
		Status:       r.StatusName,
		Organization: r.OrganizationName,
		Resources:    strings.Join(names, ", "),
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		Nights:       r.Nights(),
		Total:        r.TotalAmount,
		Source:       r.Source,
		CreatedAt:    r.CreatedAt,
	}
	if d := r.Detail; d != nil {
		row.Guest, row.Email, row.Currency = d.Name, d.Email, d.Currency
	}
	return row
}

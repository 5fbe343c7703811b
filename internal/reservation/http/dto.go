package http

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/reservation-backend/internal/pkg/request"
	"github.com/nekogravitycat/reservation-backend/internal/reservation"
	"github.com/nekogravitycat/reservation-backend/internal/status"
	statusHttp "github.com/nekogravitycat/reservation-backend/internal/status/http"
)

const dateLayout = "2006-01-02"

// ListReservationsRequest defines query parameters for listing reservations.
type ListReservationsRequest struct {
	request.ListParams
	UserID         string     `form:"user_id"`
	OrganizationID string     `form:"organization_id"`
	ResourceID     string     `form:"resource_id"`
	Status         string     `form:"status"`
	Source         string     `form:"source"`
	Code           string     `form:"code"`
	From           *time.Time `form:"from" time_format:"2006-01-02"`
	To             *time.Time `form:"to" time_format:"2006-01-02"`
	SortBy         string     `form:"sort_by" binding:"omitempty,oneof=start_date end_date created_at total_amount code"`
}

// Validate performs custom validation for ListReservationsRequest.
func (r *ListReservationsRequest) Validate() error {
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return fmt.Errorf("from must not be after to")
	}
	return nil
}

// ByResourcesRequest asks which reservations hold any of the resources in a date range.
type ByResourcesRequest struct {
	ResourceIDs []string  `form:"resource_id" binding:"required,min=1,dive,required"`
	StartDate   time.Time `form:"start_date" binding:"required" time_format:"2006-01-02"`
	EndDate     time.Time `form:"end_date" binding:"required" time_format:"2006-01-02"`
}

type StatsRequest struct {
	OrganizationID string     `form:"organization_id"`
	From           *time.Time `form:"from" time_format:"2006-01-02"`
	To             *time.Time `form:"to" time_format:"2006-01-02"`
}

type SearchClientsRequest struct {
	Name string `form:"name" binding:"required"`
}

type TicketRequest struct {
	Code string `uri:"code" binding:"required,max=20"`
}

type OrganizationRequest struct {
	OrganizationID string `uri:"org_id" binding:"required"`
}

type GetReservationRequest struct {
	IncludeDeleted bool `form:"include_deleted"`
}

type OrganizationReservationRequest struct {
	OrganizationID string `uri:"org_id" binding:"required"`
	ID             string `uri:"id" binding:"required,uuid"`
}

type ResourceInputRequest struct {
	ResourceID string          `json:"resource_id"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
}

type DetailRequest struct {
	Name     string          `json:"name"`
	Email    string          `json:"email"`
	Phone    string          `json:"phone" binding:"max=50"`
	Adults   int             `json:"adults"`
	Children int             `json:"children"`
	Infants  int             `json:"infants"`
	Pets     int             `json:"pets"`
	Note     string          `json:"note" binding:"max=1000"`
	Discount decimal.Decimal `json:"discount"`
	Currency string          `json:"currency" binding:"omitempty,len=3"`
}

// CreateReservationRequest is the body for both the public and the organization create endpoints.
// Field rules are checked by the service so every violation is reported at once.
type CreateReservationRequest struct {
	UserID         string                 `json:"user_id"`
	OrganizationID string                 `json:"organization_id"`
	StartDate      string                 `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate        string                 `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Source         string                 `json:"source" binding:"max=50"`
	Resources      []ResourceInputRequest `json:"resources"`
	Detail         DetailRequest          `json:"detail"`
	TotalAmount    *decimal.Decimal       `json:"total_amount"`
}

type UpdateReservationRequest struct {
	StartDate       *string                `json:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate         *string                `json:"end_date" binding:"omitempty,datetime=2006-01-02"`
	Status          *string                `json:"status"`
	Reason          string                 `json:"reason" binding:"max=500"`
	Resources       []ResourceInputRequest `json:"resources"`
	AppendResources bool                   `json:"append_resources"`
	Detail          *DetailRequest         `json:"detail"`
	TotalAmount     *decimal.Decimal       `json:"total_amount"`
}

type CancelReservationRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// parseDate reads an optional YYYY-MM-DD value; the binding tags have already checked the format.
func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, s)
	return t
}

func parseDatePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t := parseDate(*s)
	return &t
}

func toResourceInputs(items []ResourceInputRequest) []reservation.ResourceInput {
	if items == nil {
		return nil
	}
	out := make([]reservation.ResourceInput, len(items))
	for i, item := range items {
		qty := item.Quantity
		if qty == 0 {
			qty = 1
		}
		out[i] = reservation.ResourceInput{ResourceID: item.ResourceID, Price: item.Price, Quantity: qty}
	}
	return out
}

func (d DetailRequest) toInput() reservation.DetailInput {
	return reservation.DetailInput{
		Name:     d.Name,
		Email:    d.Email,
		Phone:    d.Phone,
		Adults:   d.Adults,
		Children: d.Children,
		Infants:  d.Infants,
		Pets:     d.Pets,
		Note:     d.Note,
		Discount: d.Discount,
		Currency: d.Currency,
	}
}

func (r CreateReservationRequest) toCreate() reservation.CreateRequest {
	return reservation.CreateRequest{
		UserID:         r.UserID,
		OrganizationID: r.OrganizationID,
		StartDate:      parseDate(r.StartDate),
		EndDate:        parseDate(r.EndDate),
		Source:         r.Source,
		Resources:      toResourceInputs(r.Resources),
		Detail:         r.Detail.toInput(),
		TotalAmount:    r.TotalAmount,
	}
}

func (r UpdateReservationRequest) toUpdate() reservation.UpdateRequest {
	req := reservation.UpdateRequest{
		StartDate:       parseDatePtr(r.StartDate),
		EndDate:         parseDatePtr(r.EndDate),
		StatusName:      r.Status,
		Reason:          r.Reason,
		Resources:       toResourceInputs(r.Resources),
		AppendResources: r.AppendResources,
		TotalAmount:     r.TotalAmount,
	}
	if r.Detail != nil {
		in := r.Detail.toInput()
		req.Detail = &in
	}
	return req
}

type OrganizationTag struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type ResourceLinkResponse struct {
	ID         string          `json:"id"`
	ResourceID string          `json:"resource_id"`
	Name       string          `json:"name,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
}

type DetailResponse struct {
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	Adults        int             `json:"adults"`
	Children      int             `json:"children"`
	Infants       int             `json:"infants"`
	Pets          int             `json:"pets"`
	Note          string          `json:"note"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Discount      decimal.Decimal `json:"discount"`
	Currency      string          `json:"currency"`
}

type ReservationResponse struct {
	ID           string                 `json:"id"`
	Code         string                 `json:"code"`
	UserID       string                 `json:"user_id"`
	Organization OrganizationTag        `json:"organization"`
	Status       statusHttp.StatusTag   `json:"status"`
	TotalAmount  decimal.Decimal        `json:"total_amount"`
	StartDate    string                 `json:"start_date"`
	EndDate      string                 `json:"end_date"`
	Nights       int                    `json:"nights"`
	Source       string                 `json:"source"`
	IsActive     bool                   `json:"is_active"`
	IsDeleted    bool                   `json:"is_deleted,omitempty"`
	Detail       *DetailResponse        `json:"detail,omitempty"`
	Resources    []ResourceLinkResponse `json:"resources"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

func NewReservationResponse(r *reservation.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID:           r.ID,
		Code:         r.Code,
		UserID:       r.UserID,
		Organization: OrganizationTag{ID: r.OrganizationID, Name: r.OrganizationName},
		Status: statusHttp.StatusTag{
			ID:    r.StatusID,
			Name:  r.StatusName,
			Color: status.ColorFor(r.StatusName),
		},
		TotalAmount: r.TotalAmount,
		StartDate:   r.StartDate.Format(dateLayout),
		EndDate:     r.EndDate.Format(dateLayout),
		Nights:      r.Nights(),
		Source:      r.Source,
		IsActive:    r.IsActive,
		IsDeleted:   r.IsDeleted,
		Resources:   make([]ResourceLinkResponse, len(r.Resources)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for i, l := range r.Resources {
		resp.Resources[i] = ResourceLinkResponse{
			ID:         l.ID,
			ResourceID: l.ResourceID,
			Name:       l.ResourceName,
			Price:      l.Price,
			Quantity:   l.Quantity,
		}
	}
	if d := r.Detail; d != nil {
		resp.Detail = &DetailResponse{
			Name:          d.Name,
			Email:         d.Email,
			Phone:         d.Phone,
			Adults:        d.Adults,
			Children:      d.Children,
			Infants:       d.Infants,
			Pets:          d.Pets,
			Note:          d.Note,
			OriginalPrice: d.OriginalPrice,
			Discount:      d.Discount,
			Currency:      d.Currency,
		}
	}
	return resp
}

// OccupancyResponse is the reduced view returned by the by-resources lookup.
type OccupancyResponse struct {
	ReservationID string   `json:"reservation_id"`
	Status        string   `json:"status"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	ResourceIDs   []string `json:"resource_ids"`
}

func NewOccupancyResponse(r *reservation.Reservation) OccupancyResponse {
	return OccupancyResponse{
		ReservationID: r.ID,
		Status:        r.StatusName,
		StartDate:     r.StartDate.Format(dateLayout),
		EndDate:       r.EndDate.Format(dateLayout),
		ResourceIDs:   r.ResourceIDs(),
	}
}

type StatsResponse struct {
	Total    int             `json:"total"`
	ByStatus map[string]int  `json:"by_status"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type DayCountResponse struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type SourceCountResponse struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type ClientResponse struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Reservations int    `json:"reservations"`
	LastStay     string `json:"last_stay"`
}

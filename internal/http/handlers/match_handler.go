// README: Match handlers for listing, detail and status updates.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"coload/internal/modules/location"
	"coload/internal/modules/matching"
	"coload/internal/modules/shipment"
	"coload/internal/types"
)

type MatchService interface {
	List(ctx context.Context, caller matching.Caller) ([]*matching.Match, error)
	Get(ctx context.Context, caller matching.Caller, id types.ID) (*matching.Match, error)
	UpdateStatus(ctx context.Context, cmd matching.UpdateStatusCommand) (*matching.Match, error)
}

type ShipmentLookup interface {
	Get(ctx context.Context, id types.ID) (*shipment.Shipment, error)
}

type MatchHandler struct {
	matches   MatchService
	shipments ShipmentLookup
}

func NewMatchHandler(matches MatchService, shipments ShipmentLookup) *MatchHandler {
	return &MatchHandler{matches: matches, shipments: shipments}
}

type matchDTO struct {
	ID                        types.ID        `json:"id"`
	OuterShipment             types.ID        `json:"outer_shipment"`
	InnerShipment             types.ID        `json:"inner_shipment"`
	Status                    matching.Status `json:"status"`
	OuterConfirmed            bool            `json:"outer_confirmed"`
	InnerConfirmed            bool            `json:"inner_confirmed"`
	StartTime                 time.Time       `json:"start_time"`
	EstimatedInnerStartTime   time.Time       `json:"estimated_inner_start_time"`
	EstimatedInnerArrivalTime time.Time       `json:"estimated_inner_arrival_time"`
	EstimatedOuterArrivalTime time.Time       `json:"estimated_outer_arrival_time"`
	CreatedAt                 time.Time       `json:"created_at"`
}

func toMatchDTO(m *matching.Match) matchDTO {
	return matchDTO{
		ID:                        m.ID,
		OuterShipment:             m.OuterShipmentID,
		InnerShipment:             m.InnerShipmentID,
		Status:                    m.Status,
		OuterConfirmed:            m.OuterConfirmed,
		InnerConfirmed:            m.InnerConfirmed,
		StartTime:                 m.Schedule.OuterStart,
		EstimatedInnerStartTime:   m.Schedule.InnerStart,
		EstimatedInnerArrivalTime: m.Schedule.InnerArrival,
		EstimatedOuterArrivalTime: m.Schedule.OuterArrival,
		CreatedAt:                 m.CreatedAt,
	}
}

type locationDTO struct {
	Address    string  `json:"address"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code"`
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
}

type truckDTO struct {
	ID             types.ID `json:"id"`
	WeightCapacity int      `json:"weight_capacity"`
	VolumeCapacity int      `json:"volume_capacity"`
}

type shipmentDTO struct {
	ID              types.ID    `json:"id"`
	CompanyID       types.ID    `json:"company_id"`
	Origin          locationDTO `json:"origin"`
	Destination     locationDTO `json:"destination"`
	EarliestStart   time.Time   `json:"earliest_start_time"`
	LatestStart     time.Time   `json:"latest_start_time"`
	EarliestArrival time.Time   `json:"earliest_arrival_time"`
	LatestArrival   time.Time   `json:"latest_arrival_time"`
	Truck           *truckDTO   `json:"truck,omitempty"`
	Weight          int         `json:"weight"`
	Volume          int         `json:"volume"`
}

func toShipmentDTO(s *shipment.Shipment) *shipmentDTO {
	loc := func(l location.Location) locationDTO {
		return locationDTO{Address: l.Address, City: l.City, PostalCode: l.PostalCode, Lat: l.Point.Lat, Lng: l.Point.Lng}
	}
	load := s.Load
	if !s.LoadResolved {
		load = s.TotalLoad()
	}
	out := &shipmentDTO{
		ID:              s.ID,
		CompanyID:       s.CompanyID,
		Origin:          loc(s.Origin),
		Destination:     loc(s.Destination),
		EarliestStart:   s.Window.EarliestStart,
		LatestStart:     s.Window.LatestStart,
		EarliestArrival: s.Window.EarliestArrival,
		LatestArrival:   s.Window.LatestArrival,
		Weight:          load.Weight,
		Volume:          load.Volume,
	}
	if s.Truck != nil {
		out.Truck = &truckDTO{ID: s.Truck.ID, WeightCapacity: s.Truck.WeightCapacity, VolumeCapacity: s.Truck.VolumeCapacity}
	}
	return out
}

type matchDetailDTO struct {
	matchDTO
	Outer *shipmentDTO `json:"outer"`
	Inner *shipmentDTO `json:"inner"`
}

func (h *MatchHandler) List(c *gin.Context) {
	list, err := h.matches.List(c.Request.Context(), callerFrom(c))
	if err != nil {
		writeMatchError(c, err)
		return
	}
	out := make([]matchDTO, 0, len(list))
	for _, m := range list {
		out = append(out, toMatchDTO(m))
	}
	writeJSON(c, http.StatusOK, gin.H{"matches": out})
}

func (h *MatchHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid match id")
		return
	}
	ctx := c.Request.Context()
	m, err := h.matches.Get(ctx, callerFrom(c), types.ID(id))
	if err != nil {
		writeMatchError(c, err)
		return
	}
	detail := matchDetailDTO{matchDTO: toMatchDTO(m)}
	if outer, err := h.shipments.Get(ctx, m.OuterShipmentID); err == nil {
		detail.Outer = toShipmentDTO(outer)
	}
	if inner, err := h.shipments.Get(ctx, m.InnerShipmentID); err == nil {
		detail.Inner = toShipmentDTO(inner)
	}
	writeJSON(c, http.StatusOK, detail)
}

type updateStatusReq struct {
	Status string `json:"status"`
	Side   string `json:"side"`
}

func (h *MatchHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid match id")
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	intent := matching.Status(req.Status)
	if intent != matching.StatusConfirmed && intent != matching.StatusRejected {
		writeError(c, http.StatusBadRequest, "status must be confirmed or rejected")
		return
	}
	m, err := h.matches.UpdateStatus(c.Request.Context(), matching.UpdateStatusCommand{
		MatchID: types.ID(id),
		Caller:  callerFrom(c),
		Intent:  intent,
		Side:    matching.Side(req.Side),
	})
	if err != nil {
		writeMatchError(c, err)
		return
	}
	if m.Status == matching.StatusRejected {
		writeJSON(c, http.StatusOK, gin.H{"id": m.ID, "status": m.Status})
		return
	}
	writeJSON(c, http.StatusOK, toMatchDTO(m))
}

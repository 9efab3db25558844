// README: Location handler for operator-triggered re-geocoding.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"coload/internal/maps"
	"coload/internal/modules/location"
	"coload/internal/types"
)

type Geocoder interface {
	Geocode(ctx context.Context, id types.ID) (*location.Location, error)
}

type LocationHandler struct {
	location Geocoder
}

func NewLocationHandler(svc Geocoder) *LocationHandler {
	return &LocationHandler{location: svc}
}

// Geocode handles POST /api/admin/locations/:id/geocode.
func (h *LocationHandler) Geocode(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid location id")
		return
	}
	loc, err := h.location.Geocode(c.Request.Context(), types.ID(id))
	switch {
	case errors.Is(err, location.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, maps.ErrNoResults):
		writeError(c, http.StatusUnprocessableEntity, "address could not be geocoded")
		return
	case err != nil:
		_ = c.Error(err)
		writeError(c, http.StatusBadGateway, "geocoding provider error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"id":          loc.ID,
		"lat":         loc.Point.Lat,
		"lng":         loc.Point.Lng,
		"place_id":    loc.PlaceID,
		"postal_code": loc.PostalCode,
		"is_geocoded": loc.IsGeocoded,
	})
}

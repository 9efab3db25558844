// README: Capacity feasibility for a driver/passenger pair.
package matching

import "coload/internal/modules/shipment"

// FeasibleCapacity reports whether the driver's truck carries both loads.
// Loads must be resolved beforehand (shipment.ResolveLoads).
func FeasibleCapacity(driver, passenger *shipment.Shipment) bool {
	if driver.Truck == nil {
		return false
	}
	total := driver.Load.Add(passenger.Load)
	return total.Weight <= driver.Truck.WeightCapacity && total.Volume <= driver.Truck.VolumeCapacity
}

// README: Time-window feasibility for a driver carrying a passenger shipment.
package matching

import (
	"time"

	"coload/internal/modules/shipment"
)

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func later(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// EstimateSchedule places the trip as early as both windows allow. leg is the
// passenger origin to passenger destination time, srcLeg driver origin to
// passenger origin, dstLeg passenger destination to driver destination (seconds).
func EstimateSchedule(driver, passenger shipment.Window, leg, srcLeg, dstLeg int) Schedule {
	legD, srcD, dstD := seconds(leg), seconds(srcLeg), seconds(dstLeg)

	// aim to reach the passenger destination at its earliest arrival
	innerStart := later(passenger.EarliestArrival.Add(-legD), passenger.EarliestStart)
	outerStart := later(innerStart.Add(-srcD), driver.EarliestStart)
	innerStart = outerStart.Add(srcD)
	innerArrival := innerStart.Add(legD)
	outerArrival := innerArrival.Add(dstD)

	return Schedule{
		OuterStart:   outerStart,
		InnerStart:   innerStart,
		InnerArrival: innerArrival,
		OuterArrival: outerArrival,
	}
}

// FeasibleTimes reports whether every estimated instant lies inside its window
// (bounds inclusive).
func FeasibleTimes(driver, passenger shipment.Window, leg, srcLeg, dstLeg int) (Schedule, bool) {
	s := EstimateSchedule(driver, passenger, leg, srcLeg, dstLeg)
	switch {
	case !driver.StartWithin(s.OuterStart):
		return s, false
	case !passenger.StartWithin(s.InnerStart):
		return s, false
	case !passenger.ArrivalWithin(s.InnerArrival):
		return s, false
	case !driver.ArrivalWithin(s.OuterArrival):
		return s, false
	}
	return s, true
}

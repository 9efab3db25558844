package matching

import "testing"

func TestFeasibleCapacity(t *testing.T) {
	cases := []struct {
		name      string
		driver    []shipmentOpt
		passenger []shipmentOpt
		want      bool
	}{
		{"fits", []shipmentOpt{withTruck(100, 10), withLoad(40, 4)}, []shipmentOpt{withLoad(50, 5)}, true},
		{"exactly full", []shipmentOpt{withTruck(100, 10), withLoad(40, 4)}, []shipmentOpt{withLoad(60, 6)}, true},
		{"over weight by one", []shipmentOpt{withTruck(100, 10), withLoad(40, 4)}, []shipmentOpt{withLoad(61, 1)}, false},
		{"over volume by one", []shipmentOpt{withTruck(100, 10), withLoad(40, 4)}, []shipmentOpt{withLoad(1, 7)}, false},
		{"no truck", []shipmentOpt{withLoad(0, 0)}, []shipmentOpt{withLoad(0, 0)}, false},
		{"passenger truck is irrelevant", []shipmentOpt{withTruck(10, 10)}, []shipmentOpt{withTruck(1000, 1000), withLoad(11, 0)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newShipment("d", tc.driver...)
			p := newShipment("p", tc.passenger...)
			if got := FeasibleCapacity(d, p); got != tc.want {
				t.Fatalf("FeasibleCapacity = %v, want %v", got, tc.want)
			}
		})
	}
}

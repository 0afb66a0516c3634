package pinmap

import (
	"fmt"
	"strings"
)

// softConstraintWarnings reports each soft constraint once per sensor that
// binds at least one pin under it. The detail names the first such pin in
// signal order.
func (a *allocator) softConstraintWarnings(allocations []Allocation) []Warning {
	var out []Warning
	seen := make(map[string]struct{})
	for _, alloc := range allocations {
		for _, signal := range alloc.Signals() {
			pinID := alloc.AssignedPins[signal]
			for _, c := range a.constraints.soft(pinID) {
				key := alloc.SensorID + "::" + c.ID
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, Warning{
					SensorID:   alloc.SensorID,
					SensorName: alloc.SensorName,
					Reason:     ReasonSoftConstraint,
					Detail:     fmt.Sprintf("%s (%s)", pinID, c.Describe()),
				})
			}
		}
	}
	return out
}

// addressCollisionWarnings groups I2C allocations by bus and declared
// address and reports every group with two or more sensors. Buses are
// reported in order of first appearance, then addresses within each bus.
func addressCollisionWarnings(allocations []Allocation, sensors []Sensor) []Warning {
	byID := make(map[string]Sensor, len(sensors))
	for _, s := range sensors {
		byID[s.ID] = s
	}

	type group struct {
		addr  uint8
		names []string
	}
	type busGroups struct {
		id     string
		groups []*group
	}
	var buses []*busGroups
	busIndex := make(map[string]*busGroups)

	for _, alloc := range allocations {
		if alloc.Interface != KindI2C || alloc.BusID == "" {
			continue
		}
		s, ok := byID[alloc.SensorID]
		if !ok {
			continue
		}
		addr, declared := i2cAddressOf(s.iface())
		if !declared {
			continue
		}

		bg, ok := busIndex[alloc.BusID]
		if !ok {
			bg = &busGroups{id: alloc.BusID}
			busIndex[alloc.BusID] = bg
			buses = append(buses, bg)
		}
		var g *group
		for _, candidate := range bg.groups {
			if candidate.addr == addr {
				g = candidate
				break
			}
		}
		if g == nil {
			g = &group{addr: addr}
			bg.groups = append(bg.groups, g)
		}
		g.names = append(g.names, alloc.SensorName)
	}

	var out []Warning
	for _, bg := range buses {
		for _, g := range bg.groups {
			if len(g.names) < 2 {
				continue
			}
			out = append(out, Warning{
				SensorID:   fmt.Sprintf("i2c:%s:%d", bg.id, g.addr),
				SensorName: bg.id,
				Reason:     ReasonI2CAddrCollision,
				Detail:     fmt.Sprintf("0x%x -> %s", g.addr, strings.Join(g.names, ", ")),
			})
		}
	}
	return out
}

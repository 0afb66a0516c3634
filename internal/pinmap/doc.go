// Package pinmap is the pin allocation engine for PinForge.
//
// Given an MCU topology, an ordered list of peripherals ("sensors"), the
// caller's pin locks and a list of pin constraints, Allocate assigns every
// sensor either a complete set of pins (and a bus where the interface uses
// one) or a structured conflict. The engine is a pure function: it performs
// no I/O, keeps no state between calls and never panics on unsatisfiable
// input.
//
// # Pipeline
//
//	┌──────────┐   ┌──────────┐   ┌─────────────┐   ┌────────────┐   ┌───────────────┐
//	│ Topology │──▶│ Requests │──▶│ Constraints │──▶│ Allocation │──▶│ Post-analysis │
//	│  (MCU)   │   │ (Sensor) │   │ (hard/soft) │   │  (greedy)  │   │  (warnings)   │
//	└──────────┘   └──────────┘   └─────────────┘   └────────────┘   └───────────────┘
//
// Initialisation marks power and reserved pins as used and builds three
// free-pin pools (GPIO, analog, PWM). Enabled constraints scoped to the MCU
// are registered per pin; hard ones claim their pins immediately. Sensors
// are then processed strictly in input order:
//
//   - I2C buses are shared. A sensor reuses the first realised bus that
//     matches its locks, otherwise the first satisfiable bus definition.
//   - SPI buses are shared too, but every sensor gets its own CS pin from
//     the GPIO pool.
//   - UART buses are exclusive: one sensor per bus.
//   - ADC, PWM, GPIO and ONE_WIRE take the lowest-ordered free pin of the
//     matching pool unless locked.
//
// Every failure becomes a Conflict tagged with a Reason. Post-analysis adds
// soft-constraint and I2C address-collision warnings without touching the
// allocations.
//
// # Usage
//
//	result := pinmap.Allocate(mcu, []pinmap.Sensor{
//	    {ID: "bme280", Name: "BME280", Interface: pinmap.I2C{Address: pinmap.I2CAddress(0x76)}},
//	    {ID: "gps", Name: "NEO-6M", Interface: pinmap.UART{RequiredBusID: "USART2"}},
//	}, pinmap.PinLocks{"bme280": {pinmap.SignalSCL: "PB8"}}, constraints)
//
//	for _, c := range result.Conflicts {
//	    fmt.Println(c.SensorName, c.Reason, c.Detail)
//	}
//
// # Thread Safety
//
// Allocate shares nothing between calls and may be called concurrently. The
// inputs are only read.
package pinmap

// Package catalog supplies the MCU topologies, sensor definitions and pin
// constraints that the allocation engine consumes.
//
// Catalog data is written in YAML (JSON documents are accepted too, being
// valid YAML). A document has the shape:
//
//	schema_version: 1
//	mcus:
//	  - id: stm32f103c8
//	    name: STM32F103C8
//	    series: F1
//	    package: LQFP48
//	    ports:
//	      - {name: PA, count: 16}
//	      - {name: PC, indexes: [13, 14, 15]}
//	    pins:
//	      - id: PB6
//	        functions: [I2C1_SCL, TIM4_CH1]
//	      - id: PA13
//	        gpio: false
//	        functions: [SWDIO]
//	        notes: SWDIO
//	      - {id: VDD, power: true, notes: 3.3V}
//	      - NRST
//	    buses:
//	      i2c: [{id: I2C1, scl: [PB6, PB8], sda: [PB7, PB9]}]
//	    analog_pins: [PA0, PA1]
//	sensors:
//	  - {id: bme280, name: BME280, interface: I2C, i2c_address: 0x76}
//	constraints:
//	  - {id: swd, label: SWD Debug, pins: [PA13, PA14], level: hard}
//
// Ports expand to GPIO pins P<port><index>. Entries under pins either
// override an expanded pin or add a supply/control pin on the SYS port.
// Function names such as I2C1_SCL, SPI2_MOSI, USART1_TX, ADC_IN3 and
// TIM4_CH1 are expanded into typed pin functions.
//
// # Architecture
//
//	┌────────────────────────┐      ┌──────────────────────┐
//	│ builtin/*.yaml (embed) │      │ catalog files (disk) │
//	└───────────┬────────────┘      └──────────┬───────────┘
//	            │ Parse                         │ LoadFile
//	            ▼                               ▼
//	      ┌───────────────────────────────────────────┐
//	      │ Catalog (validated *pinmap.MCU, records)  │
//	      └─────────────────────┬─────────────────────┘
//	                            │ Merge
//	                            ▼
//	               ┌───────────────────────────┐
//	               │ Registry (cached, RWMutex)│
//	               └───────────────────────────┘
//
// # Thread Safety
//
// Registry methods are safe for concurrent use and return deep copies.
// Catalog values returned by Parse are owned by the caller.
package catalog

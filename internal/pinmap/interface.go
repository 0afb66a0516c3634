package pinmap

import (
	"fmt"
	"strings"
)

// InterfaceKind names a peripheral interface type.
type InterfaceKind string

// InterfaceKind constants.
const (
	KindI2C     InterfaceKind = "I2C"
	KindSPI     InterfaceKind = "SPI"
	KindUART    InterfaceKind = "UART"
	KindADC     InterfaceKind = "ADC"
	KindPWM     InterfaceKind = "PWM"
	KindGPIO    InterfaceKind = "GPIO"
	KindOneWire InterfaceKind = "ONE_WIRE"
)

// AllInterfaceKinds returns all valid interface kinds.
func AllInterfaceKinds() []InterfaceKind {
	return []InterfaceKind{KindI2C, KindSPI, KindUART, KindADC, KindPWM, KindGPIO, KindOneWire}
}

// ParseInterfaceKind normalises a user-supplied interface name.
// Matching is case-insensitive and accepts the 1WIRE, 1-WIRE and ONEWIRE
// aliases for ONE_WIRE.
func ParseInterfaceKind(s string) (InterfaceKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "I2C":
		return KindI2C, nil
	case "SPI":
		return KindSPI, nil
	case "UART":
		return KindUART, nil
	case "ADC":
		return KindADC, nil
	case "PWM":
		return KindPWM, nil
	case "GPIO":
		return KindGPIO, nil
	case "ONE_WIRE", "1WIRE", "1-WIRE", "ONEWIRE":
		return KindOneWire, nil
	}
	return "", fmt.Errorf("unknown interface %q", s)
}

// Signal names bound by the allocation rules.
const (
	SignalSCL  = "SCL"
	SignalSDA  = "SDA"
	SignalSCK  = "SCK"
	SignalMISO = "MISO"
	SignalMOSI = "MOSI"
	SignalCS   = "CS"
	SignalTX   = "TX"
	SignalRX   = "RX"
	SignalAIN  = "AIN"
	SignalPWM  = "PWM"
	SignalGPIO = "GPIO"
	SignalDQ   = "DQ"
)

// SignalsFor returns the signals an interface kind binds, in canonical order.
func SignalsFor(kind InterfaceKind) []string {
	switch kind {
	case KindI2C:
		return []string{SignalSCL, SignalSDA}
	case KindSPI:
		return []string{SignalSCK, SignalMISO, SignalMOSI, SignalCS}
	case KindUART:
		return []string{SignalTX, SignalRX}
	case KindADC:
		return []string{SignalAIN}
	case KindPWM:
		return []string{SignalPWM}
	case KindGPIO:
		return []string{SignalGPIO}
	case KindOneWire:
		return []string{SignalDQ}
	}
	return nil
}

// Interface is the closed set of interface variants a Sensor can request.
// Each variant carries only the fields its allocation rule reads, so an I2C
// sensor cannot carry a required bus and a UART sensor cannot carry an
// address.
type Interface interface {
	Kind() InterfaceKind
	Signals() []string
	isInterface()
}

// I2C requests SCL and SDA on a shared I2C bus.
type I2C struct {
	// Address is the 7-bit device address. It is only used for collision
	// analysis; nil means undeclared.
	Address *uint8
}

// SPI requests SCK, MISO and MOSI on a shared SPI bus plus a dedicated CS.
type SPI struct{}

// UART requests TX and RX on an exclusive UART bus.
type UART struct {
	// RequiredBusID forces one named bus. Surrounding whitespace is ignored.
	RequiredBusID string
}

// ADC requests one analog input.
type ADC struct{}

// PWM requests one PWM output.
type PWM struct{}

// GPIO requests one general purpose pin.
type GPIO struct{}

// OneWire requests one general purpose pin for a 1-Wire data line.
type OneWire struct{}

func (I2C) Kind() InterfaceKind     { return KindI2C }
func (SPI) Kind() InterfaceKind     { return KindSPI }
func (UART) Kind() InterfaceKind    { return KindUART }
func (ADC) Kind() InterfaceKind     { return KindADC }
func (PWM) Kind() InterfaceKind     { return KindPWM }
func (GPIO) Kind() InterfaceKind    { return KindGPIO }
func (OneWire) Kind() InterfaceKind { return KindOneWire }

func (i I2C) Signals() []string     { return SignalsFor(i.Kind()) }
func (i SPI) Signals() []string     { return SignalsFor(i.Kind()) }
func (i UART) Signals() []string    { return SignalsFor(i.Kind()) }
func (i ADC) Signals() []string     { return SignalsFor(i.Kind()) }
func (i PWM) Signals() []string     { return SignalsFor(i.Kind()) }
func (i GPIO) Signals() []string    { return SignalsFor(i.Kind()) }
func (i OneWire) Signals() []string { return SignalsFor(i.Kind()) }

func (I2C) isInterface()     {}
func (SPI) isInterface()     {}
func (UART) isInterface()    {}
func (ADC) isInterface()     {}
func (PWM) isInterface()     {}
func (GPIO) isInterface()    {}
func (OneWire) isInterface() {}

// I2CAddress returns a pointer to addr for use in I2C{Address: ...}.
func I2CAddress(addr uint8) *uint8 {
	return &addr
}

// NewInterface builds the variant for kind. Options that do not apply to the
// kind are rejected.
func NewInterface(kind InterfaceKind, address *uint8, requiredBusID string) (Interface, error) {
	requiredBusID = strings.TrimSpace(requiredBusID)
	if address != nil && kind != KindI2C {
		return nil, fmt.Errorf("device address is only valid for I2C, not %s", kind)
	}
	if requiredBusID != "" && kind != KindUART {
		return nil, fmt.Errorf("required bus is only valid for UART, not %s", kind)
	}
	switch kind {
	case KindI2C:
		if address != nil && *address > 0x7f {
			return nil, fmt.Errorf("I2C address 0x%x exceeds 7 bits", *address)
		}
		return I2C{Address: address}, nil
	case KindSPI:
		return SPI{}, nil
	case KindUART:
		return UART{RequiredBusID: requiredBusID}, nil
	case KindADC:
		return ADC{}, nil
	case KindPWM:
		return PWM{}, nil
	case KindGPIO:
		return GPIO{}, nil
	case KindOneWire:
		return OneWire{}, nil
	}
	return nil, fmt.Errorf("unknown interface %q", kind)
}

// i2cAddressOf returns the declared I2C address of iface, if any.
func i2cAddressOf(iface Interface) (uint8, bool) {
	var addr *uint8
	switch v := iface.(type) {
	case I2C:
		addr = v.Address
	case *I2C:
		if v != nil {
			addr = v.Address
		}
	}
	if addr == nil {
		return 0, false
	}
	return *addr, true
}

// requiredBusOf returns the trimmed required UART bus of iface.
func requiredBusOf(iface Interface) string {
	switch v := iface.(type) {
	case UART:
		return strings.TrimSpace(v.RequiredBusID)
	case *UART:
		if v != nil {
			return strings.TrimSpace(v.RequiredBusID)
		}
	}
	return ""
}

package pinmap

import (
	"reflect"
	"testing"
)

func TestParseInterfaceKind(t *testing.T) {
	tests := []struct {
		in      string
		want    InterfaceKind
		wantErr bool
	}{
		{"I2C", KindI2C, false},
		{" spi ", KindSPI, false},
		{"uart", KindUART, false},
		{"Adc", KindADC, false},
		{"pwm", KindPWM, false},
		{"GPIO", KindGPIO, false},
		{"ONE_WIRE", KindOneWire, false},
		{"1wire", KindOneWire, false},
		{"1-Wire", KindOneWire, false},
		{"CAN", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterfaceKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseInterfaceKind(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseInterfaceKind(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewInterface(t *testing.T) {
	addr := I2CAddress(0x76)
	tooBig := I2CAddress(0x80)

	tests := []struct {
		name     string
		kind     InterfaceKind
		address  *uint8
		required string
		want     Interface
		wantErr  bool
	}{
		{"i2c with address", KindI2C, addr, "", I2C{Address: addr}, false},
		{"i2c without address", KindI2C, nil, "", I2C{}, false},
		{"i2c address out of range", KindI2C, tooBig, "", nil, true},
		{"i2c with required bus", KindI2C, nil, "I2C1", nil, true},
		{"uart with required bus", KindUART, nil, " USART2 ", UART{RequiredBusID: "USART2"}, false},
		{"uart with address", KindUART, addr, "", nil, true},
		{"spi with required bus", KindSPI, nil, "SPI1", nil, true},
		{"one wire", KindOneWire, nil, "", OneWire{}, false},
		{"unknown kind", InterfaceKind("CAN"), nil, "", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewInterface(tt.kind, tt.address, tt.required)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewInterface() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NewInterface() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestInterfaceSignals(t *testing.T) {
	for _, kind := range AllInterfaceKinds() {
		iface, err := NewInterface(kind, nil, "")
		if err != nil {
			t.Fatalf("NewInterface(%s) error = %v", kind, err)
		}
		if iface.Kind() != kind {
			t.Errorf("Kind() = %q, want %q", iface.Kind(), kind)
		}
		if len(iface.Signals()) == 0 {
			t.Errorf("%s has no signals", kind)
		}
	}
}

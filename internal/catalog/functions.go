package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/pinforge-core/internal/pinmap"
)

var (
	i2cFunction  = regexp.MustCompile(`^(I2C\d+)_(SCL|SDA)$`)
	spiFunction  = regexp.MustCompile(`^(SPI\d+)_(SCK|MISO|MOSI)$`)
	uartFunction = regexp.MustCompile(`^((?:LP)?US?ART\d+)_(TX|RX)$`)
	adcFunction  = regexp.MustCompile(`^ADC\d*_IN\d+$`)
	pwmFunction  = regexp.MustCompile(`^TIM\d+_CH\d+N?$`)
)

// ParseFunction expands an alternate-function name into a typed pin
// function. Unrecognised names (SWDIO, OSC_IN, ...) carry the name only.
func ParseFunction(name string) pinmap.PinFunction {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "GPIO" {
		return gpioFunction()
	}
	if m := i2cFunction.FindStringSubmatch(name); m != nil {
		return pinmap.PinFunction{Name: name, Interface: pinmap.KindI2C, Signal: m[2], Bus: m[1]}
	}
	if m := spiFunction.FindStringSubmatch(name); m != nil {
		return pinmap.PinFunction{Name: name, Interface: pinmap.KindSPI, Signal: m[2], Bus: m[1]}
	}
	if m := uartFunction.FindStringSubmatch(name); m != nil {
		return pinmap.PinFunction{Name: name, Interface: pinmap.KindUART, Signal: m[2], Bus: m[1]}
	}
	if adcFunction.MatchString(name) {
		return pinmap.PinFunction{Name: name, Interface: pinmap.KindADC, Signal: pinmap.SignalAIN}
	}
	if pwmFunction.MatchString(name) {
		return pinmap.PinFunction{Name: name, Interface: pinmap.KindPWM, Signal: pinmap.SignalPWM}
	}
	return pinmap.PinFunction{Name: name}
}

func gpioFunction() pinmap.PinFunction {
	return pinmap.PinFunction{Name: "GPIO", Interface: pinmap.KindGPIO}
}

// FunctionRecord is a pin function as written in a catalog file: either a
// bare name ("I2C1_SCL") or a mapping with explicit fields.
type FunctionRecord pinmap.PinFunction

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FunctionRecord) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*f = FunctionRecord(ParseFunction(value.Value))
		return nil
	}

	var raw struct {
		Name      string `yaml:"name"`
		Interface string `yaml:"interface"`
		Signal    string `yaml:"signal"`
		Bus       string `yaml:"bus"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw.Name) == "" {
		return fmt.Errorf("line %d: pin function without a name", value.Line)
	}
	if raw.Interface == "" && raw.Signal == "" && raw.Bus == "" {
		*f = FunctionRecord(ParseFunction(raw.Name))
		return nil
	}

	fn := pinmap.PinFunction{
		Name:   strings.TrimSpace(raw.Name),
		Signal: strings.ToUpper(strings.TrimSpace(raw.Signal)),
		Bus:    strings.TrimSpace(raw.Bus),
	}
	if raw.Interface != "" {
		kind, err := pinmap.ParseInterfaceKind(raw.Interface)
		if err != nil {
			return fmt.Errorf("line %d: %w", value.Line, err)
		}
		fn.Interface = kind
	}
	*f = FunctionRecord(fn)
	return nil
}

package pinmap

import (
	"fmt"
	"slices"
)

func (a *allocator) placeI2C(s Sensor, locks map[string]string) {
	if detail, hit := a.hardLocked(s, locks, SignalSCL, SignalSDA); hit {
		a.conflict(s, ReasonConstraintReserved, detail)
		return
	}
	scl, sda := locks[SignalSCL], locks[SignalSDA]
	if scl != "" && scl == sda {
		a.conflict(s, ReasonLockedDuplicate, "")
		return
	}

	bus := a.ensureI2CBus(scl, sda)
	if bus == nil {
		reason := ReasonNoI2C
		if scl != "" || sda != "" {
			reason = ReasonLockedMismatch
		}
		a.conflict(s, reason, "")
		return
	}

	bus.Sensors = append(bus.Sensors, s.Name)
	a.bind(s, bus.ID, map[string]string{SignalSCL: bus.SCL, SignalSDA: bus.SDA})
}

// ensureI2CBus returns a realised bus matching the locks, realising the
// first satisfiable bus definition if none does.
func (a *allocator) ensureI2CBus(lockSCL, lockSDA string) *I2CBus {
	for _, b := range a.i2cBuses {
		if lockSCL != "" && b.SCL != lockSCL {
			continue
		}
		if lockSDA != "" && b.SDA != lockSDA {
			continue
		}
		return b
	}

	for _, def := range a.mcu.Buses.I2C {
		if lockSCL == "" && lockSDA == "" {
			scl, sda, ok := a.freePair(def.SCL, def.SDA)
			if !ok {
				continue
			}
			return a.realiseI2C(def.ID, scl, sda, false, false)
		}

		if lockSCL != "" && !slices.Contains(def.SCL, lockSCL) {
			continue
		}
		if lockSDA != "" && !slices.Contains(def.SDA, lockSDA) {
			continue
		}
		scl, sda := orDefault(lockSCL, a.firstFree(def.SCL)), orDefault(lockSDA, a.firstFree(def.SDA))
		if scl == "" || sda == "" || scl == sda {
			continue
		}
		if !a.isFree(scl) || !a.isFree(sda) {
			continue
		}
		return a.realiseI2C(def.ID, scl, sda, lockSCL != "", lockSDA != "")
	}
	return nil
}

// freePair returns the first (left, right) candidate pair of distinct, free
// pins, scanning left candidates in the outer loop.
func (a *allocator) freePair(left, right []string) (string, string, bool) {
	for _, l := range left {
		for _, r := range right {
			if l == r {
				continue
			}
			if a.isFree(l) && a.isFree(r) {
				return l, r, true
			}
		}
	}
	return "", "", false
}

func (a *allocator) realiseI2C(busID, scl, sda string, sclLocked, sdaLocked bool) *I2CBus {
	a.reserve(scl, StatusBus, busLabel(busID, SignalSCL, sclLocked))
	a.reserve(sda, StatusBus, busLabel(busID, SignalSDA, sdaLocked))
	b := &I2CBus{ID: busID, SCL: scl, SDA: sda, Sensors: []string{}}
	a.i2cBuses = append(a.i2cBuses, b)
	return b
}

func (a *allocator) placeSPI(s Sensor, locks map[string]string) {
	if detail, hit := a.hardLocked(s, locks, SignalSCK, SignalMISO, SignalMOSI, SignalCS); hit {
		a.conflict(s, ReasonConstraintReserved, detail)
		return
	}
	sck, miso, mosi, cs := locks[SignalSCK], locks[SignalMISO], locks[SignalMOSI], locks[SignalCS]

	bus := a.ensureSPIBus(sck, miso, mosi)
	if bus == nil {
		reason := ReasonNoSPI
		if sck != "" || miso != "" || mosi != "" {
			reason = ReasonLockedMismatch
		}
		a.conflict(s, reason, "")
		return
	}

	// The bus triple stays claimed even if CS fails.
	csPin, ok := a.takeFromPool(a.gpio, s.Name+" "+SignalCS, cs)
	if !ok {
		reason := ReasonNoSPICS
		if cs != "" {
			reason = ReasonLockedUnavailable
		}
		a.conflict(s, reason, "")
		return
	}

	bus.CSPins = append(bus.CSPins, csPin)
	bus.Sensors = append(bus.Sensors, s.Name)
	a.bind(s, bus.ID, map[string]string{
		SignalSCK:  bus.SCK,
		SignalMISO: bus.MISO,
		SignalMOSI: bus.MOSI,
		SignalCS:   csPin,
	})
}

// ensureSPIBus is the SPI counterpart of ensureI2CBus over the
// SCK/MISO/MOSI triple.
func (a *allocator) ensureSPIBus(lockSCK, lockMISO, lockMOSI string) *SPIBus {
	for _, b := range a.spiBuses {
		if lockSCK != "" && b.SCK != lockSCK {
			continue
		}
		if lockMISO != "" && b.MISO != lockMISO {
			continue
		}
		if lockMOSI != "" && b.MOSI != lockMOSI {
			continue
		}
		return b
	}

	unlocked := lockSCK == "" && lockMISO == "" && lockMOSI == ""
	for _, def := range a.mcu.Buses.SPI {
		if !unlocked {
			if lockSCK != "" && !slices.Contains(def.SCK, lockSCK) {
				continue
			}
			if lockMISO != "" && !slices.Contains(def.MISO, lockMISO) {
				continue
			}
			if lockMOSI != "" && !slices.Contains(def.MOSI, lockMOSI) {
				continue
			}
		}
		sck := orDefault(lockSCK, a.firstFree(def.SCK))
		miso := orDefault(lockMISO, a.firstFree(def.MISO))
		mosi := orDefault(lockMOSI, a.firstFree(def.MOSI))
		if sck == "" || miso == "" || mosi == "" {
			continue
		}
		if !a.isFree(sck) || !a.isFree(miso) || !a.isFree(mosi) {
			continue
		}

		a.reserve(sck, StatusBus, busLabel(def.ID, SignalSCK, lockSCK != ""))
		a.reserve(miso, StatusBus, busLabel(def.ID, SignalMISO, lockMISO != ""))
		a.reserve(mosi, StatusBus, busLabel(def.ID, SignalMOSI, lockMOSI != ""))
		b := &SPIBus{ID: def.ID, SCK: sck, MISO: miso, MOSI: mosi, CSPins: []string{}, Sensors: []string{}}
		a.spiBuses = append(a.spiBuses, b)
		return b
	}
	return nil
}

func (a *allocator) placeUART(s Sensor, locks map[string]string) {
	if detail, hit := a.hardLocked(s, locks, SignalTX, SignalRX); hit {
		a.conflict(s, ReasonConstraintReserved, detail)
		return
	}
	lockTX, lockRX := locks[SignalTX], locks[SignalRX]
	if lockTX != "" && lockTX == lockRX {
		a.conflict(s, ReasonLockedDuplicate, "")
		return
	}

	required := requiredBusOf(s.iface())
	if required != "" {
		if owner, taken := a.uartOwner[required]; taken {
			a.conflict(s, ReasonUARTExclusive,
				fmt.Sprintf("%s already used by %s", required, orDefault(owner, "another device")))
			return
		}
	}

	for _, def := range a.mcu.Buses.UART {
		if required != "" && def.ID != required {
			continue
		}
		if _, taken := a.uartOwner[def.ID]; taken {
			continue
		}
		if lockTX != "" && !slices.Contains(def.TX, lockTX) {
			continue
		}
		if lockRX != "" && !slices.Contains(def.RX, lockRX) {
			continue
		}
		tx, rx := orDefault(lockTX, a.firstFree(def.TX)), orDefault(lockRX, a.firstFree(def.RX))
		if tx == "" || rx == "" || tx == rx {
			continue
		}
		if !a.isFree(tx) || !a.isFree(rx) {
			continue
		}

		a.reserve(tx, StatusBus, def.ID+" "+SignalTX)
		a.reserve(rx, StatusBus, def.ID+" "+SignalRX)
		a.uartBuses = append(a.uartBuses, UARTBus{ID: def.ID, TX: tx, RX: rx, Sensor: s.Name})
		a.uartOwner[def.ID] = s.Name
		a.bind(s, def.ID, map[string]string{SignalTX: tx, SignalRX: rx})
		return
	}

	reason := ReasonNoUART
	switch {
	case lockTX != "" || lockRX != "":
		reason = ReasonLockedMismatch
	case required != "":
		reason = ReasonUARTExclusive
	}
	a.conflict(s, reason, "")
}

func busLabel(busID, signal string, locked bool) string {
	label := busID + " " + signal
	if locked {
		return lockedLabel(label)
	}
	return label
}

package transport

import (
	"errors"
	"log"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// ErrNoDeviceFound is returned when no controllable FTDI-class adapter is
// present.
var ErrNoDeviceFound = errors.New("transport: EMG device not found")

// ftdiVID is the USB vendor ID of the FTDI chipset the sensor ships with.
const ftdiVID = "0403"

// EnumerateCandidates lists serial adapters with the sensor's USB-serial
// chipset, probing each by opening and immediately closing it so that only
// controllable ports are returned.
func EnumerateCandidates() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	return selectCandidates(ports, probePort)
}

// selectCandidates filters the detailed port list down to probed FTDI ports.
// Split out from EnumerateCandidates so the matching logic is testable
// against a fake port list.
func selectCandidates(ports []*enumerator.PortDetails, probe func(string) error) ([]string, error) {
	var found []string
	for _, p := range ports {
		if !p.IsUSB || !strings.EqualFold(p.VID, ftdiVID) {
			continue
		}
		if err := probe(p.Name); err != nil {
			log.Printf("[transport] candidate %s not controllable: %v", p.Name, err)
			continue
		}
		log.Printf("[transport] found EMG candidate %s", p.Name)
		found = append(found, p.Name)
	}
	if len(found) == 0 {
		return nil, ErrNoDeviceFound
	}
	return found, nil
}

func probePort(name string) error {
	port, err := serial.Open(name, &serial.Mode{BaudRate: Baud})
	if err != nil {
		return err
	}
	return port.Close()
}

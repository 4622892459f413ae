package monitor

import (
	"fmt"
	"strconv"

	"go.bug.st/serial/enumerator"

	"github.com/ardnew/maghand/pkg"
	"github.com/ardnew/maghand/pkg/usbid"
)

// Port is a serial port that may carry the keyboard's UART.
type Port struct {
	Name   string
	USB    bool
	VID    uint16
	PID    uint16
	Serial string
	// Description names the USB adapter, e.g. "0403:6001 FTDI FT232".
	Description string
}

func (p Port) String() string {
	if !p.USB {
		return p.Name
	}
	s := p.Name + " " + p.Description
	if p.Serial != "" {
		s += " serial=" + p.Serial
	}
	return s
}

// Ports lists the serial ports on this host, naming USB adapters from db.
func Ports(db *usbid.Database) ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	ports := make([]Port, 0, len(details))
	for _, d := range details {
		ports = append(ports, portOf(d, db))
	}
	return ports, nil
}

func portOf(d *enumerator.PortDetails, db *usbid.Database) Port {
	p := Port{Name: d.Name, USB: d.IsUSB, Serial: d.SerialNumber}
	if !d.IsUSB {
		return p
	}
	vid, err1 := strconv.ParseUint(d.VID, 16, 16)
	pid, err2 := strconv.ParseUint(d.PID, 16, 16)
	if err1 != nil || err2 != nil {
		p.Description = d.VID + ":" + d.PID
		return p
	}
	p.VID, p.PID = uint16(vid), uint16(pid)
	p.Description = db.Describe(p.VID, p.PID)
	return p
}

// PickPort returns the only USB serial port. The UART normally reaches
// the host through a USB adapter; with several candidates the user must
// choose.
func PickPort(ports []Port) (Port, error) {
	var found []Port
	for _, p := range ports {
		if p.USB {
			found = append(found, p)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return Port{}, fmt.Errorf("no USB serial port: %w", pkg.ErrNoDevice)
	default:
		return Port{}, fmt.Errorf("%d USB serial ports, choose one: %w", len(found), pkg.ErrInvalidParameter)
	}
}

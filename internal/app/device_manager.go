package app

import (
	"fmt"
	"io"

	"github.com/emmett/streamvox/internal/audio"
	"github.com/emmett/streamvox/internal/output"
)

// DeviceManager handles audio device selection and listing
type DeviceManager struct {
	list func() ([]audio.DeviceInfo, error)
	out  io.Writer
}

// NewDeviceManager creates a DeviceManager that enumerates through malgo
// and prints to out.
func NewDeviceManager(out io.Writer) *DeviceManager {
	return &DeviceManager{list: audio.ListDevices, out: out}
}

// ListDevices prints all available capture devices
func (dm *DeviceManager) ListDevices() error {
	devices, err := dm.list()
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("no audio capture devices found")
	}

	rows := make([]output.DeviceRow, len(devices))
	for i, d := range devices {
		rows[i] = output.DeviceRow{ID: d.ID, Name: d.Name, Default: d.IsDefault}
	}
	output.WriteDevices(dm.out, rows)

	fmt.Fprintln(dm.out)
	fmt.Fprintln(dm.out, "To use a specific device, run:")
	fmt.Fprintf(dm.out, "  streamvox listen --device %q\n", devices[0].ID)
	return nil
}

// SelectDevice resolves a device ID or name, or the default when empty
func (dm *DeviceManager) SelectDevice(selector string) (*audio.DeviceInfo, error) {
	devices, err := dm.list()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	device, err := audio.SelectDevice(devices, selector)
	if err != nil {
		return nil, fmt.Errorf("invalid audio device: %w (use 'streamvox devices' to list them)", err)
	}
	return device, nil
}

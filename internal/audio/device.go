package audio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gen2brain/malgo"
)

const capturePrefix = "capture-"

// DeviceInfo contains information about a capture device
type DeviceInfo struct {
	ID        string // capture-N, stable while the device list doesn't change
	Name      string // Human-readable device name
	IsDefault bool   // Whether this is the system default device
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	defaultMarker := ""
	if d.IsDefault {
		defaultMarker = " [DEFAULT]"
	}
	return fmt.Sprintf("%s: %s%s", d.ID, d.Name, defaultMarker)
}

// ListDevices returns the available capture devices
func ListDevices() ([]DeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		devices = append(devices, DeviceInfo{
			ID:        capturePrefix + strconv.Itoa(i),
			Name:      infos[i].Name(),
			IsDefault: infos[i].IsDefault > 0,
		})
	}
	return devices, nil
}

// SelectDevice picks a device from devices. An empty selector picks the
// default device (or the first one); otherwise the selector matches an ID
// exactly or a name case-insensitively as a substring.
func SelectDevice(devices []DeviceInfo, selector string) (*DeviceInfo, error) {
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}

	if selector == "" {
		for i := range devices {
			if devices[i].IsDefault {
				return &devices[i], nil
			}
		}
		return &devices[0], nil
	}

	for i := range devices {
		if devices[i].ID == selector {
			return &devices[i], nil
		}
	}
	search := strings.ToLower(selector)
	for i := range devices {
		if strings.Contains(strings.ToLower(devices[i].Name), search) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no device found matching %q", selector)
}

// deviceIndex maps a capture-N identifier back to its enumeration index
func deviceIndex(id string, count int) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(id, capturePrefix))
	if err != nil || !strings.HasPrefix(id, capturePrefix) {
		return 0, fmt.Errorf("invalid device id: %s", id)
	}
	if n < 0 || n >= count {
		return 0, fmt.Errorf("device not found: %s", id)
	}
	return n, nil
}

// SPDX-License-Identifier: MIT
package source

import (
	"fmt"
	"io"

	"ledmeter/internal/config"

	"github.com/gordonklaus/portaudio"
	"github.com/pkg/errors"
)

// Seams for tests; production code goes straight to the library.
var (
	paLibInitialize             = portaudio.Initialize
	paLibTerminate              = portaudio.Terminate
	paLibDevicesFunc            = portaudio.Devices
	paLibDefaultInputDeviceFunc = portaudio.DefaultInputDevice
	paDevicesFunc               = paDevices
)

// Device describes one PortAudio device.
type Device struct {
	ID                int
	Name              string
	HostAPI           string
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64
}

// IsInput reports whether the device can capture.
func (d Device) IsInput() bool {
	return d.MaxInputChannels > 0
}

// Initialize sets up the PortAudio subsystem. Pair with Terminate.
func Initialize() error {
	if err := paLibInitialize(); err != nil {
		return errors.Wrap(err, "failed to initialize PortAudio")
	}
	return nil
}

// Terminate shuts down the PortAudio subsystem.
func Terminate() error {
	if err := paLibTerminate(); err != nil {
		return errors.Wrap(err, "failed to terminate PortAudio")
	}
	return nil
}

// InputDevice resolves a device ID. config.MinDeviceID selects the system
// default input device.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	devices, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	if deviceID == config.MinDeviceID {
		device, err := paLibDefaultInputDeviceFunc()
		if err != nil {
			return nil, errors.Wrap(err, "no default input device")
		}
		return device, nil
	}

	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	if devices[deviceID].MaxInputChannels < 1 {
		return nil, fmt.Errorf("device %d (%s) does not support input", deviceID, devices[deviceID].Name)
	}
	return devices[deviceID], nil
}

// HostDevices lists every device. PortAudio must be initialized.
func HostDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	devices := make([]Device, len(infos))
	for i, info := range infos {
		devices[i] = Device{
			ID:                i,
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			MaxOutputChannels: info.MaxOutputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
		}
		if info.HostApi != nil {
			devices[i].HostAPI = info.HostApi.Name
		}
	}
	return devices, nil
}

// InputDevices initializes PortAudio, collects the capture-capable
// devices and terminates again.
func InputDevices() ([]Device, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	defer Terminate()

	all, err := HostDevices()
	if err != nil {
		return nil, err
	}
	var inputs []Device
	for _, d := range all {
		if d.IsInput() {
			inputs = append(inputs, d)
		}
	}
	return inputs, nil
}

// ListDevices writes a summary of every input device to w.
func ListDevices(w io.Writer) error {
	devices, err := InputDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "\nAvailable Input Devices\n\n")
	if len(devices) == 0 {
		fmt.Fprintln(w, "  (none)")
		return nil
	}
	for _, d := range devices {
		fmt.Fprintf(w, "[%d] %s", d.ID, d.Name)
		if d.HostAPI != "" {
			fmt.Fprintf(w, " (%s)", d.HostAPI)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "    Input channels: %d\n", d.MaxInputChannels)
		fmt.Fprintf(w, "    Default sample rate: %.0f Hz\n\n", d.DefaultSampleRate)
	}
	return nil
}

func paDevices() ([]*portaudio.DeviceInfo, error) {
	devices, err := paLibDevicesFunc()
	if err != nil {
		return nil, errors.Wrap(err, "failed to list audio devices")
	}
	if devices == nil {
		devices = []*portaudio.DeviceInfo{}
	}
	return devices, nil
}

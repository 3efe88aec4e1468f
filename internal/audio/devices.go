package audio

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/gordonklaus/portaudio"
)

// Device describes a capture-capable PortAudio device.
type Device struct {
	Name            string
	MaxInput        int
	DefaultSampleHz float64
	HostAPI         string
	IsDefault       bool
}

func (d Device) String() string {
	mark := ""
	if d.IsDefault {
		mark = " (default)"
	}
	return fmt.Sprintf("%s [%s] %dch @ %.0f Hz%s", d.Name, d.HostAPI, d.MaxInput, d.DefaultSampleHz, mark)
}

// InputDevices returns every device that can record, sorted by host API and
// name. Playback-only devices are skipped since only capture feeds the
// analyzer.
func InputDevices() ([]Device, error) {
	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}

	defaultIndex := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultIndex = def.Index
	}

	var devices []Device
	for _, host := range hosts {
		for _, d := range host.Devices {
			if d.MaxInputChannels < 1 {
				continue
			}
			devices = append(devices, Device{
				Name:            d.Name,
				MaxInput:        d.MaxInputChannels,
				DefaultSampleHz: d.DefaultSampleRate,
				HostAPI:         host.Name,
				IsDefault:       d.Index == defaultIndex,
			})
		}
	}
	sortDevices(devices)
	return devices, nil
}

func sortDevices(devices []Device) {
	sort.Slice(devices, func(i, j int) bool {
		if devices[i].HostAPI == devices[j].HostAPI {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].HostAPI < devices[j].HostAPI
	})
}

// WriteDeviceTable prints devices as an aligned table.
func WriteDeviceTable(w io.Writer, devices []Device) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "HOST\tDEVICE\tCHANNELS\tRATE\tDEFAULT")
	for _, d := range devices {
		def := ""
		if d.IsDefault {
			def = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.0f\t%s\n", d.HostAPI, d.Name, d.MaxInput, d.DefaultSampleHz, def)
	}
	return tw.Flush()
}

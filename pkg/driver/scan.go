package driver

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// LabelSeparator is used to separate labels for a device that is found from
// multiple locations on a host.
const LabelSeparator = ";"

// DevicePath returns the V4L2 node for a device index under devDir.
func DevicePath(devDir string, index int) string {
	return filepath.Join(devDir, "video"+strconv.Itoa(index))
}

// ScanDevices lists /dev/video* style nodes under devDir, sorted by index.
//
// On Linux, the device label will be in the format of:
//
//	pci-0000:00:00.0-usb-0:0:0.0-video-index0;video0
//
// If devDir/v4l/by-path/* is not available (for example in a docker container
// without bindings in /dev/v4l/by-path/), it will be:
//
//	video0;video0
func ScanDevices(devDir string) ([]DeviceInfo, error) {
	byPath := make(map[string]string)
	links, _ := filepath.Glob(filepath.Join(devDir, "v4l", "by-path", "*"))
	for _, link := range links {
		target, err := filepath.EvalSymlinks(link)
		if err != nil {
			continue
		}
		byPath[filepath.Base(target)] = filepath.Base(link)
	}

	nodes, err := filepath.Glob(filepath.Join(devDir, "video*"))
	if err != nil {
		return nil, err
	}

	devices := make([]DeviceInfo, 0, len(nodes))
	for _, node := range nodes {
		short := filepath.Base(node)
		index, err := strconv.Atoi(strings.TrimPrefix(short, "video"))
		if err != nil {
			continue
		}
		if fi, err := os.Stat(node); err != nil || fi.IsDir() {
			continue
		}

		long, ok := byPath[short]
		if !ok {
			long = short
		}
		devices = append(devices, DeviceInfo{
			Index: index,
			Path:  node,
			Label: long + LabelSeparator + short,
		})
	}

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Index < devices[j].Index
	})
	return devices, nil
}

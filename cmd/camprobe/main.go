// Command camprobe lists capture devices and reports which properties a
// camera exposes, whether its focus can be driven manually and which frame
// sizes it delivers.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/focuscam/focuscam/internal/logging"
	"github.com/focuscam/focuscam/internal/probe"
	"github.com/focuscam/focuscam/pkg/driver"

	_ "github.com/focuscam/focuscam/pkg/driver/v4l2"
	_ "github.com/focuscam/focuscam/pkg/driver/videotest"
	_ "github.com/focuscam/focuscam/pkg/driver/webcam"
)

var logger = logging.NewLogger("camprobe")

func main() {
	device := flag.Int("device", -1, "Camera index to probe, all listed devices when negative")
	backends := flag.String("backend", "webcam,v4l2", "Comma separated backends to use")
	list := flag.Bool("list", false, "Only list devices")
	settle := flag.Duration("settle", 100*time.Millisecond, "Wait after each focus write")
	timeout := flag.Duration("timeout", 2*time.Second, "Frame read timeout")
	logLevel := flag.String("log-level", "warn", "Log level")
	flag.Parse()

	if !logging.SetLevel(*logLevel) {
		fmt.Fprintf(os.Stderr, "unknown log level %q\n", *logLevel)
		os.Exit(2)
	}

	resolved, err := driver.GetManager().Resolve(strings.Split(*backends, ","))
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	if err := probe.ListDevices(os.Stdout, resolved); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	if *list {
		return
	}

	opts := probe.DefaultOptions()
	opts.Settle = *settle
	opts.FrameTimeout = *timeout

	// Every backend sees the same devices; stop at the first one that works.
	for _, b := range resolved {
		if probeAll(b, *device, opts) {
			return
		}
	}
	os.Exit(1)
}

// probeAll probes device, or every device b lists, and reports whether all
// of them could be opened.
func probeAll(b driver.Backend, device int, opts probe.Options) bool {
	indices, err := targets(b, device)
	if err != nil {
		logger.Errorf("%s: %v", b.Name(), err)
		return false
	}

	ok := len(indices) > 0
	for _, index := range indices {
		fmt.Println()
		report, err := probe.Probe(b, index, opts)
		if err != nil {
			fmt.Printf("=== device %d via %s ===\ncannot open: %v\n", index, b.Name(), err)
			ok = false
			continue
		}
		report.WriteTo(os.Stdout)
	}
	return ok
}

func targets(b driver.Backend, device int) ([]int, error) {
	if device >= 0 {
		return []int{device}, nil
	}
	devices, err := b.Devices()
	if err != nil {
		return nil, err
	}
	indices := make([]int, 0, len(devices))
	for _, d := range devices {
		indices = append(indices, d.Index)
	}
	return indices, nil
}

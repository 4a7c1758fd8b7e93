package hardware

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// enumTimeout bounds each device-enumeration command; a hung lspci fails
// fast rather than stalling the scheduled run.
const enumTimeout = 30 * time.Second

// Runner executes an external command and returns its stdout. Injectable
// for tests.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return nil, fmt.Errorf("%s failed: %w (stderr: %s)", name, err, string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}

// Profiler enumerates host devices and normalizes them into facts.
type Profiler struct {
	run             Runner
	powerSupplyGlob string
}

// Option configures a Profiler.
type Option func(*Profiler)

// WithRunner overrides the command runner (tests).
func WithRunner(run Runner) Option {
	return func(p *Profiler) { p.run = run }
}

// WithPowerSupplyGlob overrides the sysfs battery probe pattern (tests).
func WithPowerSupplyGlob(glob string) Option {
	return func(p *Profiler) { p.powerSupplyGlob = glob }
}

// NewProfiler returns a Profiler backed by the real lspci/lsusb binaries
// and /sys.
func NewProfiler(opts ...Option) *Profiler {
	p := &Profiler{
		run:             execRunner,
		powerSupplyGlob: "/sys/class/power_supply/*/type",
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Scan enumerates PCI and USB devices plus basic system capabilities and
// returns the normalized fact set. PCI enumeration failure is fatal for
// the scan; USB and sysinfo sources degrade silently since PCI already
// covers the classes that matter most. Idempotent: unchanged hardware
// yields identical facts.
func (p *Profiler) Scan(ctx context.Context) ([]Fact, error) {
	ctx, cancel := context.WithTimeout(ctx, enumTimeout)
	defer cancel()

	facts, err := p.pciFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate PCI devices: %w", err)
	}

	if usb, err := p.usbFacts(ctx); err == nil {
		facts = append(facts, usb...)
	}

	facts = append(facts, p.systemFacts(ctx)...)

	if p.hasBattery() {
		facts = append(facts, Fact{Class: ClassLaptop, Vendor: "system"})
	}

	return normalize(facts), nil
}

// lspci -nn lines look like:
//
//	00:02.0 VGA compatible controller [0300]: Intel Corporation UHD Graphics 630 [8086:3e92] (rev 02)
var pciLine = regexp.MustCompile(`\[([0-9a-f]{4})\]: (.+?) \[([0-9a-f]{4}):([0-9a-f]{4})\]`)

func (p *Profiler) pciFacts(ctx context.Context) ([]Fact, error) {
	out, err := p.run(ctx, "lspci", "-nn")
	if err != nil {
		return nil, err
	}

	var facts []Fact
	for _, line := range strings.Split(string(out), "\n") {
		m := pciLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		classCode, model, vendorID := m[1], m[2], m[3]

		class, ok := pciClasses[classCode]
		if !ok {
			continue // unknown device class, ignored
		}

		vendor, ok := pciVendors[vendorID]
		if !ok {
			vendor = VendorUnknown
		}

		facts = append(facts, Fact{Class: class, Vendor: vendor, Model: strings.TrimSpace(model)})
	}
	return facts, nil
}

// lsusb lines look like:
//
//	Bus 001 Device 003: ID 0bda:8812 Realtek Semiconductor Corp. RTL8812AU
var usbLine = regexp.MustCompile(`ID ([0-9a-f]{4}:[0-9a-f]{4})`)

func (p *Profiler) usbFacts(ctx context.Context) ([]Fact, error) {
	out, err := p.run(ctx, "lsusb")
	if err != nil {
		return nil, err
	}

	var facts []Fact
	for _, line := range strings.Split(string(out), "\n") {
		m := usbLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if fact, ok := usbDevices[m[1]]; ok {
			facts = append(facts, fact)
		}
	}
	return facts, nil
}

// systemFacts collects CPU and memory capabilities. Failures here degrade
// silently; these facts only refine recommendations.
func (p *Profiler) systemFacts(ctx context.Context) []Fact {
	var facts []Fact

	if info, err := cpu.InfoWithContext(ctx); err == nil && len(info) > 0 {
		facts = append(facts, Fact{
			Class:  ClassCPU,
			Vendor: cpuVendor(info[0].VendorID),
			Model:  info[0].ModelName,
		})
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil && vm.Total > 0 {
		facts = append(facts, Fact{
			Class:  ClassMemory,
			Vendor: "system",
			Model:  humanize.IBytes(vm.Total),
		})
	}

	return facts
}

func cpuVendor(vendorID string) string {
	switch vendorID {
	case "GenuineIntel":
		return "intel"
	case "AuthenticAMD":
		return "amd"
	case "":
		return VendorUnknown
	default:
		return strings.ToLower(vendorID)
	}
}

// hasBattery probes sysfs power supplies for a battery, marking laptops.
func (p *Profiler) hasBattery() bool {
	matches, err := filepath.Glob(p.powerSupplyGlob)
	if err != nil {
		return false
	}
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			continue
		}
		if strings.TrimSpace(string(data)) == "Battery" {
			return true
		}
	}
	return false
}

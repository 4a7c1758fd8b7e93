// Package hardware profiles the host into a normalized device-class fact
// list used for recommendation hardware affinity.
package hardware

import (
	"sort"
	"strings"
)

// Device classes emitted by the profiler.
const (
	ClassGPU      = "gpu"
	ClassWiFi     = "wifi"
	ClassEthernet = "ethernet"
	ClassAudio    = "audio"
	ClassNVMe     = "nvme"
	ClassLaptop   = "laptop"
	ClassCPU      = "cpu"
	ClassMemory   = "memory"
)

// VendorUnknown marks a device whose PCI vendor ID has no mapping. The
// class presence is still a useful signal.
const VendorUnknown = "unknown"

// Fact is one normalized device observation.
type Fact struct {
	Class  string
	Vendor string
	Model  string
}

// pciClasses maps PCI class codes (from `lspci -nn`) to coarse classes.
// Devices with unmapped class codes are ignored, not errored.
var pciClasses = map[string]string{
	"0300": ClassGPU, // VGA compatible controller
	"0302": ClassGPU, // 3D controller
	"0380": ClassGPU, // display controller, other
	"0280": ClassWiFi,
	"0200": ClassEthernet,
	"0403": ClassAudio,
	"0108": ClassNVMe,
}

// pciVendors maps PCI vendor IDs to vendor names.
var pciVendors = map[string]string{
	"1002": "amd",
	"1022": "amd",
	"10de": "nvidia",
	"8086": "intel",
	"8087": "intel",
	"14e4": "broadcom",
	"168c": "atheros",
	"10ec": "realtek",
	"15b3": "mellanox",
	"1af4": "virtio",
}

// usbDevices maps known USB vendor:device IDs (from lsusb) to facts.
// USB descriptors carry no usable class code in lsusb's short listing, so
// only devices from this table are recognized; everything else is ignored.
var usbDevices = map[string]Fact{
	"0bda:8812": {Class: ClassWiFi, Vendor: "realtek", Model: "RTL8812AU 802.11ac adapter"},
	"0bda:b812": {Class: ClassWiFi, Vendor: "realtek", Model: "RTL88x2bu 802.11ac adapter"},
	"148f:5370": {Class: ClassWiFi, Vendor: "ralink", Model: "RT5370 802.11n adapter"},
	"2357:010c": {Class: ClassWiFi, Vendor: "tp-link", Model: "TL-WN722N 802.11n adapter"},
	"0b05:17cb": {Class: ClassWiFi, Vendor: "asus", Model: "USB-AC68 802.11ac adapter"},
}

// MatchesTag reports whether the fact satisfies a catalog hardware tag.
// Tags are either a bare class ("gpu", "laptop") or class-vendor
// ("gpu-amd").
func (f Fact) MatchesTag(tag string) bool {
	if tag == f.Class {
		return true
	}
	class, vendor, found := strings.Cut(tag, "-")
	return found && class == f.Class && vendor == f.Vendor
}

// MatchTag reports whether any fact in the set satisfies the tag.
func MatchTag(facts []Fact, tag string) bool {
	for _, f := range facts {
		if f.MatchesTag(tag) {
			return true
		}
	}
	return false
}

// normalize sorts facts by class then vendor and collapses duplicates on
// (class, vendor), keeping the first model seen. Running a scan twice on
// unchanged hardware therefore yields identical output.
func normalize(facts []Fact) []Fact {
	sort.SliceStable(facts, func(i, j int) bool {
		if facts[i].Class != facts[j].Class {
			return facts[i].Class < facts[j].Class
		}
		return facts[i].Vendor < facts[j].Vendor
	})

	out := facts[:0]
	var prev *Fact
	for i := range facts {
		if prev != nil && facts[i].Class == prev.Class && facts[i].Vendor == prev.Vendor {
			continue
		}
		out = append(out, facts[i])
		prev = &out[len(out)-1]
	}
	return out
}

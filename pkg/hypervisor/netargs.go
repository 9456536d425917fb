// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package hypervisor

import "fmt"

// PCIOffset is added to a network interface's index to derive its PCI slot
// (original cc-oci-runtime's PCI_OFFSET, reserved because lower slots are
// consumed by the hypervisor's own devices).
const PCIOffset = 8

// NetIf describes one network interface to attach to the VM.
type NetIf struct {
	TapDevice string
	MACAddr   string // optional
}

// netdevFormat and deviceFormat mirror the original's QEMU_FMT_NETDEV /
// QEMU_FMT_DEVICE(_MAC) printf templates.
const (
	netdevFormat    = "tap,ifname=%s,script=no,downscript=no,id=%s,vhost=on"
	deviceFormat    = "driver=virtio-net-pci,bus=/pci-lite-host/pcie.0,addr=%x,netdev=%s"
	deviceMACFormat = deviceFormat + ",mac=%s"
)

// NetworkArgs returns the -netdev/-device argv pairs for ifaces, one pair
// per interface with PCI slot index+PCIOffset, or ["-net", "none"] if there
// are no interfaces (§4.5 step 1).
func NetworkArgs(ifaces []NetIf) []string {
	if len(ifaces) == 0 {
		return []string{"-net", "none"}
	}

	args := make([]string, 0, len(ifaces)*4)
	for i, iface := range ifaces {
		netdev := fmt.Sprintf(netdevFormat, iface.TapDevice, iface.TapDevice)

		var device string
		if iface.MACAddr == "" {
			device = fmt.Sprintf(deviceFormat, i+PCIOffset, iface.TapDevice)
		} else {
			device = fmt.Sprintf(deviceMACFormat, i+PCIOffset, iface.TapDevice, iface.MACAddr)
		}

		args = append(args, "-netdev", netdev, "-device", device)
	}

	return args
}

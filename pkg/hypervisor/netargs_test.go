// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package hypervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNetworkArgsNoInterfaces(t *testing.T) {
	assert.Equal(t, []string{"-net", "none"}, NetworkArgs(nil))
}

func TestNetworkArgsSingleInterfaceNoMAC(t *testing.T) {
	args := NetworkArgs([]NetIf{{TapDevice: "tap0"}})

	assert.Equal(t, []string{
		"-netdev", "tap,ifname=tap0,script=no,downscript=no,id=tap0,vhost=on",
		"-device", "driver=virtio-net-pci,bus=/pci-lite-host/pcie.0,addr=8,netdev=tap0",
	}, args)
}

func TestNetworkArgsMultipleInterfacesUsePCIOffset(t *testing.T) {
	args := NetworkArgs([]NetIf{
		{TapDevice: "tap0", MACAddr: "02:00:00:00:00:01"},
		{TapDevice: "tap1"},
	})

	assert.Len(t, args, 8)
	assert.Contains(t, args[1], "id=tap0")
	assert.Contains(t, args[3], "addr=8")
	assert.Contains(t, args[3], "mac=02:00:00:00:00:01")
	assert.Contains(t, args[7], "addr=9")
}

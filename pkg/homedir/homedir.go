// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

// Package homedir resolves a workload's HOME directory the same way the
// original cc-oci-runtime did (src/oci-config.c): read the rootfs's
// /etc/passwd, fall back to a stateless-image default file, and finally
// fall back to "/" (spec §6.5).
package homedir

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// statelessDefaultPasswd is consulted when the rootfs carries no /etc/passwd
// of its own (stateless / read-only images).
const statelessDefaultPasswd = "/usr/share/defaults/etc/passwd"

// Resolve returns the HOME directory for uid inside rootfs, following the
// fallback chain: <rootfs>/etc/passwd, then the stateless default file,
// then "/".
func Resolve(rootfs string, uid int) string {
	for _, passwd := range []string{
		filepath.Join(rootfs, "etc", "passwd"),
		statelessDefaultPasswd,
	} {
		if home, ok := lookup(passwd, uid); ok {
			return home
		}
	}

	return "/"
}

// lookup scans an /etc/passwd-formatted file for uid and returns its home
// directory field (field 5, 0-indexed).
func lookup(path string, uid int) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ":")
		if len(fields) < 6 {
			continue
		}

		entryUID, err := strconv.Atoi(fields[2])
		if err != nil || entryUID != uid {
			continue
		}

		if fields[5] == "" {
			return "", false
		}

		return fields[5], true
	}

	return "", false
}

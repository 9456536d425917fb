// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

// Package hypervisor builds the hypervisor command line from a template
// file and launches the VM process (component E, §4.5), grounded on the
// original cc-oci-runtime's src/hypervisor.c token-substitution engine and
// src/networking.c's per-interface argv construction.
package hypervisor

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ArgsFileName is the file the hypervisor command line template is read
// from.
const ArgsFileName = "hypervisor.args"

// Vars names every token cc_oci_expand_cmdline substitutes in the
// hypervisor argument template.
type Vars struct {
	WorkloadDir    string
	Kernel         string
	KernelParams   string
	Image          string
	Size           string // decimal byte count of the image file
	CommsSocket    string
	ProcessSocket  string // fully-formed "-chardev"-style socket device string
	ConsoleDevice  string // fully-formed console chardev string
	Name           string
	UUID           string
	AgentCtlSocket string
	AgentTTYSocket string
}

// tokens returns the substitution table in the order the original applies
// it; order does not affect correctness here since tokens don't nest, but
// keeping a stable slice (rather than ranging a map) keeps output
// reproducible for tests and logs.
func (v Vars) tokens() []struct{ name, value string } {
	return []struct{ name, value string }{
		{"@WORKLOAD_DIR@", v.WorkloadDir},
		{"@KERNEL@", v.Kernel},
		{"@KERNEL_PARAMS@", v.KernelParams},
		{"@IMAGE@", v.Image},
		{"@SIZE@", v.Size},
		{"@COMMS_SOCKET@", v.CommsSocket},
		{"@PROCESS_SOCKET@", v.ProcessSocket},
		{"@CONSOLE_DEVICE@", v.ConsoleDevice},
		{"@NAME@", v.Name},
		{"@UUID@", v.UUID},
		{"@AGENT_CTL_SOCKET@", v.AgentCtlSocket},
		{"@AGENT_TTY_SOCKET@", v.AgentTTYSocket},
	}
}

// ConsoleDevice formats the console chardev string consulted by the
// @CONSOLE_DEVICE@ token (§4.5).
func ConsoleDevice(consoleSocketPath string) string {
	return fmt.Sprintf("socket,path=%s,server,nowait,id=charconsole0,signal=off", consoleSocketPath)
}

// ArgsFilePath searches, in order, the bundle directory, the sysconf
// directory, then the defaults directory for hypervisor.args, returning
// the first one found (§4.5 step 1).
func ArgsFilePath(bundleDir, sysconfDir, defaultsDir string) (string, error) {
	for _, dir := range []string{bundleDir, sysconfDir, defaultsDir} {
		if dir == "" {
			continue
		}
		candidate := filepath.Join(dir, ArgsFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("hypervisor: %s not found in bundle, %s or %s", ArgsFileName, sysconfDir, defaultsDir)
}

// LoadArgsFile reads path and returns its non-comment, non-empty lines with
// per-line whitespace trimmed, preserving the order arguments are given on
// the command line.
func LoadArgsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := stripComment(scanner.Text())
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(lines) == 0 {
		return nil, fmt.Errorf("hypervisor: %s contains no arguments", path)
	}

	return lines, nil
}

// stripComment removes a trailing "# ..." comment, but only when the '#' is
// preceded by whitespace (so e.g. "foo#bar" is left untouched, matching the
// original's rule that args may legitimately contain '#').
func stripComment(line string) string {
	if len(line) > 0 && line[0] == '#' {
		return ""
	}

	for i := 1; i < len(line); i++ {
		if line[i] != '#' {
			continue
		}
		if line[i-1] == ' ' || line[i-1] == '\t' {
			return line[:i]
		}
	}

	return line
}

// Expand substitutes every token in Vars across lines, returning the
// expanded argv. The first line is treated as the hypervisor binary itself
// and is resolved against PATH if it is not already absolute.
func Expand(lines []string, vars Vars) ([]string, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("hypervisor: empty argument template")
	}

	args := make([]string, len(lines))
	copy(args, lines)

	if !filepath.IsAbs(args[0]) {
		if resolved, err := exec.LookPath(args[0]); err == nil {
			args[0] = resolved
		}
	}

	tokens := vars.tokens()
	for i, arg := range args {
		for _, tok := range tokens {
			arg = strings.ReplaceAll(arg, tok.name, tok.value)
		}
		args[i] = arg
	}

	return args, nil
}

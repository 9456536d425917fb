// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package hypervisor

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"code.cloudfoundry.org/bytefmt"
)

// ValidatePaths checks that the image, kernel and workload-root paths
// referenced by the expanded command line actually exist (§4.5 step 2).
func ValidatePaths(imagePath, kernelPath, workloadDir string) error {
	if st, err := os.Stat(imagePath); err != nil || st.IsDir() {
		return fmt.Errorf("hypervisor: image file %s does not exist", imagePath)
	}
	if _, err := os.Stat(kernelPath); err != nil {
		return fmt.Errorf("hypervisor: kernel image %s does not exist", kernelPath)
	}
	if st, err := os.Stat(workloadDir); err != nil || !st.IsDir() {
		return fmt.Errorf("hypervisor: workload directory %s does not exist", workloadDir)
	}
	return nil
}

// maxImageMetadataBytes bounds the image file the runtime will boot,
// mirroring the original's (unenforced) sanity check on image size before
// it's formatted into the @SIZE@ token. The original's log message there
// formatted the pointer to the length instead of its value; preserved here
// only as the intent (bound the image, log the real byte count).
const maxImageMetadataBytes = bytefmt.TERABYTE

// ImageSize returns the byte count substituted for @SIZE@, rejecting
// anything implausibly large.
func ImageSize(imagePath string) (int64, error) {
	st, err := os.Stat(imagePath)
	if err != nil {
		return 0, err
	}

	size := st.Size()
	if size > 0 && uint64(size) > maxImageMetadataBytes {
		return 0, fmt.Errorf("hypervisor: image %s is %s, exceeding the %s bound",
			imagePath, bytefmt.ByteSize(uint64(size)), bytefmt.ByteSize(maxImageMetadataBytes))
	}

	return size, nil
}

// LaunchOptions configures where the hypervisor's own stdout/stderr go.
type LaunchOptions struct {
	// LogDir, if non-empty, causes stdout/stderr to be redirected to
	// <LogDir>/<ID>-hypervisor.{stdout,stderr} instead of being
	// discarded (§4.5 step 3).
	LogDir string
	ID     string
}

// Launch forks and execs the hypervisor with the already-expanded argv
// (§4.5 steps 3-4). The child runs in its own session with no inherited
// fds beyond stdio. Go's exec.Cmd performs the fork/exec atomically and
// surfaces an exec(2) failure as the error returned from Start, which is
// the functional equivalent of the CLOEXEC error-pipe rendezvous the
// original hand-rolled fork/exec used.
func Launch(argv []string, opts LaunchOptions) (*os.Process, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("hypervisor: empty argv")
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if opts.LogDir != "" {
		stdout, err := os.OpenFile(filepath.Join(opts.LogDir, opts.ID+"-hypervisor.stdout"),
			os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			return nil, err
		}
		stderr, err := os.OpenFile(filepath.Join(opts.LogDir, opts.ID+"-hypervisor.stderr"),
			os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			stdout.Close()
			return nil, err
		}
		cmd.Stdout = stdout
		cmd.Stderr = stderr
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	// The process is detached (Setsid); the caller tracks liveness
	// through the pid recorded in the state document rather than Wait,
	// so reap it here to avoid leaving a zombie behind.
	go cmd.Wait()

	return cmd.Process, nil
}

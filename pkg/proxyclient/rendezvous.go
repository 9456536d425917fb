// Copyright (c) 2017 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package proxyclient

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WaitForSocket blocks until path exists, per the readiness rendezvous in
// §4.2: "hello must not be sent until the agent control socket path
// exists." It first stats the path directly (the common case once the
// agent has already started); only if absent does it install a
// directory-change monitor and block on it.
func WaitForSocket(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return err
	}

	// A create between the Stat above and the Add could be missed;
	// check again now that the watch is installed.
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("proxyclient: watcher closed waiting for %s", path)
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 {
				if _, err := os.Stat(path); err == nil {
					return nil
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("proxyclient: watcher closed waiting for %s", path)
			}
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import "time"

// timeNow exists so nowFunc can be swapped in tests that need a
// deterministic Created timestamp.
func timeNow() time.Time {
	return time.Now()
}

// shimSetupTimeout bounds how long create waits for a shim to report a
// setup failure on its error pipe before assuming it parked successfully
// (§6.2 "Shim setup failure").
const shimSetupTimeout = 500 * time.Millisecond

// Copyright (c) 2020 Ant Financial
//
// SPDX-License-Identifier: Apache-2.0
//

package types

const (
	KataRuntimeName           = "io.containerd.kata.v2"
	KataRuntimeNameRegexp     = `\bio\.containerd\.kata.*\.v2\b`
	ContainerdRuntimeTaskPath = "io.containerd.runtime.v2.task"
)

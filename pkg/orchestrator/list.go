// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cc-vmrt/runtime/pkg/types"
	"github.com/docker/go-units"
)

// ListEntry is one row of `list` output (§4.7 "list").
type ListEntry struct {
	ID      string       `json:"id"`
	PID     int          `json:"pid"`
	Status  types.Status `json:"status"`
	Bundle  string       `json:"bundle"`
	Created string       `json:"created"`

	// createdAt backs the table's AGE column; not marshalled (Created
	// already carries the canonical timestamp for JSON consumers).
	createdAt time.Time
}

// List implements §4.7 "list": enumerate every container's state,
// normalizing a dead vm/shim pid to stopped (already done by Store.Load),
// sorted by id for stable output. An individual unreadable state file is
// skipped, never aborting the whole listing (Store.List's own contract).
func (o *Orchestrator) List() ([]ListEntry, error) {
	states, err := o.Store.List()
	if err != nil {
		return nil, err
	}

	if len(states) == 0 {
		// Preserve nilness so FormatJSON reproduces the "list on an
		// empty root prints null" behaviour (§8); encoding/json
		// marshals a nil slice as "null", an empty one as "[]".
		return nil, nil
	}

	entries := make([]ListEntry, 0, len(states))
	for _, st := range states {
		entries = append(entries, ListEntry{
			ID:        st.ID,
			PID:       st.PID,
			Status:    st.Status,
			Bundle:    st.BundlePath,
			Created:   st.Created.Format("2006-01-02T15:04:05.999999999Z07:00"),
			createdAt: st.Created,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	return entries, nil
}

// FormatTable renders entries as the aligned ASCII table `list` prints by
// default. An empty slice renders as just the header row, matching every
// other OCI runtime's `list` with nothing created yet.
func FormatTable(entries []ListEntry) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPID\tSTATUS\tBUNDLE\tCREATED\tAGE")
	for _, e := range entries {
		age := units.HumanDuration(time.Since(e.createdAt)) + " ago"
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n", e.ID, e.PID, e.Status, e.Bundle, e.Created, age)
	}
	w.Flush()
	return b.String()
}

// FormatJSON renders entries as a JSON array, or the literal "null" that
// encoding/json produces for a nil slice when none exist (§8 "list on an
// empty root prints null").
func FormatJSON(entries []ListEntry) (string, error) {
	data, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

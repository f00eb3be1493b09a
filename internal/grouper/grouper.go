// Package grouper folds per-host results into groups of identical output so
// a fleet-wide command reads as a handful of distinct answers.
package grouper

import (
	"github.com/agent462/corral/internal/normalize"
)

// OutputGroup is a set of hosts that produced identical output.
type OutputGroup struct {
	Hosts  []string
	Stdout *string
	Stderr *string
	RC     int
	IsNorm bool // true for the largest group
}

// GroupedResults holds the categorized results of one run.
type GroupedResults struct {
	Groups []OutputGroup
	Failed []normalize.Result
	Facts  []normalize.Result
}

// groupKey identifies identical output. Absent and empty output are
// different keys.
type groupKey struct {
	stdout, stderr       string
	hasStdout, hasStderr bool
	rc                   int
}

func keyOf(r normalize.Result) groupKey {
	k := groupKey{hasStdout: r.Stdout != nil, hasStderr: r.Stderr != nil}
	if r.Stdout != nil {
		k.stdout = *r.Stdout
	}
	if r.Stderr != nil {
		k.stderr = *r.Stderr
	}
	if r.RC != nil {
		k.rc = *r.RC
	}
	return k
}

// Group categorizes results. Failed results are listed separately, fact
// records are passed through, and command output is grouped by identical
// stdout, stderr and return code. The largest group is the norm and comes
// first; on a tie the group seen first wins. Other groups follow in the order
// they first appeared, and hosts within a group keep result order.
func Group(results []normalize.Result) *GroupedResults {
	gr := &GroupedResults{}

	index := make(map[groupKey]int)
	var groups []OutputGroup
	for _, r := range results {
		switch {
		case !r.OK:
			gr.Failed = append(gr.Failed, r)
			continue
		case r.HasFacts():
			gr.Facts = append(gr.Facts, r)
			continue
		}

		k := keyOf(r)
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, OutputGroup{Stdout: r.Stdout, Stderr: r.Stderr, RC: k.rc})
		}
		groups[i].Hosts = append(groups[i].Hosts, r.Host)
	}

	if len(groups) == 0 {
		return gr
	}

	norm := 0
	for i := range groups {
		if len(groups[i].Hosts) > len(groups[norm].Hosts) {
			norm = i
		}
	}
	groups[norm].IsNorm = true

	gr.Groups = append(gr.Groups, groups[norm])
	for i, g := range groups {
		if i != norm {
			gr.Groups = append(gr.Groups, g)
		}
	}
	return gr
}

// OKHosts returns the hosts of every output and facts group.
func (gr *GroupedResults) OKHosts() []string {
	var hosts []string
	for _, g := range gr.Groups {
		hosts = append(hosts, g.Hosts...)
	}
	for _, r := range gr.Facts {
		hosts = append(hosts, r.Host)
	}
	return hosts
}

// DiffersHosts returns the hosts outside the norm group.
func (gr *GroupedResults) DiffersHosts() []string {
	var hosts []string
	for _, g := range gr.Groups {
		if !g.IsNorm {
			hosts = append(hosts, g.Hosts...)
		}
	}
	return hosts
}

// FailedHosts returns the hosts that failed or were unreachable.
func (gr *GroupedResults) FailedHosts() []string {
	hosts := make([]string, 0, len(gr.Failed))
	for _, r := range gr.Failed {
		hosts = append(hosts, r.Host)
	}
	return hosts
}

// UnreachableHosts returns the hosts the engine could not connect to.
func (gr *GroupedResults) UnreachableHosts() []string {
	var hosts []string
	for _, r := range gr.Failed {
		if r.Unreachable {
			hosts = append(hosts, r.Host)
		}
	}
	return hosts
}

package service

import (
	"github.com/s3gw-project/s3gw/pkg/hostparser"
	"github.com/s3gw-project/s3gw/pkg/s3path"
)

// regionTable is the default dispatch.RegionResolver: it trusts the
// region the host parser already extracted from an AWS-style endpoint
// host, and otherwise falls back to the deployment's default region
// (the common case for path-style or custom-domain requests, where the
// host carries no region hint at all).
type regionTable struct {
	defaultRegion string
	known         map[string]bool
}

func newRegionTable(defaultRegion string, known []string) *regionTable {
	t := &regionTable{defaultRegion: defaultRegion, known: map[string]bool{defaultRegion: true}}
	for _, r := range known {
		t.known[r] = true
	}
	return t
}

func (t *regionTable) Resolve(host hostparser.Result, _ s3path.Path) (string, bool) {
	if host.Region != "" && t.known[host.Region] {
		return host.Region, true
	}
	return t.defaultRegion, true
}

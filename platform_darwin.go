//go:build darwin

package mmio

// Darwin has neither flag; huge pages and populate-on-map degrade to
// the default tier.
const (
	_MAP_HUGETLB  = 0
	_MAP_POPULATE = 0
)

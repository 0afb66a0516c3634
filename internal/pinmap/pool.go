package pinmap

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var pinIDPattern = regexp.MustCompile(`^(P[A-Z])(\d+)$`)

// ParsePinID splits a port pin id such as "PB12" into its port label "PB"
// and index 12. Supply and control pins (VDD, NRST, ...) do not parse.
func ParsePinID(id string) (port string, index int, ok bool) {
	m := pinIDPattern.FindStringSubmatch(id)
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

// ComparePinIDs orders pin ids by port letter, then by numeric index, so
// PA2 sorts before PA10. If either id is not of the form P<port><index>
// the raw strings are compared.
func ComparePinIDs(a, b string) int {
	if a == b {
		return 0
	}
	pa, ia, okA := ParsePinID(a)
	pb, ib, okB := ParsePinID(b)
	if !okA || !okB {
		return strings.Compare(a, b)
	}
	if pa != pb {
		return strings.Compare(pa, pb)
	}
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	}
	return 0
}

// SortPinIDs sorts ids in place using ComparePinIDs.
func SortPinIDs(ids []string) {
	slices.SortStableFunc(ids, ComparePinIDs)
}

// pinPool is a set of free pins that remembers insertion order.
// Removal is O(1); lowest scans the remaining members.
type pinPool struct {
	order   []string
	members map[string]struct{}
}

func newPinPool(ids []string) *pinPool {
	p := &pinPool{
		order:   make([]string, 0, len(ids)),
		members: make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		if _, dup := p.members[id]; dup {
			continue
		}
		p.members[id] = struct{}{}
		p.order = append(p.order, id)
	}
	return p
}

func (p *pinPool) has(id string) bool {
	_, ok := p.members[id]
	return ok
}

func (p *pinPool) remove(id string) {
	delete(p.members, id)
}

func (p *pinPool) len() int {
	return len(p.members)
}

// lowest returns the member that sorts first under ComparePinIDs.
func (p *pinPool) lowest() (string, bool) {
	best, found := "", false
	for _, id := range p.order {
		if !p.has(id) {
			continue
		}
		if !found || ComparePinIDs(id, best) < 0 {
			best, found = id, true
		}
	}
	return best, found
}

package match

import (
	"github.com/jangsa/recon/pkg/recon/facility"
	"github.com/jangsa/recon/pkg/recon/normalize"
)

// Kind tells which key a reference entry was matched by.
type Kind int

const (
	None Kind = iota
	ByNameAddress
	ByName
	ByStrippedName
)

func (k Kind) String() string {
	switch k {
	case ByNameAddress:
		return "name+address"
	case ByName:
		return "name"
	case ByStrippedName:
		return "stripped-name"
	default:
		return "none"
	}
}

// lookupOrder is the priority in which keys are tried.
var lookupOrder = [...]Kind{ByNameAddress, ByName, ByStrippedName}

// Pool is a consume-once multiset of previously known records indexed by
// progressively looser keys. Each key holds its entries in first-seen order;
// a taken entry is unavailable under every key.
//
// A Pool belongs to a single reconciliation pass and is not safe for
// concurrent use: which duplicate gets which slot depends on call order.
type Pool struct {
	entries []facility.Record
	used    []bool
	index   map[Kind]map[string][]int
}

// NewPool indexes records. The slice is not modified.
func NewPool(records []facility.Record) *Pool {
	p := &Pool{
		entries: records,
		used:    make([]bool, len(records)),
		index: map[Kind]map[string][]int{
			ByNameAddress:  make(map[string][]int),
			ByName:         make(map[string][]int),
			ByStrippedName: make(map[string][]int),
		},
	}
	for i, r := range records {
		for _, kind := range lookupOrder {
			if key := keyFor(kind, r.Name, r.Address); key != "" {
				p.index[kind][key] = append(p.index[kind][key], i)
			}
		}
	}
	return p
}

// keyFor builds the key of the given kind; an empty name yields no key.
func keyFor(kind Kind, name, address string) string {
	if normalize.Key(name) == "" {
		return ""
	}
	switch kind {
	case ByNameAddress:
		return facility.FullKey(name, address)
	case ByName:
		return normalize.Key(name)
	case ByStrippedName:
		return normalize.StripNonAlnumHangul(name)
	}
	return ""
}

// Take finds the first available entry for (name, address), trying the
// (name+address) key, then name, then stripped name. The entry is consumed.
// It returns the entry's index in the original slice.
func (p *Pool) Take(name, address string) (int, Kind, bool) {
	for _, kind := range lookupOrder {
		key := keyFor(kind, name, address)
		if key == "" {
			continue
		}
		bucket := p.index[kind][key]
		// Drop entries consumed through another key.
		for len(bucket) > 0 && p.used[bucket[0]] {
			bucket = bucket[1:]
		}
		p.index[kind][key] = bucket
		if len(bucket) == 0 {
			continue
		}
		idx := bucket[0]
		p.used[idx] = true
		p.index[kind][key] = bucket[1:]
		return idx, kind, true
	}
	return -1, None, false
}

// Entry returns the record at idx as given to NewPool.
func (p *Pool) Entry(idx int) facility.Record {
	return p.entries[idx]
}

// Remaining returns the indices of entries never taken, in original order.
func (p *Pool) Remaining() []int {
	var out []int
	for i, u := range p.used {
		if !u {
			out = append(out, i)
		}
	}
	return out
}

// Len is the number of entries still available.
func (p *Pool) Len() int {
	n := 0
	for _, u := range p.used {
		if !u {
			n++
		}
	}
	return n
}

// Package dedupe collapses leads that refer to the same business.
package dedupe

import (
	"github.com/sells-group/leads-cli/internal/model"
)

// Leads merges duplicates and returns the survivors in first-seen order.
//
// Two leads are the same business when their normalized registration ids
// are equal. Otherwise they are the same when their normalized names are
// equal and their normalized addresses are equal or both empty, unless
// they carry different registration ids. Duplicates merge first-non-empty-
// wins into the earliest record. Passes repeat until nothing merges, so
// Leads(Leads(x)) equals Leads(x).
func Leads(in []model.Lead) []model.Lead {
	out := make([]model.Lead, len(in))
	for i, l := range in {
		out[i] = l.Clone()
	}
	for {
		next, merged := pass(out)
		out = next
		if !merged {
			return out
		}
	}
}

func pass(leads []model.Lead) ([]model.Lead, bool) {
	out := make([]model.Lead, 0, len(leads))
	byID := make(map[string]int)
	byKey := make(map[string][]int)
	merged := false

	index := func(i int) {
		if id := regID(out[i]); id != "" {
			if _, ok := byID[id]; !ok {
				byID[id] = i
			}
		}
		k := matchKey(out[i])
		byKey[k] = append(byKey[k], i)
	}

	for _, l := range leads {
		target := -1
		if id := regID(l); id != "" {
			if i, ok := byID[id]; ok {
				target = i
			}
		}
		if target < 0 {
			k := matchKey(l)
			for _, i := range byKey[k] {
				if matchKey(out[i]) == k && compatible(out[i], l) {
					target = i
					break
				}
			}
		}
		if target < 0 {
			out = append(out, l)
			index(len(out) - 1)
			continue
		}
		out[target].Absorb(l)
		index(target)
		merged = true
	}
	return out, merged
}

func regID(l model.Lead) string {
	return model.NormalizeRegistrationID(l.RegistrationID)
}

func matchKey(l model.Lead) string {
	return model.NormalizeName(l.Name) + "\x00" + model.NormalizeAddress(l.Address)
}

// compatible reports whether a name+address match may merge: two different
// registration ids are two businesses.
func compatible(a, b model.Lead) bool {
	ia, ib := regID(a), regID(b)
	return ia == "" || ib == "" || ia == ib
}

// PreviousRunSource is recorded in Sources when a previous run filled a gap.
const PreviousRunSource = "previous_run"

// AgainstPrevious fills gaps in current from the previous completed run's
// leads with the same registration id. Nothing is dropped; repeated is the
// number of current leads that matched.
func AgainstPrevious(current, previous []model.Lead) (out []model.Lead, repeated int) {
	prev := make(map[string]model.Lead, len(previous))
	for _, p := range previous {
		if id := regID(p); id != "" {
			if _, ok := prev[id]; !ok {
				prev[id] = p
			}
		}
	}

	out = make([]model.Lead, len(current))
	for i, l := range current {
		out[i] = l.Clone()
		id := regID(l)
		if id == "" {
			continue
		}
		if p, ok := prev[id]; ok {
			repeated++
			out[i].Merge(PreviousRunSource, p.FieldSet())
		}
	}
	return out, repeated
}

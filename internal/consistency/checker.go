// Package consistency cross-checks the three documents against each other and
// against the external rule-code list. All checks are advisory: they never
// fail, and malformed input produces empty findings.
package consistency

import (
	"encoding/json"
	"sort"

	"github.com/and161185/kodeverk-admin/internal/model"
)

// Outcome branches of a condition.
const (
	UtfallOppfylt     = "oppfylt"
	UtfallIkkeOppfylt = "ikkeOppfylt"
)

// TreeLocation points at an alternative in the case-worker tree.
type TreeLocation struct {
	// Path holds the codes from the root category down to and including Kode.
	Path []string `json:"sti"`
	Kode string   `json:"kode"`
}

// Forekomst is one occurrence of an outcome code.
type Forekomst struct {
	Vilkarskode string `json:"vilkårskode"`
	Utfall      string `json:"utfall"`
}

// ExternalGaps compares local calculation rules with the external registry.
type ExternalGaps struct {
	MissingLocally    []string `json:"manglerLokalt"`
	UnknownExternally []string `json:"ukjentEksternt"`
}

// FindUnknownCodesInUiTree returns leaf alternatives whose code is not an
// outcome code of any condition. UUID-shaped codes are never reported.
func FindUnknownCodesInUiTree(conditions model.Kodeverk, tree model.SaksbehandlerUI) []TreeLocation {
	known := conditions.OutcomeCodes()
	var out []TreeLocation
	walkLeaves(tree, func(path []string, kode string) {
		if _, ok := known[kode]; ok {
			return
		}
		out = append(out, TreeLocation{Path: append([]string(nil), path...), Kode: kode})
	})
	return out
}

// FindUnusedConditionCodes returns the outcome codes that no leaf alternative
// references, sorted. UUID-shaped codes are ignored on both sides.
func FindUnusedConditionCodes(conditions model.Kodeverk, tree model.SaksbehandlerUI) []string {
	used := make(map[string]struct{})
	walkLeaves(tree, func(_ []string, kode string) { used[kode] = struct{}{} })

	var out []string
	for kode := range conditions.OutcomeCodes() {
		if kode == "" || model.IsUUIDShaped(kode) {
			continue
		}
		if _, ok := used[kode]; !ok {
			out = append(out, kode)
		}
	}
	sort.Strings(out)
	return out
}

// FindDuplicateOutcomeCodes maps every outcome code that occurs more than
// once, within one condition or across conditions, to its occurrences in
// document order.
func FindDuplicateOutcomeCodes(conditions model.Kodeverk) map[string][]Forekomst {
	all := make(map[string][]Forekomst)
	for _, v := range conditions {
		for _, a := range v.Oppfylt {
			if a.Kode != "" {
				all[a.Kode] = append(all[a.Kode], Forekomst{Vilkarskode: v.Vilkarskode, Utfall: UtfallOppfylt})
			}
		}
		for _, a := range v.IkkeOppfylt {
			if a.Kode != "" {
				all[a.Kode] = append(all[a.Kode], Forekomst{Vilkarskode: v.Vilkarskode, Utfall: UtfallIkkeOppfylt})
			}
		}
	}
	out := make(map[string][]Forekomst)
	for kode, fs := range all {
		if len(fs) > 1 {
			out[kode] = fs
		}
	}
	return out
}

// FindExternalRuleCodeGaps returns the external codes missing from the local
// rules and the local rule codes the external registry does not know.
func FindExternalRuleCodeGaps(rules model.Beregningsregelverk, external []string) ExternalGaps {
	local := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if r.Kode != "" {
			local[r.Kode] = struct{}{}
		}
	}
	ext := make(map[string]struct{}, len(external))
	for _, c := range external {
		if c != "" {
			ext[c] = struct{}{}
		}
	}
	return ExternalGaps{
		MissingLocally:    difference(ext, local),
		UnknownExternally: difference(local, ext),
	}
}

func difference(a, b map[string]struct{}) []string {
	out := []string{}
	for k := range a {
		if _, ok := b[k]; !ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// walkLeaves visits leaf alternatives depth first in document order, skipping
// empty and UUID-shaped codes.
func walkLeaves(tree model.SaksbehandlerUI, visit func(path []string, kode string)) {
	var walk func(path []string, qs []model.Undersporsmal, depth int)
	walk = func(path []string, qs []model.Undersporsmal, depth int) {
		if depth > model.MaxTreeDepth {
			return
		}
		for _, q := range qs {
			qpath := append(path[:len(path):len(path)], q.Kode)
			for _, a := range q.Alternativer {
				apath := append(qpath[:len(qpath):len(qpath)], a.Kode)
				if !a.IsLeaf() {
					walk(apath, a.Undersporsmal, depth+1)
					continue
				}
				if a.Kode == "" || model.IsUUIDShaped(a.Kode) {
					continue
				}
				visit(apath, a.Kode)
			}
		}
	}
	for _, h := range tree {
		walk([]string{h.Kategori}, h.Undersporsmal, 1)
	}
}

// decodeLenient parses raw into T, returning the zero value on any error.
func decodeLenient[T any](raw []byte) T {
	var v T
	if len(raw) == 0 {
		return v
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero
	}
	return v
}

package validate

import (
	"fmt"
	"strings"

	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/model"
)

// TreeFields runs the per-node field checks over the whole case-worker tree
// and aggregates the findings. Branches deeper than MaxTreeDepth are reported
// once and not descended into.
func TreeFields(doc model.SaksbehandlerUI) []errs.FieldIssue {
	var issues []errs.FieldIssue
	for i := range doc {
		prefix := fmt.Sprintf("[%d]", i)
		issues = append(issues, structIssues(prefix, &doc[i])...)
		issues = append(issues, questionFields(prefix+".underspørsmål", doc[i].Undersporsmal, 1)...)
	}
	return issues
}

func questionFields(prefix string, qs []model.Undersporsmal, depth int) []errs.FieldIssue {
	if len(qs) == 0 {
		return nil
	}
	if depth > MaxTreeDepth {
		return []errs.FieldIssue{{Path: prefix, Message: fmt.Sprintf("treet kan ha maks %d nivåer med underspørsmål", MaxTreeDepth)}}
	}
	var issues []errs.FieldIssue
	for i := range qs {
		qp := fmt.Sprintf("%s[%d]", prefix, i)
		issues = append(issues, structIssues(qp, &qs[i])...)
		if len(qs[i].Alternativer) == 0 {
			issues = append(issues, errs.FieldIssue{Path: qp + ".alternativer", Message: "må ha minst ett alternativ"})
		}
		for j := range qs[i].Alternativer {
			alt := &qs[i].Alternativer[j]
			ap := fmt.Sprintf("%s.alternativer[%d]", qp, j)
			issues = append(issues, structIssues(ap, alt)...)
			if !alt.HarUndersporsmal && len(alt.Undersporsmal) > 0 {
				issues = append(issues, errs.FieldIssue{Path: ap + ".harUnderspørsmål", Message: "må være satt når alternativet har underspørsmål"})
			}
			issues = append(issues, questionFields(ap+".underspørsmål", alt.Undersporsmal, depth+1)...)
		}
	}
	return issues
}

// SiblingConflict describes the first list of sibling alternatives found to
// share a code.
type SiblingConflict struct {
	// Path is the sequence of codes from the root category to the underspørsmål
	// owning the offending alternatives.
	Path  []string
	Codes []string
	Depth int
}

// PathString joins the code path for display.
func (c *SiblingConflict) PathString() string { return strings.Join(c.Path, " > ") }

// Message is the user-facing description.
func (c *SiblingConflict) Message() string {
	return "alternativene har like koder: " + strings.Join(c.Codes, ", ")
}

// SiblingUniqueness walks the tree depth first in document order and returns
// the first underspørsmål whose alternatives repeat a code, or nil.
func SiblingUniqueness(doc model.SaksbehandlerUI) *SiblingConflict {
	for _, h := range doc {
		if c := siblings([]string{h.Kategori}, h.Undersporsmal, 1); c != nil {
			return c
		}
	}
	return nil
}

func siblings(path []string, qs []model.Undersporsmal, depth int) *SiblingConflict {
	if depth > MaxTreeDepth {
		return nil
	}
	for _, q := range qs {
		qpath := append(append([]string(nil), path...), q.Kode)
		if dups := duplicates(q.Alternativer); len(dups) > 0 {
			return &SiblingConflict{Path: qpath, Codes: dups, Depth: depth}
		}
		for _, a := range q.Alternativer {
			if c := siblings(append(qpath, a.Kode), a.Undersporsmal, depth+1); c != nil {
				return c
			}
		}
	}
	return nil
}

// duplicates returns the codes occurring more than once, in order of first appearance.
func duplicates(alts []model.Alternativ) []string {
	count := make(map[string]int, len(alts))
	for _, a := range alts {
		count[a.Kode]++
	}
	var out []string
	for _, a := range alts {
		if count[a.Kode] > 1 {
			out = append(out, a.Kode)
			count[a.Kode] = 0
		}
	}
	return out
}

package consistency

import "github.com/and161185/kodeverk-admin/internal/model"

// Input holds the raw document bodies and the external code list. Nil or
// malformed bodies count as empty documents.
type Input struct {
	Kodeverk            []byte
	Beregningsregelverk []byte
	SaksbehandlerUI     []byte
	// External is nil when the external registry was not consulted.
	External []string
}

// Report collects all findings.
type Report struct {
	UnknownUICodes        []TreeLocation         `json:"ukjenteKoderISaksbehandlerUi"`
	UnusedConditionCodes  []string               `json:"ubrukteUtfallskoder"`
	DuplicateOutcomeCodes map[string][]Forekomst `json:"dupliserteUtfallskoder"`
	ExternalRuleCodes     *ExternalGaps          `json:"eksterneRegelkoder,omitempty"`
	// ExternalError explains why ExternalRuleCodes is missing.
	ExternalError string `json:"eksterneRegelkoderFeil,omitempty"`
}

// Findings counts the reported problems.
func (r Report) Findings() int {
	n := len(r.UnknownUICodes) + len(r.UnusedConditionCodes) + len(r.DuplicateOutcomeCodes)
	if r.ExternalRuleCodes != nil {
		n += len(r.ExternalRuleCodes.MissingLocally) + len(r.ExternalRuleCodes.UnknownExternally)
	}
	return n
}

// Check runs every check over in.
func Check(in Input) Report {
	conditions := decodeLenient[model.Kodeverk](in.Kodeverk)
	rules := decodeLenient[model.Beregningsregelverk](in.Beregningsregelverk)
	tree := decodeLenient[model.SaksbehandlerUI](in.SaksbehandlerUI)

	r := Report{
		UnknownUICodes:        FindUnknownCodesInUiTree(conditions, tree),
		UnusedConditionCodes:  FindUnusedConditionCodes(conditions, tree),
		DuplicateOutcomeCodes: FindDuplicateOutcomeCodes(conditions),
	}
	if r.UnknownUICodes == nil {
		r.UnknownUICodes = []TreeLocation{}
	}
	if r.UnusedConditionCodes == nil {
		r.UnusedConditionCodes = []string{}
	}
	if in.External != nil {
		gaps := FindExternalRuleCodeGaps(rules, in.External)
		r.ExternalRuleCodes = &gaps
	}
	return r
}

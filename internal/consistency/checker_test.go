package consistency

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/kodeverk-admin/internal/model"
)

const uuidCode = "a1b2c3d4-0000-4000-8000-000000000000"

func vilkar(kode string, oppfylt, ikkeOppfylt []string) model.Vilkar {
	v := model.Vilkar{Vilkarskode: kode, Beskrivelse: kode}
	for _, c := range oppfylt {
		v.Oppfylt = append(v.Oppfylt, model.Arsak{Kode: c, Beskrivelse: c})
	}
	for _, c := range ikkeOppfylt {
		v.IkkeOppfylt = append(v.IkkeOppfylt, model.Arsak{Kode: c, Beskrivelse: c})
	}
	return v
}

func tree(alts ...model.Alternativ) model.SaksbehandlerUI {
	return model.SaksbehandlerUI{{
		Kategori:      "K",
		Undersporsmal: []model.Undersporsmal{{Kode: "Q", Variant: model.VariantRadio, Alternativer: alts}},
	}}
}

func TestDefaultsAreConsistent(t *testing.T) {
	t.Parallel()

	conditions := model.DefaultKodeverk()
	ui := model.DefaultSaksbehandlerUI()

	require.Empty(t, FindUnknownCodesInUiTree(conditions, ui))
	require.Equal(t, []string{"TAPT_ARBEIDSTID_MINST_HALVPARTEN", "TAPT_ARBEIDSTID_UNDER_HALVPARTEN"},
		FindUnusedConditionCodes(conditions, ui))
	require.Empty(t, FindDuplicateOutcomeCodes(conditions))
}

func TestFindUnknownCodesInUiTree(t *testing.T) {
	t.Parallel()

	conditions := model.Kodeverk{vilkar("V1", []string{"JA"}, []string{"NEI"})}
	ui := tree(
		model.Alternativ{Kode: "JA"},
		model.Alternativ{Kode: "KANSKJE"},
		model.Alternativ{Kode: "MER", HarUndersporsmal: true, Undersporsmal: []model.Undersporsmal{
			{Kode: "Q2", Alternativer: []model.Alternativ{{Kode: "NEI"}, {Kode: "UKJENT"}}},
		}},
	)

	got := FindUnknownCodesInUiTree(conditions, ui)
	require.Equal(t, []TreeLocation{
		{Path: []string{"K", "Q", "KANSKJE"}, Kode: "KANSKJE"},
		{Path: []string{"K", "Q", "MER", "Q2", "UKJENT"}, Kode: "UKJENT"},
	}, got)
}

// UUID-shaped leaf codes are synthetic markers and never raise findings.
func TestUUIDCodesAreExcluded(t *testing.T) {
	t.Parallel()

	conditions := model.Kodeverk{vilkar("V1", []string{"JA", uuidCode}, nil)}
	ui := tree(model.Alternativ{Kode: "JA"}, model.Alternativ{Kode: uuidCode})

	require.Empty(t, FindUnknownCodesInUiTree(model.Kodeverk{}, tree(model.Alternativ{Kode: uuidCode})))
	require.Empty(t, FindUnknownCodesInUiTree(conditions, ui))
	require.Empty(t, FindUnusedConditionCodes(conditions, ui))

	// The UUID outcome code is not reported as unused even when no leaf carries it.
	require.Equal(t, []string{"JA"}, FindUnusedConditionCodes(conditions, tree()))
}

func TestFindUnusedConditionCodes_BranchesDoNotCount(t *testing.T) {
	t.Parallel()

	conditions := model.Kodeverk{vilkar("V1", []string{"JA"}, []string{"NEI"})}
	ui := tree(
		model.Alternativ{Kode: "JA", HarUndersporsmal: true, Undersporsmal: []model.Undersporsmal{
			{Kode: "Q2", Alternativer: []model.Alternativ{{Kode: "NEI"}}},
		}},
	)
	require.Equal(t, []string{"JA"}, FindUnusedConditionCodes(conditions, ui))
}

func TestFindDuplicateOutcomeCodes(t *testing.T) {
	t.Parallel()

	conditions := model.Kodeverk{
		vilkar("V1", []string{"SAMME_KODE"}, []string{"A"}),
		vilkar("V2", nil, []string{"SAMME_KODE"}),
		vilkar("V3", []string{"B", "B"}, nil),
	}

	got := FindDuplicateOutcomeCodes(conditions)
	require.Len(t, got, 2)
	require.Equal(t, []Forekomst{
		{Vilkarskode: "V1", Utfall: UtfallOppfylt},
		{Vilkarskode: "V2", Utfall: UtfallIkkeOppfylt},
	}, got["SAMME_KODE"])
	require.Len(t, got["B"], 2)
}

func TestFindExternalRuleCodeGaps(t *testing.T) {
	t.Parallel()

	rules := model.Beregningsregelverk{{Kode: "LOKAL"}, {Kode: "FELLES"}}
	gaps := FindExternalRuleCodeGaps(rules, []string{"FELLES", "EKSTERN", "EKSTERN", ""})
	require.Equal(t, []string{"EKSTERN"}, gaps.MissingLocally)
	require.Equal(t, []string{"LOKAL"}, gaps.UnknownExternally)

	gaps = FindExternalRuleCodeGaps(nil, nil)
	require.Empty(t, gaps.MissingLocally)
	require.Empty(t, gaps.UnknownExternally)
}

func TestWalkStopsAtMaxDepth(t *testing.T) {
	t.Parallel()

	inner := []model.Undersporsmal{{Kode: "BUNN", Alternativer: []model.Alternativ{{Kode: "DYPT"}}}}
	for i := 0; i < model.MaxTreeDepth; i++ {
		inner = []model.Undersporsmal{{Kode: "Q", Alternativer: []model.Alternativ{
			{Kode: "NESTE", HarUndersporsmal: true, Undersporsmal: inner},
		}}}
	}
	ui := model.SaksbehandlerUI{{Kategori: "K", Undersporsmal: inner}}
	require.Empty(t, FindUnknownCodesInUiTree(nil, ui))
}

func TestCheck_MalformedInputIsEmpty(t *testing.T) {
	t.Parallel()

	r := Check(Input{
		Kodeverk:            []byte(`{"not":"a list"}`),
		Beregningsregelverk: []byte(`garbage`),
		SaksbehandlerUI:     nil,
	})
	require.Empty(t, r.UnknownUICodes)
	require.Empty(t, r.UnusedConditionCodes)
	require.Empty(t, r.DuplicateOutcomeCodes)
	require.Nil(t, r.ExternalRuleCodes)
	require.Zero(t, r.Findings())
}

func TestCheck_Report(t *testing.T) {
	t.Parallel()

	k, _ := json.Marshal(model.Kodeverk{
		vilkar("V1", []string{"SAMME_KODE"}, nil),
		vilkar("V2", []string{"SAMME_KODE"}, nil),
	})
	ui, _ := json.Marshal(tree(model.Alternativ{Kode: "ANNET"}))
	rules, _ := json.Marshal(model.DefaultBeregningsregelverk())

	r := Check(Input{Kodeverk: k, SaksbehandlerUI: ui, Beregningsregelverk: rules, External: []string{"DAGSATS_AVRUNDING", "NY"}})
	require.Len(t, r.DuplicateOutcomeCodes["SAMME_KODE"], 2)
	require.Len(t, r.UnknownUICodes, 1)
	require.Equal(t, []string{"SAMME_KODE"}, r.UnusedConditionCodes)
	require.NotNil(t, r.ExternalRuleCodes)
	require.Equal(t, []string{"NY"}, r.ExternalRuleCodes.MissingLocally)
	require.Equal(t, 4, r.Findings())

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"dupliserteUtfallskoder":{"SAMME_KODE":[{"vilkårskode":"V1","utfall":"oppfylt"}`)
}

package model

import "encoding/json"

var folketrygdloven = Hjemmel{Lovverk: "FOLKETRYGDLOVEN", Lovverksversjon: "2024-01-01", Kapittel: "4", Paragraf: "4-3"}

// DefaultKodeverk is served when no Kodeverk snapshot has been saved yet.
func DefaultKodeverk() Kodeverk {
	hjemmel := folketrygdloven
	return Kodeverk{
		{
			Vilkarskode:    "FTRL_4_3_INNTEKTSTAP",
			Beskrivelse:    "Søker har tapt arbeidsinntekt",
			Vilkarshjemmel: Hjemmel{Lovverk: "FOLKETRYGDLOVEN", Lovverksversjon: "2024-01-01", Kapittel: "4", Paragraf: "4-3", Ledd: "1"},
			Oppfylt: []Arsak{
				{Kode: "HAR_TAPT_ARBEIDSINNTEKT", Beskrivelse: "Har tapt arbeidsinntekt"},
			},
			IkkeOppfylt: []Arsak{
				{Kode: "IKKE_TAPT_ARBEIDSINNTEKT", Beskrivelse: "Har ikke tapt arbeidsinntekt"},
			},
		},
		{
			Vilkarskode:    "FTRL_4_3_ARBEIDSTID",
			Beskrivelse:    "Arbeidstiden er redusert med minst halvparten",
			Vilkarshjemmel: Hjemmel{Lovverk: "FOLKETRYGDLOVEN", Lovverksversjon: "2024-01-01", Kapittel: "4", Paragraf: "4-3", Ledd: "2"},
			Oppfylt: []Arsak{
				{Kode: "TAPT_ARBEIDSTID_MINST_HALVPARTEN", Beskrivelse: "Arbeidstiden er redusert med minst 50 prosent"},
			},
			IkkeOppfylt: []Arsak{
				{Kode: "TAPT_ARBEIDSTID_UNDER_HALVPARTEN", Beskrivelse: "Arbeidstiden er redusert med mindre enn 50 prosent", Vilkarshjemmel: &hjemmel},
			},
		},
	}
}

// DefaultBeregningsregelverk is served when no rule snapshot has been saved yet.
func DefaultBeregningsregelverk() Beregningsregelverk {
	return Beregningsregelverk{
		{
			Kode:           "DAGSATS_AVRUNDING",
			Beskrivelse:    "Dagsats avrundes til nærmeste hele krone",
			Vilkarshjemmel: Hjemmel{Lovverk: "FOLKETRYGDLOVEN", Lovverksversjon: "2024-01-01", Kapittel: "4", Paragraf: "4-12"},
		},
	}
}

// DefaultSaksbehandlerUI is served when no UI tree snapshot has been saved yet.
func DefaultSaksbehandlerUI() SaksbehandlerUI {
	return SaksbehandlerUI{
		{
			Kategori: "INNTEKTSTAP",
			Undersporsmal: []Undersporsmal{
				{
					Kode:     "HAR_TAPT_INNTEKT",
					Sporsmal: "Har søker tapt arbeidsinntekt?",
					Variant:  VariantRadio,
					Alternativer: []Alternativ{
						{Kode: "HAR_TAPT_ARBEIDSINNTEKT", Navn: "Ja"},
						{Kode: "IKKE_TAPT_ARBEIDSINNTEKT", Navn: "Nei"},
					},
				},
			},
		},
	}
}

// DefaultBody returns the JSON encoding of the kind's built-in default document.
func DefaultBody(kind DocumentKind) (json.RawMessage, error) {
	var v any
	switch kind {
	case KindKodeverk:
		v = DefaultKodeverk()
	case KindBeregningsregelverk:
		v = DefaultBeregningsregelverk()
	case KindSaksbehandlerUI:
		v = DefaultSaksbehandlerUI()
	default:
		v = []any{}
	}
	return json.Marshal(v)
}

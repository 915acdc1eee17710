package model

import (
	"encoding/json"
	"fmt"
)

// Hjemmel is a legal citation.
type Hjemmel struct {
	Lovverk         string `json:"lovverk" validate:"required,max=100"`
	Lovverksversjon string `json:"lovverksversjon" validate:"required,max=50"`
	Kapittel        string `json:"kapittel,omitempty" validate:"max=20"`
	Paragraf        string `json:"paragraf" validate:"required,max=20"`
	Ledd            string `json:"ledd,omitempty" validate:"max=20"`
	Setning         string `json:"setning,omitempty" validate:"max=20"`
	Bokstav         string `json:"bokstav,omitempty" validate:"max=5"`
}

// Arsak is an outcome reason under a condition's oppfylt/ikkeOppfylt branch.
type Arsak struct {
	Kode           string   `json:"kode" validate:"required,max=100,kode"`
	Beskrivelse    string   `json:"beskrivelse" validate:"required,max=500"`
	Vilkarshjemmel *Hjemmel `json:"vilkårshjemmel,omitempty"`
}

// Vilkar is one condition in the Kodeverk document.
type Vilkar struct {
	Vilkarskode    string  `json:"vilkårskode" validate:"required,max=100,kode"`
	Beskrivelse    string  `json:"beskrivelse" validate:"required,max=500"`
	Vilkarshjemmel Hjemmel `json:"vilkårshjemmel"`
	Oppfylt        []Arsak `json:"oppfylt" validate:"dive"`
	IkkeOppfylt    []Arsak `json:"ikkeOppfylt" validate:"dive"`
	SistEndretAv   string  `json:"sistEndretAv,omitempty"`
	SistEndretDato string  `json:"sistEndretDato,omitempty"`
}

// Beregningsregel is one calculation rule in the flat Beregningsregelverk list.
type Beregningsregel struct {
	Kode           string  `json:"kode" validate:"required,max=100,kode"`
	Beskrivelse    string  `json:"beskrivelse" validate:"required,max=500"`
	Vilkarshjemmel Hjemmel `json:"vilkårshjemmel"`
	SistEndretAv   string  `json:"sistEndretAv,omitempty"`
	SistEndretDato string  `json:"sistEndretDato,omitempty"`
}

// MaxTreeDepth bounds the number of nested underspørsmål levels in the
// case-worker tree. Traversals stop descending past it.
const MaxTreeDepth = 32

// Variant is the input widget of an Undersporsmal.
type Variant string

const (
	VariantCheckbox Variant = "CHECKBOX"
	VariantRadio    Variant = "RADIO"
	VariantSelect   Variant = "SELECT"
)

// Hovedsporsmal is a top-level question in the case-worker UI tree.
type Hovedsporsmal struct {
	Kategori      string          `json:"kategori" validate:"required,max=100"`
	Undersporsmal []Undersporsmal `json:"underspørsmål" validate:"-"`
}

// Undersporsmal is a question with answer options.
type Undersporsmal struct {
	Kode         string       `json:"kode" validate:"required,max=100,alternativkode"`
	Sporsmal     string       `json:"spørsmål,omitempty" validate:"max=500"`
	Variant      Variant      `json:"variant" validate:"required,oneof=CHECKBOX RADIO SELECT"`
	Alternativer []Alternativ `json:"alternativer" validate:"-"`
}

// Alternativ is an answer option; it may branch into further questions.
type Alternativ struct {
	Kode             string          `json:"kode" validate:"required,max=100,alternativkode"`
	Navn             string          `json:"navn,omitempty" validate:"max=200"`
	HarUndersporsmal bool            `json:"harUnderspørsmål,omitempty"`
	Undersporsmal    []Undersporsmal `json:"underspørsmål,omitempty" validate:"-"`
}

// IsLeaf reports whether the alternative terminates its branch.
func (a Alternativ) IsLeaf() bool { return !a.HarUndersporsmal }

// Document bodies.
type (
	Kodeverk            []Vilkar
	Beregningsregelverk []Beregningsregel
	SaksbehandlerUI     []Hovedsporsmal
)

// Decode parses a raw JSON body into T.
func Decode[T any](raw []byte) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode: %w", err)
	}
	return v, nil
}

// OutcomeCodes returns every oppfylt/ikkeOppfylt code across the conditions.
func (k Kodeverk) OutcomeCodes() map[string]struct{} {
	out := make(map[string]struct{})
	for _, v := range k {
		for _, a := range v.Oppfylt {
			out[a.Kode] = struct{}{}
		}
		for _, a := range v.IkkeOppfylt {
			out[a.Kode] = struct{}{}
		}
	}
	return out
}

// Package validate checks document bodies before they are accepted for save.
//
// Field checks (lengths, enumerations, code character set) are aggregated so
// the editor can show every problem at once. The sibling-uniqueness check of
// the case-worker tree runs afterwards and stops at the first violation.
package validate

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/and161185/kodeverk-admin/internal/errs"
	"github.com/and161185/kodeverk-admin/internal/model"
)

// MaxTreeDepth bounds the number of nested underspørsmål levels.
const MaxTreeDepth = model.MaxTreeDepth

var fields = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("kode", func(fl validator.FieldLevel) bool {
		return model.IsValidKode(fl.Field().String())
	})
	_ = v.RegisterValidation("alternativkode", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return model.IsValidKode(s) || model.IsUUIDShaped(s)
	})
	return v
}

// Document decodes raw as kind and validates it. The returned value is one of
// model.Kodeverk, model.Beregningsregelverk or model.SaksbehandlerUI. Every
// rejection is a *errs.ValidationError.
func Document(kind model.DocumentKind, raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, errs.Invalid("", "dokumentet må være en JSON-liste")
	}
	switch kind {
	case model.KindKodeverk:
		doc, err := model.Decode[model.Kodeverk](raw)
		if err != nil {
			return nil, errs.Invalid("", "ugyldig JSON: "+err.Error())
		}
		return doc, issuesErr(Kodeverk(doc))
	case model.KindBeregningsregelverk:
		doc, err := model.Decode[model.Beregningsregelverk](raw)
		if err != nil {
			return nil, errs.Invalid("", "ugyldig JSON: "+err.Error())
		}
		return doc, issuesErr(Beregningsregelverk(doc))
	case model.KindSaksbehandlerUI:
		doc, err := model.Decode[model.SaksbehandlerUI](raw)
		if err != nil {
			return nil, errs.Invalid("", "ugyldig JSON: "+err.Error())
		}
		if issues := TreeFields(doc); len(issues) > 0 {
			return doc, &errs.ValidationError{Issues: issues}
		}
		if c := SiblingUniqueness(doc); c != nil {
			return doc, errs.Invalid(c.PathString(), c.Message())
		}
		return doc, nil
	default:
		return nil, errs.Invalid("", fmt.Sprintf("ukjent dokumenttype %q", kind))
	}
}

// Kodeverk checks every condition and its outcome reasons. Condition codes
// must be unique; duplicate outcome codes are only reported by the
// consistency checker.
func Kodeverk(doc model.Kodeverk) []errs.FieldIssue {
	var issues []errs.FieldIssue
	seen := make(map[string]int, len(doc))
	for i := range doc {
		prefix := fmt.Sprintf("[%d]", i)
		issues = append(issues, structIssues(prefix, &doc[i])...)
		if c := doc[i].Vilkarskode; c != "" {
			if first, dup := seen[c]; dup {
				issues = append(issues, errs.FieldIssue{
					Path:    prefix + ".vilkårskode",
					Message: fmt.Sprintf("vilkårskoden %s er allerede brukt i [%d]", c, first),
				})
			} else {
				seen[c] = i
			}
		}
	}
	return issues
}

// Beregningsregelverk checks every rule; rule codes must be unique.
func Beregningsregelverk(doc model.Beregningsregelverk) []errs.FieldIssue {
	var issues []errs.FieldIssue
	seen := make(map[string]int, len(doc))
	for i := range doc {
		prefix := fmt.Sprintf("[%d]", i)
		issues = append(issues, structIssues(prefix, &doc[i])...)
		if c := doc[i].Kode; c != "" {
			if first, dup := seen[c]; dup {
				issues = append(issues, errs.FieldIssue{
					Path:    prefix + ".kode",
					Message: fmt.Sprintf("koden %s er allerede brukt i [%d]", c, first),
				})
			} else {
				seen[c] = i
			}
		}
	}
	return issues
}

func issuesErr(issues []errs.FieldIssue) error {
	if len(issues) == 0 {
		return nil
	}
	return &errs.ValidationError{Issues: issues}
}

// structIssues runs the tag checks on one struct and prefixes each failing
// field path. The root type name is dropped from the validator namespace.
func structIssues(prefix string, s any) []errs.FieldIssue {
	err := fields.Struct(s)
	if err == nil {
		return nil
	}
	var fe validator.ValidationErrors
	if !errors.As(err, &fe) {
		return []errs.FieldIssue{{Path: prefix, Message: err.Error()}}
	}
	out := make([]errs.FieldIssue, 0, len(fe))
	for _, f := range fe {
		_, rest, _ := strings.Cut(f.Namespace(), ".")
		out = append(out, errs.FieldIssue{Path: prefix + "." + rest, Message: message(f)})
	}
	return out
}

func message(f validator.FieldError) string {
	switch f.Tag() {
	case "required":
		return "må fylles ut"
	case "max":
		return fmt.Sprintf("kan ha maks %s tegn", f.Param())
	case "kode":
		return "kan bare inneholde A-Z, 0-9 og _"
	case "alternativkode":
		return "må være en kode (A-Z, 0-9 og _) eller en UUID"
	case "oneof":
		return "må være en av " + strings.ReplaceAll(f.Param(), " ", ", ")
	default:
		return fmt.Sprintf("ugyldig verdi (%s)", f.Tag())
	}
}

package versioned

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/and161185/kodeverk-admin/internal/model"
	"github.com/and161185/kodeverk-admin/internal/repository/memory"
)

// TestLatestIsLastSave verifies that after saves S1..Sn the latest snapshot is Sn.
// Property: GetLatest(kind) == Sn for any n >= 1
func TestLatestIsLastSave(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("latest snapshot is the last save", prop.ForAll(
		func(n int, kindIdx int) bool {
			ctx := context.Background()
			// All saves share one frozen instant, so ordering rests on the version clock.
			s := New(memory.NewWithClock(frozen), WithClock(NewClock(frozen)))
			kind := model.Kinds[kindIdx]

			var last model.VersionInfo
			for i := 0; i < n; i++ {
				info, err := s.Save(ctx, kind, json.RawMessage(fmt.Sprintf(`[%d]`, i)), "A")
				if err != nil {
					return false
				}
				last = info
			}
			doc, err := s.GetLatest(ctx, kind)
			if err != nil {
				return false
			}
			return doc.VersionID == last.VersionID && string(doc.Body) == fmt.Sprintf(`[%d]`, n-1)
		},
		gen.IntRange(1, 40),
		gen.IntRange(0, len(model.Kinds)-1),
	))

	properties.TestingRun(t)
}

// Package secondary reads independent roof-status inputs used to
// corroborate the camera verdict. Readings show up in logs and the
// diagnostics endpoint; they never override the classifier.
package secondary

import (
	"context"
	"time"

	"roofmon/internal/types"
)

// Source is one independent roof-status input.
type Source interface {
	// Read returns the label the source currently reports and when that
	// reading was produced.
	Read(ctx context.Context) (types.Label, time.Time, error)
	// Name identifies the source in logs.
	Name() string
}

package catalog

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/sqlvalley/internal/domain"
)

// Bonus kinds
const (
	BonusNoHints      = "no_hints"
	BonusUnderSeconds = "under_seconds"
	BonusMaxAttempts  = "max_attempts"
)

func compileBonus(b BonusFile) (func(domain.Telemetry) bool, error) {
	switch b.Kind {
	case BonusNoHints:
		return func(t domain.Telemetry) bool { return t.HintsUsed == 0 }, nil
	case BonusUnderSeconds:
		if b.Value <= 0 {
			return nil, fmt.Errorf("%s requires a positive value", b.Kind)
		}
		limit := time.Duration(b.Value * float64(time.Second))
		return func(t domain.Telemetry) bool { return t.TimeSpent < limit }, nil
	case BonusMaxAttempts:
		if b.Value < 1 {
			return nil, fmt.Errorf("%s requires a value of at least 1", b.Kind)
		}
		limit := int(b.Value)
		return func(t domain.Telemetry) bool { return t.Attempts <= limit }, nil
	default:
		return nil, fmt.Errorf("unknown bonus kind %q", b.Kind)
	}
}

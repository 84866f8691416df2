package model

// Tier is the confidence/priority class of a finished lead.
type Tier int

const (
	TierVeryLow Tier = iota
	TierLow
	TierMedium
	TierHigh
)

func (t Tier) String() string {
	switch t {
	case TierHigh:
		return "high"
	case TierMedium:
		return "medium"
	case TierLow:
		return "low"
	default:
		return "very_low"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Classify evaluates the tier rules top-down; first match wins.
func Classify(l Lead) Tier {
	switch {
	case l.Has(FieldEmail) && l.Has(FieldWebsite):
		return TierHigh
	case l.Has(FieldPhone) && l.Has(FieldWebsite):
		return TierMedium
	case l.Has(FieldPhone):
		return TierLow
	default:
		return TierVeryLow
	}
}

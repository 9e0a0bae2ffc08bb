package domain

import "strings"

// ThreatKind is a tagged threat category. Equality is used as the dedup key
// and catalogue order (see internal/catalogue) establishes display severity
// and tie-breaks for the primary kind of a multi-threat detection.
type ThreatKind string

const (
	ThreatHypersonic    ThreatKind = "hypersonic"
	ThreatBallistic     ThreatKind = "ballistic"
	ThreatCruiseMissile ThreatKind = "cruise_missile"
	ThreatGuidedBomb    ThreatKind = "guided_bomb"
	ThreatShahed        ThreatKind = "shahed"
	ThreatReconDrone    ThreatKind = "recon_drone"
	ThreatAircraft      ThreatKind = "aircraft"
	ThreatMissile       ThreatKind = "missile"
	ThreatOther         ThreatKind = "other"
	ThreatAllClear      ThreatKind = "all_clear"
)

// Emoji returns the subscriber-visible emoji for the kind.
func (k ThreatKind) Emoji() string {
	switch k {
	case ThreatBallistic:
		return "‼️🚀"
	case ThreatHypersonic:
		return "‼️⚡"
	case ThreatCruiseMissile:
		return "🚀"
	case ThreatGuidedBomb:
		return "💣"
	case ThreatMissile:
		return "🚀"
	case ThreatShahed:
		return "🔺"
	case ThreatReconDrone:
		return "🛸"
	case ThreatAircraft:
		return "✈️"
	case ThreatAllClear:
		return "✅"
	default:
		return "⚠️"
	}
}

// Label returns the short Ukrainian label for the kind.
func (k ThreatKind) Label() string {
	switch k {
	case ThreatBallistic:
		return "Балістика"
	case ThreatHypersonic:
		return "Гіперзвук"
	case ThreatCruiseMissile:
		return "Крилата ракета"
	case ThreatGuidedBomb:
		return "КАБ"
	case ThreatMissile:
		return "Ракета"
	case ThreatShahed:
		return "Шахед / дрон"
	case ThreatReconDrone:
		return "Розвідувальний БПЛА"
	case ThreatAircraft:
		return "Авіація"
	case ThreatAllClear:
		return "Відбій загрози"
	default:
		return "Загроза"
	}
}

// VariantName is the stable English name used for LLM JSON interchange.
func (k ThreatKind) VariantName() string {
	switch k {
	case ThreatBallistic:
		return "Ballistic"
	case ThreatHypersonic:
		return "Hypersonic"
	case ThreatCruiseMissile:
		return "CruiseMissile"
	case ThreatGuidedBomb:
		return "GuidedBomb"
	case ThreatMissile:
		return "Missile"
	case ThreatShahed:
		return "Shahed"
	case ThreatReconDrone:
		return "ReconDrone"
	case ThreatAircraft:
		return "Aircraft"
	case ThreatAllClear:
		return "AllClear"
	default:
		return "Other"
	}
}

// ThreatKindFromVariantName parses the LLM's JSON string, case-insensitive.
// Mirrors the original filter's accepted aliases (snake_case and "kab").
func ThreatKindFromVariantName(s string) (ThreatKind, bool) {
	switch strings.ToLower(s) {
	case "ballistic":
		return ThreatBallistic, true
	case "hypersonic":
		return ThreatHypersonic, true
	case "cruisemissile", "cruise_missile":
		return ThreatCruiseMissile, true
	case "guidedbomb", "guided_bomb", "kab":
		return ThreatGuidedBomb, true
	case "missile":
		return ThreatMissile, true
	case "shahed":
		return ThreatShahed, true
	case "recondrone", "recon_drone":
		return ThreatReconDrone, true
	case "aircraft":
		return ThreatAircraft, true
	case "allclear", "all_clear":
		return ThreatAllClear, true
	case "other":
		return ThreatOther, true
	default:
		return "", false
	}
}

// Proximity is a total order: None < Oblast < City < District.
type Proximity int

const (
	ProximityNone Proximity = iota
	ProximityOblast
	ProximityCity
	ProximityDistrict
)

// Tag returns the subscriber-visible proximity banner.
func (p Proximity) Tag() string {
	switch p {
	case ProximityDistrict:
		return "🔴 РАЙОН"
	case ProximityCity:
		return "🟠 МІСТО"
	case ProximityOblast:
		return "🟡 ОБЛАСТЬ"
	default:
		return ""
	}
}

func (p Proximity) String() string {
	switch p {
	case ProximityDistrict:
		return "District"
	case ProximityCity:
		return "City"
	case ProximityOblast:
		return "Oblast"
	default:
		return "None"
	}
}

// NationwideTag is shown instead of a Proximity tag for nationwide alerts.
const NationwideTag = "🟣 ВСЯ УКРАЇНА"

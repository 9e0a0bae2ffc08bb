package classify

import (
	"strings"
	"testing"

	"tg-alert-filter/internal/domain"
)

func TestClassifyAllClearExclusive(t *testing.T) {
	res := Classify(strings.ToLower("Відбій тривоги, загроза минула"))
	if !res.HasKind || res.Primary != domain.ThreatAllClear {
		t.Fatalf("expected AllClear, got %+v", res)
	}
	if len(res.Kinds) != 1 {
		t.Fatalf("AllClear must be exclusive, got %v", res.Kinds)
	}
}

func TestClassifyNoThreat(t *testing.T) {
	res := Classify(strings.ToLower("Доброго ранку, гарного дня всім"))
	if res.HasKind {
		t.Fatalf("expected no threat, got %+v", res)
	}
}

func TestClassifySuppressesGenericMissileWhenSpecificPresent(t *testing.T) {
	res := Classify(strings.ToLower("Балістична ракета, пуск зафіксовано"))
	for _, k := range res.Kinds {
		if k == domain.ThreatMissile {
			t.Fatalf("generic Missile should be suppressed alongside Ballistic, got %v", res.Kinds)
		}
	}
	if res.Primary != domain.ThreatBallistic {
		t.Fatalf("expected Ballistic primary, got %v", res.Primary)
	}
}

func TestClassifySuppressesOtherWhenAnythingSpecificMatched(t *testing.T) {
	res := Classify(strings.ToLower("Загроза: шахед курсом на область"))
	for _, k := range res.Kinds {
		if k == domain.ThreatOther {
			t.Fatalf("Other should be suppressed when Shahed matched, got %v", res.Kinds)
		}
	}
}

func TestClassifyPrimaryIsDeterministicCatalogueOrder(t *testing.T) {
	res := Classify(strings.ToLower("Шахеди та балістика одночасно"))
	if res.Primary != domain.ThreatBallistic {
		t.Fatalf("expected catalogue-order primary Ballistic, got %v", res.Primary)
	}
}

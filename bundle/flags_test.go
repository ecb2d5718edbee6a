package bundle

import "testing"

func TestErrorFlagsHasAndString(t *testing.T) {
	var flags ErrorFlags
	setFlag(&flags, FailedToParse)
	setFlag(&flags, RouteNeeded)

	if !flags.Has(FailedToParse) || !flags.Has(RouteNeeded) {
		t.Fatalf("expected both set flags to report Has true: %v", flags)
	}
	if flags.Has(StoreFailure) {
		t.Fatal("expected an unset flag to report Has false")
	}
	if flags.String() == "NONE" {
		t.Fatal("expected a non-trivial string for a non-zero flag set")
	}
	if (ErrorFlags(0)).String() != "NONE" {
		t.Fatal("expected \"NONE\" for a zero flag set")
	}
}

func TestSetFlagExportedWrapperMatchesPrivate(t *testing.T) {
	var flags ErrorFlags
	SetFlag(&flags, Dropped)
	if !flags.Has(Dropped) {
		t.Fatal("expected the exported SetFlag to behave like setFlag")
	}
}

func TestOutcomeString(t *testing.T) {
	cases := map[Outcome]string{
		Success:               "SUCCESS",
		PendingAcceptance:     "PENDING_ACCEPTANCE",
		PendingExpiration:     "PENDING_EXPIRATION",
		Duplicate:             "DUPLICATE",
		Full:                  "FULL",
		Timeout:               "TIMEOUT",
		Outcome(999):          "UNKNOWN",
	}
	for o, want := range cases {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", o, got, want)
		}
	}
}

func TestNewCoreErrorAccumulatesFlags(t *testing.T) {
	err := newCoreError("test category", FailedToParse, RouteNeeded)
	if err.Category != "test category" {
		t.Fatalf("Category = %q", err.Category)
	}
	if !err.Flags.Has(FailedToParse) || !err.Flags.Has(RouteNeeded) {
		t.Fatalf("expected both flags accumulated, got %v", err.Flags)
	}
	if err.Error() == "" {
		t.Fatal("expected a non-empty error string")
	}
}

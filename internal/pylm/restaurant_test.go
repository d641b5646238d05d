package pylm

import "testing"

func TestRestaurantAddRemoveRoundtrip(t *testing.T) {
	r := NewRestaurant[string]()
	isNew := r.Add("a", 0.1, 1.0, 0.5)
	if !isNew {
		t.Fatal("first seating of a fresh dish must open a new table")
	}
	if r.c("a") != 1 || r.t("a") != 1 || r.C() != 1 || r.T() != 1 {
		t.Fatalf("unexpected counts after first add: c=%d t=%d C=%d T=%d", r.c("a"), r.t("a"), r.C(), r.T())
	}

	wasLast := r.Remove("a")
	if !wasLast {
		t.Fatal("removing the only customer must vacate its table")
	}
	if !r.empty() {
		t.Fatalf("restaurant should be empty after removing its only customer, got C=%d T=%d", r.C(), r.T())
	}
}

func TestRestaurantManyCustomersShareTables(t *testing.T) {
	r := NewRestaurant[string]()
	for i := 0; i < 200; i++ {
		r.Add("a", 0.0, 1.0, 0.1)
	}
	if r.c("a") != 200 {
		t.Fatalf("c(a) = %d, want 200", r.c("a"))
	}
	if r.t("a") == 0 || r.t("a") > 200 {
		t.Fatalf("t(a) = %d, should be between 1 and 200", r.t("a"))
	}
	if r.T() != r.t("a") {
		t.Fatalf("T() = %d should equal t(a) = %d with a single dish", r.T(), r.t("a"))
	}
}

func TestRestaurantRemoveUnseatedPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	r := NewRestaurant[string]()
	r.Remove("never-added")
}

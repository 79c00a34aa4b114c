package store

import "testing"

func TestUserUpsert(t *testing.T) {
	_, _, _, us := setupTestDB(t)

	u, err := us.Upsert(7, "Alice", "https://cdn.example.com/a.png")
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if u.ID != 7 || u.DisplayName != "Alice" {
		t.Errorf("got %+v", u)
	}

	// Second upsert refreshes display data in place
	u, err = us.Upsert(7, "Alice B.", "")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if u.DisplayName != "Alice B." {
		t.Errorf("display name = %q, want updated value", u.DisplayName)
	}

	got, err := us.GetByID(7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.DisplayName != "Alice B." {
		t.Errorf("got %+v", got)
	}
}

func TestUserGetByIDMissing(t *testing.T) {
	_, _, _, us := setupTestDB(t)

	got, err := us.GetByID(404)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

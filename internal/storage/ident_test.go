package storage

import "testing"

func TestValidIdent(t *testing.T) {
	valid := []string{"a", "_", "accounts", "src_accounts", "Col9", "_private"}
	for _, name := range valid {
		if !ValidIdent(name) {
			t.Errorf("ValidIdent(%q) = false, want true", name)
		}
	}

	invalid := []string{"", "9col", "a-b", "a b", "name;drop", `"quoted"`, "naïve", "tab\tle"}
	for _, name := range invalid {
		if ValidIdent(name) {
			t.Errorf("ValidIdent(%q) = true, want false", name)
		}
	}
}

func TestValidTableIdent(t *testing.T) {
	valid := []string{"accounts", "public.accounts", "dbo.Orders"}
	for _, name := range valid {
		if !ValidTableIdent(name) {
			t.Errorf("ValidTableIdent(%q) = false, want true", name)
		}
	}

	invalid := []string{"", ".", "a.", ".b", "a.b.c", "public.acc ounts", "public.9t"}
	for _, name := range invalid {
		if ValidTableIdent(name) {
			t.Errorf("ValidTableIdent(%q) = true, want false", name)
		}
	}
}

func TestCheckBatchShape(t *testing.T) {
	cols := []string{"id", "name"}
	rows := [][]any{{1, "alice"}, {2, "bob"}}

	if err := CheckBatchShape("public.accounts", cols, rows); err != nil {
		t.Fatalf("well-formed batch rejected: %v", err)
	}
	if err := CheckBatchShape("accounts; --", cols, rows); err == nil {
		t.Fatal("hostile table name accepted")
	}
	if err := CheckBatchShape("accounts", []string{"id", "na me"}, rows); err == nil {
		t.Fatal("hostile column name accepted")
	}
	if err := CheckBatchShape("accounts", nil, rows); err == nil {
		t.Fatal("empty column list accepted")
	}
	if err := CheckBatchShape("accounts", cols, [][]any{{1, "alice"}, {2}}); err == nil {
		t.Fatal("ragged rows accepted")
	}
	if err := CheckBatchShape("accounts", cols, nil); err != nil {
		t.Fatalf("empty batch rejected: %v", err)
	}
}

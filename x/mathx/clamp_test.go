package mathx

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 3); got != 3 {
		t.Fatalf("Clamp(5,0,3) = %d, want 3", got)
	}
	if got := Clamp(-1, 0, 3); got != 0 {
		t.Fatalf("Clamp(-1,0,3) = %d, want 0", got)
	}
	if got := Clamp(2, 3, 0); got != 2 {
		t.Fatalf("Clamp with swapped bounds = %d, want 2", got)
	}
}

func TestModPositive(t *testing.T) {
	if got := ModPositive(-5, 60000); got != 59995 {
		t.Fatalf("ModPositive(-5, 60000) = %d, want 59995", got)
	}
	if got := ModPositive(60001, 60000); got != 1 {
		t.Fatalf("ModPositive(60001, 60000) = %d, want 1", got)
	}
	if got := ModPositive(7, 60000); got != 7 {
		t.Fatalf("ModPositive(7, 60000) = %d, want 7", got)
	}
}

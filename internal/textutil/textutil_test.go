package textutil

import "testing"

func TestTruncateCountsRunes(t *testing.T) {
	t.Parallel()

	if got := Truncate("소속명탕", 2); got != "소속" {
		t.Fatalf("Truncate = %q, want 소속", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("Truncate = %q, want abc", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("Truncate = %q, want empty", got)
	}
	if RuneLen("한의학") != 3 {
		t.Fatalf("RuneLen counted bytes")
	}
}

func TestCleanStripsControlCharacters(t *testing.T) {
	t.Parallel()

	got := Clean("  주소증\x00:\t두통 \n\n 어지럼 ")
	if got != "주소증: 두통 어지럼" {
		t.Fatalf("Clean = %q", got)
	}
}

package conv

import "testing"

func TestItoa(t *testing.T) {
	var buf [20]byte
	cases := map[int64]string{0: "0", 7: "7", -1: "-1", 5831: "5831", -9223372036854775807: "-9223372036854775807"}
	for n, want := range cases {
		if got := string(Itoa(buf[:], n)); got != want {
			t.Errorf("Itoa(%d)=%q want %q", n, got, want)
		}
	}
	if got := Itoa(nil, 5); len(got) != 0 {
		t.Fatalf("empty buf gave %q", got)
	}
}

func TestUtoa(t *testing.T) {
	var buf [20]byte
	if got := string(Utoa(buf[:], 18446744073709551615)); got != "18446744073709551615" {
		t.Fatalf("got %q", got)
	}
	if got := string(Utoa(buf[:], 0)); got != "0" {
		t.Fatalf("got %q", got)
	}
}

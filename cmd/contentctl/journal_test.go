package main

import "testing"

func TestPlural(t *testing.T) {
	cases := map[int]string{0: "ies", 1: "y", 2: "ies"}
	for n, want := range cases {
		if got := plural(n); got != want {
			t.Errorf("plural(%d) = %q, want %q", n, got, want)
		}
	}
}

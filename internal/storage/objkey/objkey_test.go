package objkey

import "testing"

func TestEscape(t *testing.T) {
	cases := map[string]string{
		"groups/site a/roof/x.jpg": "groups/site%20a/roof/x.jpg",
		"groups/G/c/id.jpg":        "groups/G/c/id.jpg",
		"groups/50%/c/id?.jpg":     "groups/50%25/c/id%3F.jpg",
	}
	for in, want := range cases {
		if got := Escape(in); got != want {
			t.Fatalf("Escape(%q) = %q, want %q", in, got, want)
		}
	}
}

package env

import (
	"sort"
	"strings"
	"testing"
)

// FuzzMergeOrdering checks that Merge yields one sorted entry per key and that
// the last override for a key wins.
func FuzzMergeOrdering(f *testing.F) {
	f.Add("PATH=/usr/bin\nHOME=/home/me", "PATH=/opt/bin:${PATH}")
	f.Add("A=1\nA=2", "A=3")
	f.Add("X=${Y}", "Y=${X}")
	f.Add("", "=novalue\nK=")

	f.Fuzz(func(t *testing.T, overrides, perProc string) {
		e := FromMap(map[string]string{"BASE": "b"})
		for _, kv := range lines(overrides, 16) {
			if i := strings.IndexByte(kv, '='); i > 0 {
				e = e.WithSet(kv[:i], kv[i+1:])
				if got, _ := e.Lookup(kv[:i]); got != kv[i+1:] {
					t.Fatalf("Lookup(%q) = %q after WithSet", kv[:i], got)
				}
			}
		}
		per := lines(perProc, 16)
		out := e.Merge(per)

		keys := make([]string, 0, len(out))
		for _, kv := range out {
			i := strings.IndexByte(kv, '=')
			if i <= 0 {
				t.Fatalf("bad pair: %q", kv)
			}
			keys = append(keys, kv[:i])
		}
		if !sort.StringsAreSorted(keys) {
			t.Fatalf("keys not sorted: %v", keys)
		}
		for i := 1; i < len(keys); i++ {
			if keys[i] == keys[i-1] {
				t.Fatalf("duplicate key %q", keys[i])
			}
		}

		last := map[string]string{}
		for _, kv := range per {
			if i := strings.IndexByte(kv, '='); i > 0 {
				last[kv[:i]] = kv[i+1:]
			}
		}
		for k, v := range last {
			if strings.Contains(v, "${") {
				continue
			}
			want := k + "=" + v
			found := false
			for _, kv := range out {
				if kv == want {
					found = true
					break
				}
			}
			if !found {
				t.Fatalf("per-process %q missing from %v", want, out)
			}
		}
	})
}

// FuzzExpandIdentity checks that text without a ${ reference is untouched.
func FuzzExpandIdentity(f *testing.F) {
	f.Add("plain text")
	f.Add("$HOME/bin")
	f.Add("{}}${")
	f.Fuzz(func(t *testing.T, s string) {
		m := Var{"HOME": "/home/me"}
		if !strings.Contains(s, "${") {
			if got := expand(s, m); got != s {
				t.Fatalf("expand(%q) = %q", s, got)
			}
		}
	})
}

// lines splits s by newlines, dropping blanks, and keeps at most limit entries.
func lines(s string, limit int) []string {
	var out []string
	for _, ln := range strings.Split(s, "\n") {
		ln = strings.TrimSpace(ln)
		if ln != "" {
			out = append(out, ln)
		}
		if len(out) == limit {
			break
		}
	}
	return out
}

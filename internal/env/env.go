package env

import (
	"os"
	"runtime"
	"sort"
	"strings"
)

type Var map[string]string

// Env is an immutable view of environment variables. Child processes and path
// tables read from it instead of os.Getenv so tests can supply a fixed set.
type Env struct {
	base Var // snapshot of the OS environment (or a fixed map)
	vars Var // overrides applied on top of base
	// fold makes keys match regardless of case, as Windows does: "Path" is
	// found as "PATH" and WithSet("PATH") replaces it.
	fold bool
}

func New() *Env {
	return &Env{base: make(Var), vars: make(Var)}
}

// FromOS snapshots the current process environment. On Windows keys are
// case-insensitive.
func FromOS() *Env {
	base := make(Var)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			base[kv[:i]] = kv[i+1:]
		}
	}
	return &Env{base: base, vars: make(Var), fold: runtime.GOOS == "windows"}
}

// FromMap builds an Env from a fixed map; the map is copied.
func FromMap(m map[string]string) *Env {
	base := make(Var, len(m))
	for k, v := range m {
		if k == "" {
			continue
		}
		base[k] = v
	}
	return &Env{base: base, vars: make(Var)}
}

// CaseInsensitive returns a copy of e whose keys match regardless of case.
func (e *Env) CaseInsensitive() *Env {
	out := e.WithSet("", "")
	out.fold = true
	return out
}

// Folded reports whether keys match regardless of case.
func (e *Env) Folded() bool { return e != nil && e.fold }

// key returns the spelling k is stored under. Without folding that is k.
func (e *Env) key(k string) string {
	if !e.fold {
		return k
	}
	if _, ok := e.vars[k]; ok {
		return k
	}
	if _, ok := e.base[k]; ok {
		return k
	}
	if kk, ok := e.vars.find(k); ok {
		return kk
	}
	if kk, ok := e.base.find(k); ok {
		return kk
	}
	return k
}

// find returns the smallest key equal to k under case folding.
func (v Var) find(k string) (string, bool) {
	best, ok := "", false
	for kk := range v {
		if strings.EqualFold(kk, k) && (!ok || kk < best) {
			best, ok = kk, true
		}
	}
	return best, ok
}

// Lookup reports the value of k and whether it is set.
func (e *Env) Lookup(k string) (string, bool) {
	if e == nil {
		return "", false
	}
	k = e.key(k)
	if v, ok := e.vars[k]; ok {
		return v, true
	}
	v, ok := e.base[k]
	return v, ok
}

// Get returns the value of k or "" when unset.
func (e *Env) Get(k string) string {
	v, _ := e.Lookup(k)
	return v
}

// WithSet returns a copy of e with k set to v.
func (e *Env) WithSet(k, v string) *Env {
	out := &Env{base: make(Var), vars: make(Var)}
	if e != nil {
		out.base = e.base
		out.fold = e.fold
		for kk, vv := range e.vars {
			out.vars[kk] = vv
		}
		k = e.key(k)
	}
	if k != "" {
		out.vars[k] = v
	}
	return out
}

// Merge composes the final environment list applying order:
// base, then overrides set with WithSet, then perProc ("K=V") entries.
// ${VAR} references are expanded against the composed map (single pass).
// The result is sorted by key.
func (e *Env) Merge(perProc []string) []string {
	m := make(Var)
	fold := e.Folded()
	if e != nil {
		for k, v := range e.base {
			m[k] = v
		}
		for k, v := range e.vars {
			m[k] = v
		}
	}
	for _, kv := range perProc {
		if i := strings.IndexByte(kv, '='); i > 0 {
			k := kv[:i]
			if fold {
				if kk, ok := m.find(k); ok {
					k = kk
				}
			}
			m[k] = kv[i+1:]
		}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+expandWith(m[k], m, fold))
	}
	return out
}

// expand replaces ${VAR} references with values from m. Substituted text is
// not rescanned, so the result does not depend on map iteration order.
func expand(s string, m Var) string { return expandWith(s, m, false) }

func expandWith(s string, m Var, fold bool) string {
	if !strings.Contains(s, "${") {
		return s
	}
	var b strings.Builder
	for {
		i := strings.Index(s, "${")
		if i < 0 {
			break
		}
		j := strings.IndexByte(s[i+2:], '}')
		if j < 0 {
			break
		}
		b.WriteString(s[:i])
		name := s[i+2 : i+2+j]
		v, ok := m[name]
		if !ok && fold {
			if kk, found := m.find(name); found {
				v, ok = m[kk], true
			}
		}
		if ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i : i+3+j])
		}
		s = s[i+3+j:]
	}
	b.WriteString(s)
	return b.String()
}

package fileid

import "testing"

func TestNewNormalizesPath(t *testing.T) {
	if got := New("a.typ").Path(); got != "/a.typ" {
		t.Errorf("New should prefix a slash, got %q", got)
	}
	if got := New("").Path(); got != "/" {
		t.Errorf("empty path should normalize to /, got %q", got)
	}
}

func TestFileIdEqualityAsMapKey(t *testing.T) {
	a := New("/ch/one.typ")
	b := New("ch/one.typ")
	if a != b {
		t.Errorf("normalized ids must compare equal")
	}

	pkg := PackageSpec{Namespace: "preview", Name: "cetz", Version: "0.2.0"}
	c := NewInPackage(pkg, "/lib.typ")
	if c == New("/lib.typ") {
		t.Errorf("a package-relative id must differ from the workspace id at the same path")
	}
	if !c.InPackage() {
		t.Errorf("expected a package id")
	}
}

func TestJoinResolvesRelativeImports(t *testing.T) {
	base := New("/chapters/one.typ")

	cases := []struct {
		rel  string
		want string
	}{
		{"two.typ", "/chapters/two.typ"},
		{"./two.typ", "/chapters/two.typ"},
		{"../main.typ", "/main.typ"},
		{"../../main.typ", "/main.typ"},
		{"/abs.typ", "/abs.typ"},
		{"sub/x.typ", "/chapters/sub/x.typ"},
	}
	for _, tc := range cases {
		if got := base.Join(tc.rel).Path(); got != tc.want {
			t.Errorf("Join(%q) = %q, want %q", tc.rel, got, tc.want)
		}
	}
}

func TestStringIncludesPackageCoordinate(t *testing.T) {
	pkg := PackageSpec{Namespace: "preview", Name: "cetz", Version: "0.2.0"}
	id := NewInPackage(pkg, "/lib.typ")
	if got := id.String(); got != "@preview/cetz:0.2.0/lib.typ" {
		t.Errorf("unexpected String: %q", got)
	}
}

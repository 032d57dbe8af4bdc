package i18n

import (
	"testing"
	"testing/fstest"
)

func TestEmbeddedCatalogs(t *testing.T) {
	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	locales := c.Locales()
	if len(locales) != 2 || locales[0] != "el" || locales[1] != "en" {
		t.Fatalf("locales = %v", locales)
	}
}

func TestResolve(t *testing.T) {
	c := Default()
	cases := map[string]string{
		"en":    "en",
		"el":    "el",
		"el-GR": "el",
		"de":    "en",
		"":      "en",
		"???":   "en",
	}
	for in, want := range cases {
		if got := c.Resolve(in); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestT(t *testing.T) {
	c := Default()
	got := c.T("en", "bid.accepted.message", 120.0, "Essay on caching")
	want := `Your bid of 120.00 on "Essay on caching" was accepted.`
	if got != want {
		t.Fatalf("T = %q, want %q", got, want)
	}
	if got := c.T("el", "request.created.title"); got == "" || got == "request.created.title" {
		t.Fatalf("greek title = %q", got)
	}
	// unknown keys come back verbatim
	if got := c.T("en", "no.such.key"); got != "no.such.key" {
		t.Fatalf("missing key = %q", got)
	}
}

func TestLoadFromFSValidation(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/en.yaml": &fstest.MapFile{Data: []byte("locale: en\nmessages:\n  greet: \"hi\"\n")},
		"locales/fr.yaml": &fstest.MapFile{Data: []byte("locale: fr\nmessages:\n  greet: \"salut\"\n  extra: \"??\"\n")},
	}
	if _, err := LoadFromFS(fsys); err == nil {
		t.Fatal("expected error for key missing from base locale")
	}

	fsys = fstest.MapFS{
		"locales/fr.yaml": &fstest.MapFile{Data: []byte("locale: fr\nmessages:\n  greet: \"salut\"\n")},
	}
	if _, err := LoadFromFS(fsys); err == nil {
		t.Fatal("expected error without base locale")
	}

	fsys = fstest.MapFS{
		"locales/en.yaml": &fstest.MapFile{Data: []byte("locale: en\nmessages:\n  greet: \"hi\"\n")},
		"locales/fr.yaml": &fstest.MapFile{Data: []byte("locale: fr\nmessages:\n  greet: \"salut\"\n")},
	}
	c, err := LoadFromFS(fsys)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := c.T("fr-CA", "greet"); got != "salut" {
		t.Fatalf("greet = %q", got)
	}
}

package i18n

import "testing"

func TestGetCatalogFallback(t *testing.T) {
	base := GetCatalog("")
	if base == nil || base.Locale() != BaseLocale {
		t.Fatalf("expected base catalog, got %v", base)
	}
	if got := GetCatalog("xx-invalid-"); got != base {
		t.Fatal("expected fallback to en-US catalog")
	}
}

func TestGetCatalogMatchesAcceptLanguage(t *testing.T) {
	cases := map[string]string{
		"pt-BR":             "pt-BR",
		"pt":                "pt-BR",
		"fr-FR,pt;q=0.8":    "pt-BR",
		"en-GB":             "en-US",
		"de-DE":             "en-US",
		"en-US,pt-BR;q=0.5": "en-US",
	}
	for header, want := range cases {
		if got := GetCatalog(header).Locale(); got != want {
			t.Fatalf("GetCatalog(%q) = %s, want %s", header, got, want)
		}
	}
}

func TestFormatFallbacks(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code":   "hello {{.Name}}",
		"broken": "{{ if .Name }}",
	})

	if cat.Format("unknown", nil) != "unknown" {
		t.Fatal("expected code fallback when template missing")
	}
	if got := cat.Format("code", nil); got != "hello " {
		t.Fatalf("expected missing metadata to render empty, got %q", got)
	}
	if got := cat.Format("broken", map[string]string{"Name": "X"}); got != "{{ if .Name }}" {
		t.Fatalf("expected template fallback on parse error, got %q", got)
	}
}

func TestCatalogsCoverEveryCode(t *testing.T) {
	for code := range enUS {
		if _, ok := ptBR[code]; !ok {
			t.Fatalf("pt-BR catalog missing %s", code)
		}
	}
}

func TestRegisterCatalog(t *testing.T) {
	custom := NewCatalog("custom", map[Code]string{"code": "ok"})
	RegisterCatalog("custom", custom)
	if got := GetCatalog("custom"); got != custom {
		t.Fatal("expected registered catalog")
	}
}

package i18n

import "testing"

func TestGetCatalogFallback(t *testing.T) {
	base := GetCatalog("en-US")
	if base == nil {
		t.Fatal("expected base catalog")
	}
	fallback := GetCatalog("missing-locale")
	if fallback != base {
		t.Fatal("expected fallback to en-US catalog")
	}
	if GetCatalog("") != base {
		t.Fatal("expected empty locale to resolve to en-US catalog")
	}
}

func TestGetCatalogCachesByRequestedLocale(t *testing.T) {
	first := GetCatalog("pt-BR,pt;q=0.9")
	if first.Locale() != "pt-BR" {
		t.Fatalf("locale = %q, want pt-BR", first.Locale())
	}
	if GetCatalog("pt-BR") != first {
		t.Fatal("expected requests resolving to pt-BR to share a catalog")
	}
}

func TestGetCatalogMatchesRegionlessLocale(t *testing.T) {
	cat := GetCatalog("pt")
	if cat.Locale() != "pt-BR" {
		t.Fatalf("locale = %q, want pt-BR", cat.Locale())
	}
}

func TestEmbeddedMessagesRenderCampaignID(t *testing.T) {
	got := GetCatalog("en-US").Format("CAMPAIGN_ENDED", map[string]string{"CampaignID": "4"})
	if got != "Campaign 4 has ended." {
		t.Fatalf("Format() = %q", got)
	}
	got = GetCatalog("pt-BR").Format("CAMPAIGN_ENDED", map[string]string{"CampaignID": "4"})
	if got != "A campanha 4 foi encerrada." {
		t.Fatalf("Format() = %q", got)
	}
}

func TestFormat(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"GOAL_NOT_REACHED": "Campaign {{.CampaignID}} raised {{.Raised}} of {{.Target}}.",
		"BROKEN_PARSE":     "{{ if .CampaignID }}",
		"BROKEN_EXEC":      "{{ call .CampaignID }}",
	})
	full := map[string]string{"CampaignID": "7", "Raised": "40", "Target": "100"}

	tests := []struct {
		name     string
		code     Code
		metadata map[string]string
		want     string
	}{
		{"renders metadata", "GOAL_NOT_REACHED", full, "Campaign 7 raised 40 of 100."},
		{"renders cached template again", "GOAL_NOT_REACHED", full, "Campaign 7 raised 40 of 100."},
		{"missing keys", "GOAL_NOT_REACHED", map[string]string{"CampaignID": "7"}, "Campaign 7 raised <no value> of <no value>."},
		{"nil metadata", "GOAL_NOT_REACHED", nil, "Campaign <no value> raised <no value> of <no value>."},
		{"unknown code", "VAULT_OFFLINE", full, "VAULT_OFFLINE"},
		{"parse failure", "BROKEN_PARSE", full, "{{ if .CampaignID }}"},
		{"execution failure", "BROKEN_EXEC", full, "{{ call .CampaignID }}"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := cat.Format(tc.code, tc.metadata); got != tc.want {
				t.Fatalf("Format(%s) = %q, want %q", tc.code, got, tc.want)
			}
		})
	}
}

func TestNewCatalogCopiesMessages(t *testing.T) {
	messages := map[Code]string{"CAMPAIGN_ENDED": "ended"}
	cat := NewCatalog("en-US", messages)
	messages["CAMPAIGN_ENDED"] = "mutated"
	if got := cat.Format("CAMPAIGN_ENDED", nil); got != "ended" {
		t.Fatalf("Format() = %q", got)
	}
}

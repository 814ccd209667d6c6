package config

import (
	"strings"
	"testing"
	"time"
)

type sweepConfig struct {
	Addr     string        `env:"SWEEP_ADDR" envDefault:"localhost:8090"`
	Interval time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	Batch    int           `env:"SWEEP_BATCH" envDefault:"50"`
	Keys     []string      `env:"SWEEP_KEYS" envSeparator:","`
}

func TestParseEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want sweepConfig
	}{
		{
			name: "defaults",
			want: sweepConfig{Addr: "localhost:8090", Interval: 30 * time.Second, Batch: 50},
		},
		{
			name: "prefixed values win over bare names",
			env: map[string]string{
				"SWEEP_BATCH":            "1",
				"PLEDGEBANK_SWEEP_BATCH": "200",
				"PLEDGEBANK_SWEEP_KEYS":  "v1,v2",
			},
			want: sweepConfig{Addr: "localhost:8090", Interval: 30 * time.Second, Batch: 200, Keys: []string{"v1", "v2"}},
		},
		{
			name: "durations",
			env:  map[string]string{"PLEDGEBANK_SWEEP_INTERVAL": "1m30s"},
			want: sweepConfig{Addr: "localhost:8090", Interval: 90 * time.Second, Batch: 50},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			var got sweepConfig
			if err := ParseEnv(&got); err != nil {
				t.Fatalf("ParseEnv: %v", err)
			}
			if got.Addr != tc.want.Addr || got.Interval != tc.want.Interval || got.Batch != tc.want.Batch {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			if len(got.Keys) != len(tc.want.Keys) {
				t.Fatalf("keys = %v, want %v", got.Keys, tc.want.Keys)
			}
			for i := range got.Keys {
				if got.Keys[i] != tc.want.Keys[i] {
					t.Fatalf("keys = %v, want %v", got.Keys, tc.want.Keys)
				}
			}
		})
	}
}

func TestParseEnvWithPrefixReadsOtherNamespace(t *testing.T) {
	t.Setenv("PLEDGEBANK_SWEEP_ADDR", "ignored:1")
	t.Setenv("MAINT_SWEEP_ADDR", "ledger:8080")

	var got sweepConfig
	if err := ParseEnvWithPrefix(&got, "MAINT_"); err != nil {
		t.Fatalf("ParseEnvWithPrefix: %v", err)
	}
	if got.Addr != "ledger:8080" {
		t.Fatalf("addr = %q", got.Addr)
	}
}

func TestParseEnvWrapsLibraryErrors(t *testing.T) {
	t.Setenv("PLEDGEBANK_SWEEP_BATCH", "fifty")

	var got sweepConfig
	err := ParseEnv(&got)
	if err == nil {
		t.Fatal("expected error for non-numeric batch")
	}
	if msg := err.Error(); !strings.HasPrefix(msg, "parse env: ") || !strings.Contains(msg, "Batch") {
		t.Fatalf("error = %q", msg)
	}
}

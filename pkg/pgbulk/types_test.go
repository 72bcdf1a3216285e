package pgbulk

import (
	"errors"
	"strings"
	"testing"
)

func validConfig() LoadConfig {
	return LoadConfig{
		SourcePath:       "/data/export",
		Table:            "public.events",
		ConnectionString: "postgresql://localhost/app",
	}
}

func TestLoadConfig_Validate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cfg := validConfig()
		if err := cfg.Validate(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("reports every missing field", func(t *testing.T) {
		cfg := LoadConfig{}
		err := cfg.Validate()
		if err == nil {
			t.Fatal("expected error")
		}
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
		for _, field := range []string{"SourcePath", "Table", "ConnectionString"} {
			if !strings.Contains(err.Error(), field) {
				t.Errorf("expected %s in %q", field, err.Error())
			}
		}
	})

	t.Run("unknown decompressor", func(t *testing.T) {
		cfg := validConfig()
		cfg.Decompressor = "bzip"
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("negative timeout", func(t *testing.T) {
		cfg := validConfig()
		cfg.Timeout = -1
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("invalid auth method", func(t *testing.T) {
		cfg := validConfig()
		cfg.AuthMethod = AuthMethod(42)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestFileState_Transition(t *testing.T) {
	tests := []struct {
		from, to FileState
		ok       bool
	}{
		{FileStatePending, FileStateLoading, true},
		{FileStateLoading, FileStateCommitted, true},
		{FileStateLoading, FileStateRolledBack, true},
		{FileStatePending, FileStateCommitted, false},
		{FileStatePending, FileStateRolledBack, false},
		{FileStateCommitted, FileStateRolledBack, false},
		{FileStateRolledBack, FileStateLoading, false},
		{FileStateCommitted, FileStateLoading, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			got, err := tt.from.Transition(tt.to)
			if tt.ok {
				if err != nil || got != tt.to {
					t.Errorf("Transition() = %v, %v; want %v, nil", got, err, tt.to)
				}
				return
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
			if got != tt.from {
				t.Errorf("state changed on invalid transition: %v", got)
			}
		})
	}
}

func TestParseAuthMethod(t *testing.T) {
	tests := map[string]AuthMethod{
		"":         AuthMethodStandard,
		"standard": AuthMethodStandard,
		"aws":      AuthMethodAWSIAM,
		"google":   AuthMethodGoogleIAM,
		"azure":    AuthMethodAzureEntraID,
	}
	for in, want := range tests {
		got, err := ParseAuthMethod(in)
		if err != nil || got != want {
			t.Errorf("ParseAuthMethod(%q) = %v, %v; want %v", in, got, err, want)
		}
	}

	if _, err := ParseAuthMethod("kerberos"); !errors.Is(err, ErrUnsupportedAuthMethod) {
		t.Errorf("expected ErrUnsupportedAuthMethod, got %v", err)
	}
}

func TestNewRun(t *testing.T) {
	run := NewRun("events", "/data", 3)
	if run.ID.String() == "" || run.StartedAt.IsZero() {
		t.Error("expected ID and StartedAt to be set")
	}
	if run.Complete() {
		t.Error("fresh run with files must not be complete")
	}
	run.Processed = 3
	if !run.Complete() {
		t.Error("expected run to be complete")
	}

	empty := NewRun("events", "/data", 0)
	if !empty.Complete() {
		t.Error("run over an empty directory is complete")
	}
}

package startup

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion == "" {
		t.Error("Expected GoVersion to be set")
	}
	if info.OS == "" {
		t.Error("Expected OS to be set")
	}
	if info.Arch == "" {
		t.Error("Expected Arch to be set")
	}

	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
		setEnv       bool
	}{
		{
			name:         "Returns default when env var not set",
			key:          "TEST_UNSET_VAR",
			defaultValue: "default",
			want:         "default",
			setEnv:       false,
		},
		{
			name:         "Returns env value when set",
			key:          "TEST_SET_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
			setEnv:       true,
		},
		{
			name:         "Empty value falls back to default",
			key:          "TEST_EMPTY_VAR",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
			setEnv:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			} else {
				os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		want         bool
		setEnv       bool
	}{
		{"unset returns default true", "", true, true, false},
		{"unset returns default false", "", false, false, false},
		{"true", "true", false, true, true},
		{"false", "false", true, false, true},
		{"1 is true", "1", false, true, true},
		{"garbage falls back to default", "maybe", true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_BOOL_VAR"
			if tt.setEnv {
				t.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}

			if got := getEnvBool(key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnvBool(%q, %v) = %v, want %v", tt.envValue, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue int
		want         int
		setEnv       bool
	}{
		{"unset returns default", "", 42, 42, false},
		{"valid integer", "7", 42, 7, true},
		{"negative integer", "-3", 42, -3, true},
		{"garbage falls back to default", "seven", 42, 42, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "TEST_INT_VAR"
			if tt.setEnv {
				t.Setenv(key, tt.envValue)
			} else {
				os.Unsetenv(key)
			}

			if got := getEnvInt(key, tt.defaultValue); got != tt.want {
				t.Errorf("getEnvInt(%q, %d) = %d, want %d", tt.envValue, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestGetEnvList(t *testing.T) {
	key := "TEST_LIST_VAR"

	os.Unsetenv(key)
	if got := getEnvList(key); got != nil {
		t.Errorf("getEnvList(unset) = %v, want nil", got)
	}

	t.Setenv(key, "/photos"+string(os.PathListSeparator)+" /videos "+string(os.PathListSeparator))
	got := getEnvList(key)
	if len(got) != 2 || got[0] != "/photos" || got[1] != "/videos" {
		t.Errorf("getEnvList = %v, want [/photos /videos]", got)
	}
}

func TestEnsureDirectory(t *testing.T) {
	base := t.TempDir()

	// Creates a missing directory.
	path := filepath.Join(base, "sub", "data")
	if err := ensureDirectory(path, "test"); err != nil {
		t.Fatalf("ensureDirectory failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		t.Fatalf("Directory not created: %v", err)
	}

	// Idempotent on an existing directory.
	if err := ensureDirectory(path, "test"); err != nil {
		t.Errorf("ensureDirectory on existing dir failed: %v", err)
	}

	// Refuses a path occupied by a regular file.
	filePath := filepath.Join(base, "occupied")
	if err := os.WriteFile(filePath, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := ensureDirectory(filePath, "test"); err == nil {
		t.Error("ensureDirectory should fail when the path is a file")
	}
}

func TestTestWriteAccess(t *testing.T) {
	dir := t.TempDir()

	if err := testWriteAccess(dir); err != nil {
		t.Errorf("testWriteAccess on a temp dir failed: %v", err)
	}

	// The probe file must not linger.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Probe file left behind: %v", entries)
	}
}

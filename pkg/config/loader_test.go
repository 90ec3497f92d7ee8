package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"landkeeper/pkg/integration"
	"landkeeper/pkg/resilience"
)

// resetCircuitBreakerForTesting resets the circuit breaker state for testing
func resetCircuitBreakerForTesting() {
	manager := resilience.GetGlobalCircuitBreakerManager()
	// Remove the existing config_loader circuit breaker to reset its state
	manager.Remove("config_loader")

	// Reset the integration executors to ensure clean state
	integration.ResetExecutorsForTesting()
}

// TestLoadServerSeeds_ValidYAMLFile tests successful loading of a valid YAML file
func TestLoadServerSeeds_ValidYAMLFile(t *testing.T) {
	resetCircuitBreakerForTesting()

	tempDir := t.TempDir()
	validYAMLFile := filepath.Join(tempDir, "valid_seeds.yaml")

	validYAMLContent := `
- serverId: "gs-1"
  host: "10.0.0.1"
  port: 9443
  landTypes:
    - "arena"
    - "dungeon"

- serverId: "gs-2"
  host: "10.0.0.2"
  port: 9443
  connectHost: "gs-2.public.example.com"
  connectPort: 443
  landTypes:
    - "arena"
`

	err := os.WriteFile(validYAMLFile, []byte(validYAMLContent), 0o644)
	if err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	seeds, err := LoadServerSeeds(validYAMLFile)
	if err != nil {
		t.Fatalf("LoadServerSeeds failed: %v", err)
	}

	if len(seeds) != 2 {
		t.Fatalf("Expected 2 seeds, got %d", len(seeds))
	}

	gs1 := seeds[0]
	if gs1.ServerID != "gs-1" {
		t.Errorf("Expected serverId 'gs-1', got '%s'", gs1.ServerID)
	}
	if gs1.Host != "10.0.0.1" {
		t.Errorf("Expected host '10.0.0.1', got '%s'", gs1.Host)
	}
	if gs1.Port != 9443 {
		t.Errorf("Expected port 9443, got %d", gs1.Port)
	}
	if len(gs1.LandTypes) != 2 {
		t.Errorf("Expected 2 land types, got %d", len(gs1.LandTypes))
	}

	gs2 := seeds[1]
	if gs2.ConnectHost != "gs-2.public.example.com" {
		t.Errorf("Expected connectHost override, got '%s'", gs2.ConnectHost)
	}
	if gs2.ConnectPort != 443 {
		t.Errorf("Expected connectPort 443, got %d", gs2.ConnectPort)
	}
}

// TestLoadServerSeeds_EmptyYAMLFile tests loading an empty YAML file
func TestLoadServerSeeds_EmptyYAMLFile(t *testing.T) {
	resetCircuitBreakerForTesting()

	tempDir := t.TempDir()
	emptyFile := filepath.Join(tempDir, "empty.yaml")

	if err := os.WriteFile(emptyFile, []byte(""), 0o644); err != nil {
		t.Fatalf("Failed to create empty test file: %v", err)
	}

	seeds, err := LoadServerSeeds(emptyFile)
	if err != nil {
		t.Fatalf("LoadServerSeeds failed on empty file: %v", err)
	}
	if len(seeds) != 0 {
		t.Errorf("Expected 0 seeds from empty file, got %d", len(seeds))
	}
}

// TestLoadServerSeeds_EmptyArrayYAML tests loading a YAML file with an empty array
func TestLoadServerSeeds_EmptyArrayYAML(t *testing.T) {
	resetCircuitBreakerForTesting()

	tempDir := t.TempDir()
	emptyArrayFile := filepath.Join(tempDir, "empty_array.yaml")

	if err := os.WriteFile(emptyArrayFile, []byte("[]"), 0o644); err != nil {
		t.Fatalf("Failed to create empty array test file: %v", err)
	}

	seeds, err := LoadServerSeeds(emptyArrayFile)
	if err != nil {
		t.Fatalf("LoadServerSeeds failed on empty array file: %v", err)
	}
	if len(seeds) != 0 {
		t.Errorf("Expected 0 seeds from empty array file, got %d", len(seeds))
	}
}

// TestLoadServerSeeds_FileNotFound tests error handling when file doesn't exist
func TestLoadServerSeeds_FileNotFound(t *testing.T) {
	resetCircuitBreakerForTesting()

	seeds, err := LoadServerSeeds("this_file_does_not_exist.yaml")
	if err == nil {
		t.Error("Expected error for non-existent file, got nil")
	}
	if seeds != nil {
		t.Errorf("Expected nil seeds on error, got %v", seeds)
	}
}

// TestLoadServerSeeds_InvalidYAMLSyntax tests error handling for malformed YAML
func TestLoadServerSeeds_InvalidYAMLSyntax(t *testing.T) {
	resetCircuitBreakerForTesting()

	tempDir := t.TempDir()
	invalidYAMLFile := filepath.Join(tempDir, "invalid.yaml")

	invalidYAMLContent := `
- serverId: "gs-1
  host: "10.0.0.1"  # Missing closing quote above
  invalid_indent:
wrong_nesting
`

	if err := os.WriteFile(invalidYAMLFile, []byte(invalidYAMLContent), 0o644); err != nil {
		t.Fatalf("Failed to create invalid YAML test file: %v", err)
	}

	seeds, err := LoadServerSeeds(invalidYAMLFile)
	if err == nil {
		t.Error("Expected error for invalid YAML syntax, got nil")
	}
	if seeds != nil {
		t.Errorf("Expected nil seeds on error, got %v", seeds)
	}
}

// TestLoadServerSeeds_PermissionDenied tests error handling for permission issues
func TestLoadServerSeeds_PermissionDenied(t *testing.T) {
	resetCircuitBreakerForTesting()

	tempDir := t.TempDir()
	restrictedFile := filepath.Join(tempDir, "restricted.yaml")

	if err := os.WriteFile(restrictedFile, []byte("- serverId: gs-1"), 0o644); err != nil {
		t.Fatalf("Failed to create restricted test file: %v", err)
	}

	if err := os.Chmod(restrictedFile, 0o000); err != nil {
		t.Skip("Cannot modify file permissions on this system")
	}
	defer os.Chmod(restrictedFile, 0o644)

	seeds, err := LoadServerSeeds(restrictedFile)
	if err == nil {
		t.Error("Expected error for permission denied, got nil")
	}
	if seeds != nil {
		t.Errorf("Expected nil seeds on error, got %v", seeds)
	}
}

// TestLoadServerSeeds_TableDriven uses table-driven test approach for multiple scenarios
func TestLoadServerSeeds_TableDriven(t *testing.T) {
	resetCircuitBreakerForTesting()

	tempDir := t.TempDir()

	tests := []struct {
		name        string
		yamlContent string
		expectError bool
		expectCount int
	}{
		{
			name: "single valid seed",
			yamlContent: `
- serverId: "gs-1"
  host: "10.0.0.1"
  port: 9443
  landTypes: ["arena"]
`,
			expectError: false,
			expectCount: 1,
		},
		{
			name: "multiple valid seeds",
			yamlContent: `
- serverId: "gs-1"
  host: "10.0.0.1"
  port: 9443
  landTypes: ["arena"]

- serverId: "gs-2"
  host: "10.0.0.2"
  port: 9443
  landTypes: ["dungeon"]
`,
			expectError: false,
			expectCount: 2,
		},
		{
			name: "invalid YAML structure",
			yamlContent: `
not_an_array: true
invalid: structure
`,
			expectError: true,
			expectCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testFile := filepath.Join(tempDir, "test_"+tt.name+".yaml")
			if err := os.WriteFile(testFile, []byte(tt.yamlContent), 0o644); err != nil {
				t.Fatalf("Failed to create test file: %v", err)
			}

			seeds, err := LoadServerSeeds(testFile)

			if tt.expectError && err == nil {
				t.Errorf("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
			if len(seeds) != tt.expectCount {
				t.Errorf("Expected %d seeds, got %d", tt.expectCount, len(seeds))
			}
		})
	}
}

// TestLoadServerSeeds_LargeFile tests loading a larger YAML file
func TestLoadServerSeeds_LargeFile(t *testing.T) {
	resetCircuitBreakerForTesting()

	tempDir := t.TempDir()
	largeFile := filepath.Join(tempDir, "large.yaml")

	var yamlBuilder []byte
	seedCount := 100
	for i := 0; i < seedCount; i++ {
		entry := fmt.Sprintf(`
- serverId: "gs-%03d"
  host: "10.0.%d.%d"
  port: 9443
  landTypes: ["arena"]
`, i, i/256, i%256)
		yamlBuilder = append(yamlBuilder, []byte(entry)...)
	}

	if err := os.WriteFile(largeFile, yamlBuilder, 0o644); err != nil {
		t.Fatalf("Failed to create large test file: %v", err)
	}

	seeds, err := LoadServerSeeds(largeFile)
	if err != nil {
		t.Fatalf("LoadServerSeeds failed on large file: %v", err)
	}
	if len(seeds) != seedCount {
		t.Errorf("Expected %d seeds in large file, got %d", seedCount, len(seeds))
	}
	if seeds[0].ServerID != "gs-000" {
		t.Errorf("Expected first seed id 'gs-000', got '%s'", seeds[0].ServerID)
	}
	if seeds[seedCount-1].ServerID != "gs-099" {
		t.Errorf("Expected last seed id 'gs-099', got '%s'", seeds[seedCount-1].ServerID)
	}
}

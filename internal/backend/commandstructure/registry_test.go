package commandstructure

import (
	"reflect"
	"testing"
)

func passThroughFactory(name string) CommandFactory {
	return func(params map[string]any) (Command, error) {
		return newMockCommand(name), nil
	}
}

func TestNewCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()
	if registry == nil {
		t.Fatal("Expected non-nil registry")
	}
	if registry.factories == nil {
		t.Fatal("Expected non-nil factories map")
	}
}

func TestCommandRegistry_Register(t *testing.T) {
	registry := NewCommandRegistry()

	if err := registry.Register("TestCommand", passThroughFactory("TestCommand")); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if err := registry.Register("TestCommand", passThroughFactory("TestCommand")); err == nil {
		t.Error("Expected error for duplicate registration")
	}

	if err := registry.Register("", passThroughFactory("")); err == nil {
		t.Error("Expected error for empty name")
	}

	if err := registry.Register("NilFactory", nil); err == nil {
		t.Error("Expected error for nil factory")
	}
}

func TestCommandRegistry_Create(t *testing.T) {
	registry := NewCommandRegistry()
	if err := registry.Register("TestCommand", passThroughFactory("TestCommand")); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	command, err := registry.Create("TestCommand", nil)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if command.Name() != "TestCommand" {
		t.Errorf("Expected name 'TestCommand', got '%s'", command.Name())
	}

	if _, err := registry.Create("Missing", nil); err == nil {
		t.Error("Expected error for unknown command")
	}
}

func TestCommandRegistry_IsRegistered(t *testing.T) {
	registry := NewCommandRegistry()
	if registry.IsRegistered("TestCommand") {
		t.Error("Expected command not to be registered yet")
	}
	if err := registry.Register("TestCommand", passThroughFactory("TestCommand")); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	if !registry.IsRegistered("TestCommand") {
		t.Error("Expected command to be registered")
	}
}

func TestCommandRegistry_GetRegisteredNames(t *testing.T) {
	registry := NewCommandRegistry()
	for _, name := range []string{"Zeta", "Alpha", "Mid"} {
		if err := registry.Register(name, passThroughFactory(name)); err != nil {
			t.Fatalf("Failed to register %s: %v", name, err)
		}
	}

	got := registry.GetRegisteredNames()
	want := []string{"Alpha", "Mid", "Zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestCommandRegistry_Build(t *testing.T) {
	registry := NewCommandRegistry()
	if err := registry.Register("TestCommand", passThroughFactory("TestCommand")); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}

	commands, err := registry.Build([]CommandConfig{{Name: "TestCommand"}, {Name: "TestCommand"}})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(commands) != 2 {
		t.Errorf("Expected 2 commands, got %d", len(commands))
	}

	if _, err := registry.Build([]CommandConfig{{Name: "TestCommand"}, {Name: "Missing"}}); err == nil {
		t.Error("Expected error when one configuration is unknown")
	}
}

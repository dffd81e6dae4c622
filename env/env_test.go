// Package env contains utilities to manage environemnt variables
package env

import (
	"os"
	"testing"
)

func setupEnv(key, value string) func() {
	os.Setenv(key, value)
	return func() { os.Unsetenv(key) }
}

func TestGetEnv(t *testing.T) {
	unset := setupEnv("TEST_GETENV", "test-getenv")
	value := GetEnv("TEST_GETENV", "default")
	if value != "test-getenv" {
		t.Errorf("GetEnv failed: expected test-getenv got %s", value)
	}
	unset()
	value = GetEnv("TEST_GETENV", "default")
	if value != "default" {
		t.Errorf("GetEnv failed: expected default got %s", value)
	}
}

func TestGetEnvAsInt(t *testing.T) {
	unset := setupEnv("TEST_GETENV", "2")
	value := GetEnvAsInt("TEST_GETENV", 6)
	if value != 2 {
		t.Errorf("GetEnv failed: expected 2 got %d", value)
	}
	unset()
	value = GetEnvAsInt("TEST_GETENV", 6)
	if value != 6 {
		t.Errorf("GetEnv failed: expected 6 got %d", value)
	}
}

func TestGetEnvFloat(t *testing.T) {
	unset := setupEnv("TEST_GETENV", "0.5")
	value := GetEnvFloat("TEST_GETENV", 1.5)
	if value != 0.5 {
		t.Errorf("GetEnvFloat failed: expected 0.5 got %f", value)
	}
	unset()
	value = GetEnvFloat("TEST_GETENV", 1.5)
	if value != 1.5 {
		t.Errorf("GetEnvFloat failed: expected 1.5 got %f", value)
	}
}

func TestGetEnvBool(t *testing.T) {
	unset := setupEnv("TEST_GETENV", "true")
	value := GetEnvBool("TEST_GETENV", false)
	if value != true {
		t.Errorf("GetEnvBool failed: expected true got %v", value)
	}
	unset()
	value = GetEnvBool("TEST_GETENV", false)
	if value != false {
		t.Errorf("GetEnvBool failed: expected false got %v", value)
	}
}

func TestGetEnvList(t *testing.T) {
	unset := setupEnv("TEST_GETENV", "a.test, b.test ,c.test")
	value := GetEnvList("TEST_GETENV", nil)
	expected := []string{"a.test", "b.test", "c.test"}
	if len(value) != len(expected) {
		t.Fatalf("GetEnvList failed: expected %v got %v", expected, value)
	}
	for i := range expected {
		if value[i] != expected[i] {
			t.Errorf("GetEnvList failed: expected %v got %v", expected, value)
		}
	}
	unset()
	value = GetEnvList("TEST_GETENV", []string{"default"})
	if len(value) != 1 || value[0] != "default" {
		t.Errorf("GetEnvList failed: expected [default] got %v", value)
	}
}

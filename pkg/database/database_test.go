package database

import "testing"

func TestDialector_UnsupportedDriver(t *testing.T) {
	if _, err := Dialector(&Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestDialector_KnownDrivers(t *testing.T) {
	for _, driver := range []string{"postgres", "mysql", "sqlite"} {
		d, err := Dialector(&Config{Driver: driver, Host: "localhost", Port: 5432, FilePath: ":memory:"})
		if err != nil {
			t.Fatalf("Dialector(%s) error = %v", driver, err)
		}
		if d.Name() == "" {
			t.Errorf("Dialector(%s) returned unnamed dialector", driver)
		}
	}
}

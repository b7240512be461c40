package validate

import (
	"errors"
	"testing"
)

func TestFactoryResolvesJSON(t *testing.T) {
	f := NewFactory()

	checker, err := f.ForFilename("sample.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checker == nil {
		t.Fatal("expected a checker")
	}

	// Same extension resolves to the cached instance.
	again, err := f.ForFilename("other.JSON")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if checker != again {
		t.Error("expected the cached checker instance")
	}
	if f.Size() != 1 {
		t.Errorf("expected cache size 1, got %d", f.Size())
	}
}

func TestFactoryUnsupportedFormats(t *testing.T) {
	f := NewFactory()

	for _, name := range []string{"data.csv", "data.xml", "data.avro", "data.parquet", "noextension", "trailing."} {
		if _, err := f.ForFilename(name); !errors.Is(err, ErrUnsupportedFormat) {
			t.Errorf("%s: expected ErrUnsupportedFormat, got %v", name, err)
		}
	}
	if f.Size() != 0 {
		t.Errorf("unsupported formats must not be cached, size %d", f.Size())
	}
}

func TestFactoryClear(t *testing.T) {
	f := NewFactory()
	if _, err := f.ForFilename("a.json"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Clear()
	if f.Size() != 0 {
		t.Errorf("expected empty cache after Clear, got %d", f.Size())
	}
}

package archive

import (
	"context"
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"simple lowercase", "research", nil},
		{"with underscore", "acme_research", nil},
		{"with digits", "team42", nil},
		{"public is allowed", "public", nil},
		{"empty", "", ErrEmptyName},
		{"reserved default", "default", ErrReservedName},
		{"uppercase rejected", "Research", ErrInvalidName},
		{"leading digit rejected", "42team", ErrInvalidName},
		{"hyphen rejected", "acme-research", ErrInvalidName},
		{"space rejected", "acme research", ErrInvalidName},
		{"sql injection attempt", "public; drop table notes;--", ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate(%q) = %v, want nil", tt.input, err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate(%q) = %v, want wrapping %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestValidate_TooLong(t *testing.T) {
	long := "a"
	for len(long) <= maxNameLen {
		long += "b"
	}
	if err := Validate(long); !errors.Is(err, ErrNameTooLong) {
		t.Errorf("Validate(long name) = %v, want ErrNameTooLong", err)
	}
}

func TestNew(t *testing.T) {
	a, err := New("acme_research")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Name != "acme_research" {
		t.Errorf("Name = %q, want acme_research", a.Name)
	}
	if a.SchemaName() != "acme_research" {
		t.Errorf("SchemaName() = %q, want acme_research", a.SchemaName())
	}

	if _, err := New("default"); !errors.Is(err, ErrReservedName) {
		t.Errorf("New(\"default\") err = %v, want ErrReservedName", err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	a := &Archive{Name: "public"}
	ctx := WithContext(context.Background(), a)

	got := FromContext(ctx)
	if got != a {
		t.Errorf("FromContext = %v, want %v", got, a)
	}
}

func TestFromContext_Missing(t *testing.T) {
	if got := FromContext(context.Background()); got != nil {
		t.Errorf("FromContext(empty) = %v, want nil", got)
	}
}

func TestMustFromContext_PanicsWhenMissing(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustFromContext did not panic on missing archive")
		}
	}()
	MustFromContext(context.Background())
}

func TestMustFromContext_ReturnsWhenPresent(t *testing.T) {
	a := &Archive{Name: "public"}
	ctx := WithContext(context.Background(), a)
	if got := MustFromContext(ctx); got != a {
		t.Errorf("MustFromContext = %v, want %v", got, a)
	}
}

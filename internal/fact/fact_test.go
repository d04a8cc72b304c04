package fact

import (
	"reflect"
	"testing"
)

func TestFact_Validate(t *testing.T) {
	tests := []struct {
		name    string
		fact    Fact
		wantErr bool
	}{
		{
			name:    "valid fact",
			fact:    New("service-a", "service-b", "1.0.0"),
			wantErr: false,
		},
		{
			name:    "empty version is allowed",
			fact:    New("service-a", "service-b", ""),
			wantErr: false,
		},
		{
			name:    "missing service",
			fact:    New("", "service-b", "1.0.0"),
			wantErr: true,
		},
		{
			name:    "missing dependency",
			fact:    New("service-a", "", "1.0.0"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fact.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFact_KeyDistinguishesFields(t *testing.T) {
	a := New("ab", "c", "1")
	b := New("a", "bc", "1")
	if a.Key() == b.Key() {
		t.Errorf("Key() collision between %v and %v", a, b)
	}
}

func TestFact_String(t *testing.T) {
	f := New("service-a", "service-b", "1.0.0")
	want := "service-a --1.0.0--> service-b"
	if got := f.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestDedupe(t *testing.T) {
	in := []Fact{
		New("a", "x", "1.0"),
		New("b", "x", "1.0"),
		New("a", "x", "1.0"),
		New("a", "x", "2.0"),
	}
	want := []Fact{
		New("a", "x", "1.0"),
		New("b", "x", "1.0"),
		New("a", "x", "2.0"),
	}

	got := Dedupe(in)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dedupe() = %v, want %v", got, want)
	}

	if got := Dedupe(nil); len(got) != 0 {
		t.Errorf("Dedupe(nil) = %v, want empty", got)
	}
}

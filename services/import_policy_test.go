package services

import (
	"errors"
	"testing"
)

func TestSelectProfileDefaults(t *testing.T) {
	p, err := SelectProfile("", 10_000)
	if err != nil {
		t.Fatalf("SelectProfile: %v", err)
	}
	if p.Name != "balanced" {
		t.Errorf("default profile = %q, want balanced", p.Name)
	}
}

func TestSelectProfileExplicitName(t *testing.T) {
	p, err := SelectProfile("fast", 10_000)
	if err != nil {
		t.Fatalf("SelectProfile: %v", err)
	}
	if p.Name != "fast" || p.ChunkSize != 5000 || p.BatchSize != 1000 {
		t.Errorf("fast profile = %+v", p)
	}

	if _, err := SelectProfile("turbo", 10_000); err == nil {
		t.Error("unknown profile accepted")
	}
}

func TestSelectProfileAutoConservative(t *testing.T) {
	// Above the threshold the explicit choice is overridden.
	p, err := SelectProfile("fast", AutoConservative+1)
	if err != nil {
		t.Fatalf("SelectProfile: %v", err)
	}
	if p.Name != "conservative" {
		t.Errorf("profile = %q, want conservative", p.Name)
	}

	// Exactly at the threshold the choice stands.
	p, err = SelectProfile("fast", AutoConservative)
	if err != nil {
		t.Fatalf("SelectProfile: %v", err)
	}
	if p.Name != "fast" {
		t.Errorf("profile = %q, want fast", p.Name)
	}
}

func TestProfileByName(t *testing.T) {
	p, ok := ProfileByName("conservative")
	if !ok {
		t.Fatal("conservative profile missing")
	}
	if p.ChunkSize != 500 || p.BatchSize != 100 {
		t.Errorf("conservative profile = %+v", p)
	}

	if _, ok := ProfileByName("turbo"); ok {
		t.Error("unknown profile resolved")
	}
}

func TestSelectProfileRowLimit(t *testing.T) {
	if _, err := SelectProfile("", MaxImportRows); err != nil {
		t.Errorf("exactly at the limit refused: %v", err)
	}
	_, err := SelectProfile("", MaxImportRows+1)
	if !errors.Is(err, ErrTooManyRows) {
		t.Errorf("err = %v, want ErrTooManyRows", err)
	}
}

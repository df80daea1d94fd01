package server

import (
	"errors"
	"gamewarden/internal/domain"
	"reflect"
	"testing"
)

func profile(name, region string) domain.ServerProfile {
	return domain.ServerProfile{
		Name: name,
		Account: domain.AccountDescriptor{
			AccountLabel: name,
			AccessKey:    "AKIA" + name,
			AccessSecret: "secret-" + name,
			Region:       region,
		},
	}
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry([]domain.ServerProfile{
		profile("pal-eu", "eu-west-1"),
		profile("pal-us", "us-east-1"),
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	p, err := reg.Lookup("pal-us")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if p.Account.Region != "us-east-1" {
		t.Errorf("region = %q, want us-east-1", p.Account.Region)
	}

	if _, err := reg.Lookup("nope"); !errors.Is(err, domain.ErrUnknownServer) {
		t.Errorf("Lookup(unknown) err = %v, want ErrUnknownServer", err)
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	reg, err := NewRegistry([]domain.ServerProfile{
		profile("zeta", "r"),
		profile("alpha", "r"),
		profile("mid", "r"),
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	want := []string{"alpha", "mid", "zeta"}
	if got := reg.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}

	// callers must not be able to mutate the registry through the slice
	names := reg.Names()
	names[0] = "hacked"
	if reg.Names()[0] != "alpha" {
		t.Error("Names returned shared backing array")
	}
}

func TestRegistryRejectsBadInput(t *testing.T) {
	cases := map[string][]domain.ServerProfile{
		"empty name": {profile("", "r")},
		"blank name": {profile("   ", "r")},
		"duplicate":  {profile("a", "r"), profile("a", "other")},
	}
	for name, profiles := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewRegistry(profiles); err == nil {
				t.Error("NewRegistry succeeded, want error")
			}
		})
	}
}

func TestRegistryCopiesInput(t *testing.T) {
	in := []domain.ServerProfile{profile("a", "eu-west-1")}
	reg, err := NewRegistry(in)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	in[0].Account.Region = "changed"

	p, _ := reg.Lookup("a")
	if p.Account.Region != "eu-west-1" {
		t.Errorf("registry observed caller mutation: %q", p.Account.Region)
	}
}

func TestEmptyRegistry(t *testing.T) {
	reg, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.Len() != 0 || len(reg.Names()) != 0 {
		t.Errorf("empty registry has names %v", reg.Names())
	}
}

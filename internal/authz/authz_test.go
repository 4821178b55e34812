package authz_test

import (
	"testing"

	"printline/internal/authz"
	"printline/internal/domain"
)

func testRegistry() *authz.Registry {
	roles := map[string]authz.Definition{
		"manager": {
			Name:        "Shop Manager",
			Permissions: []string{"jobs.execute", "payments.approve", "clients.delete"},
			Active:      true,
		},
		"former-lead": {
			Name:        "Former Lead",
			Permissions: []string{"payments.approve", "design.approve"},
			Active:      false,
		},
	}
	departments := map[string]authz.Definition{
		"design": {
			Name:        "Design",
			Permissions: []string{"design.submit", "design.approve"},
			Active:      true,
		},
	}
	return authz.NewRegistry(roles, departments)
}

func TestHasCapability(t *testing.T) {
	reg := testRegistry()
	cases := []struct {
		name  string
		actor domain.Actor
		token string
		want  bool
	}{
		{"role grant", domain.Actor{ID: "a1", Role: "manager"}, "jobs.execute", true},
		{"role missing token", domain.Actor{ID: "a1", Role: "manager"}, "design.approve", false},
		{"department fallback", domain.Actor{ID: "a2", Department: "design"}, "design.approve", true},
		{"union of selectors", domain.Actor{ID: "a3", Role: "manager", Department: "design"}, "design.submit", true},
		{"inactive role grants nothing", domain.Actor{ID: "a4", Role: "former-lead"}, "payments.approve", false},
		{"unknown role", domain.Actor{ID: "a5", Role: "ghost"}, "jobs.execute", false},
		{"no selectors", domain.Actor{ID: "a6"}, "jobs.execute", false},
		{"empty token", domain.Actor{ID: "a1", Role: "manager"}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := reg.HasCapability(tc.actor, tc.token); got != tc.want {
				t.Fatalf("HasCapability(%v, %q) = %v, want %v", tc.actor, tc.token, got, tc.want)
			}
		})
	}
}

func TestCapabilitiesOfAgreesWithHasCapability(t *testing.T) {
	reg := testRegistry()
	actors := []domain.Actor{
		{ID: "a1", Role: "manager"},
		{ID: "a2", Department: "design"},
		{ID: "a3", Role: "manager", Department: "design"},
		{ID: "a4", Role: "former-lead", Department: "design"},
		{ID: "a5"},
	}
	for _, actor := range actors {
		for _, token := range reg.CapabilitiesOf(actor) {
			if !reg.HasCapability(actor, token) {
				t.Fatalf("CapabilitiesOf lists %q for %v but HasCapability denies it", token, actor)
			}
		}
	}
}

func TestCapabilitiesOfExcludesInactive(t *testing.T) {
	reg := testRegistry()
	caps := reg.CapabilitiesOf(domain.Actor{ID: "a4", Role: "former-lead"})
	if len(caps) != 0 {
		t.Fatalf("expected no capabilities from inactive role, got %v", caps)
	}
}

func TestNilRegistryDenies(t *testing.T) {
	var reg *authz.Registry
	if reg.HasCapability(domain.Actor{ID: "a1", Role: "manager"}, "jobs.execute") {
		t.Fatal("nil registry must deny")
	}
	if caps := reg.CapabilitiesOf(domain.Actor{ID: "a1", Role: "manager"}); caps != nil {
		t.Fatalf("nil registry must return no capabilities, got %v", caps)
	}
}

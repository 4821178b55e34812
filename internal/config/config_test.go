package config

import (
	"strings"
	"testing"

	"printline/internal/domain"
)

func testActor(role string) domain.Actor {
	return domain.Actor{ID: "staff-1", Role: role}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default("shop-1")
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Shop.ID != "shop-1" {
		t.Fatalf("shop id = %s", cfg.Shop.ID)
	}
	if cfg.Deadlines.Production.CriticalDays != 2 || cfg.Deadlines.Production.WarningDays != 5 {
		t.Fatalf("production thresholds = %+v", cfg.Deadlines.Production)
	}
	if _, ok := cfg.Roles["owner"]; !ok {
		t.Fatal("default config missing owner role")
	}
}

func TestDefaultRegistryGrants(t *testing.T) {
	reg := Default("shop-1").Registry()
	cases := []struct {
		role, token string
		want        bool
	}{
		{"owner", "shop.config.write", true},
		{"manager", "payments.approve", true},
		{"manager", "design.submit", false},
		{"designer", "design.submit", true},
		{"designer", "design.approve", false},
		{"operator", "jobs.execute", true},
		{"operator", "payments.read", false},
	}
	for _, tc := range cases {
		actor := testActor(tc.role)
		if got := reg.HasCapability(actor, tc.token); got != tc.want {
			t.Errorf("%s / %s = %v, want %v", tc.role, tc.token, got, tc.want)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		yml  string
		want string
	}{
		{
			name: "missing shop id",
			yml:  "shop:\n  kind: print-shop\nroles:\n  owner:\n    permissions: [orders.read]\n",
			want: "shop.id",
		},
		{
			name: "wrong kind",
			yml:  "shop:\n  id: s1\n  kind: bakery\nroles:\n  owner:\n    permissions: [orders.read]\n",
			want: "print-shop",
		},
		{
			name: "no owner role",
			yml:  "shop:\n  id: s1\n  kind: print-shop\nroles:\n  manager:\n    permissions: [orders.read]\n",
			want: "owner",
		},
		{
			name: "empty permission",
			yml:  "shop:\n  id: s1\n  kind: print-shop\nroles:\n  owner:\n    permissions: [\"\"]\n",
			want: "empty permission",
		},
		{
			name: "inverted thresholds",
			yml: "shop:\n  id: s1\n  kind: print-shop\nroles:\n  owner:\n    permissions: [orders.read]\n" +
				"deadlines:\n  production:\n    critical_days: 5\n    warning_days: 2\n",
			want: "critical window",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := FromYAML([]byte(tc.yml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestInactiveRoleDenied(t *testing.T) {
	yml := "shop:\n  id: s1\n  kind: print-shop\nroles:\n  owner:\n    permissions: [orders.read]\n" +
		"  temp:\n    active: false\n    permissions: [orders.read]\n"
	cfg, err := FromYAML([]byte(yml))
	if err != nil {
		t.Fatal(err)
	}
	reg := cfg.Registry()
	if reg.HasCapability(testActor("temp"), "orders.read") {
		t.Fatal("inactive role granted a capability")
	}
	if !reg.HasCapability(testActor("owner"), "orders.read") {
		t.Fatal("owner denied")
	}
}

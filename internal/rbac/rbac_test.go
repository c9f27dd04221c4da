package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleViewer, ActionRead, true},
		{RoleViewer, ActionWrite, false},
		{RoleViewer, ActionImport, false},
		{RoleViewer, ActionAdmin, false},
		{RoleAnalyst, ActionRead, true},
		{RoleAnalyst, ActionWrite, true},
		{RoleAnalyst, ActionImport, true},
		{RoleAnalyst, ActionAdmin, false},
		{RolePartner, ActionWrite, true},
		{RolePartner, ActionAdmin, false},
		{RoleAdmin, ActionAdmin, true},
		{Role("ghost"), ActionRead, false},
	}
	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("partner") != RolePartner {
		t.Fatal("expected known role preserved")
	}
	if Normalize("superuser") != RoleViewer {
		t.Fatal("expected unknown role normalized to viewer")
	}
	if Normalize("") != RoleViewer {
		t.Fatal("expected empty role normalized to viewer")
	}
}

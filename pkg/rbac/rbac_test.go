package rbac

import (
	"errors"
	"testing"
)

func TestRoleFor(t *testing.T) {
	if got := RoleFor(true, true); got != RoleCreator {
		t.Errorf("expected creator, got %q", got)
	}
	if got := RoleFor(false, true); got != RoleMember {
		t.Errorf("expected member, got %q", got)
	}
	if got := RoleFor(false, false); got != RoleNone {
		t.Errorf("expected no role, got %q", got)
	}
}

func TestPermissions(t *testing.T) {
	tests := []struct {
		role       string
		permission string
		want       bool
	}{
		{RoleCreator, PermissionDeleteProject, true},
		{RoleMember, PermissionDeleteProject, false},
		{RoleMember, PermissionWriteTask, true},
		{RoleMember, PermissionAddMember, true},
		{RoleNone, PermissionReadTask, false},
	}

	for _, tt := range tests {
		if got := HasPermission(tt.role, tt.permission); got != tt.want {
			t.Errorf("HasPermission(%q, %q) = %v, want %v", tt.role, tt.permission, got, tt.want)
		}
	}
}

func TestCheckPermissionError(t *testing.T) {
	err := CheckPermission(RoleMember, PermissionDeleteProject)
	var denied *PermissionDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	if denied.Permission != PermissionDeleteProject {
		t.Errorf("unexpected permission %q", denied.Permission)
	}
	if CheckPermission(RoleCreator, PermissionDeleteProject) != nil {
		t.Error("creator should be allowed to delete")
	}
}

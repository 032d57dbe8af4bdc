package policy_test

import (
	"errors"
	"testing"

	"essaybid/internal/domain"
	"essaybid/internal/engine/policy"
)

func TestAllowed(t *testing.T) {
	cases := []struct {
		role   domain.Role
		action policy.Action
		want   bool
	}{
		{domain.RoleStudent, policy.ActionCreateRequest, true},
		{domain.RoleStudent, policy.ActionCreateBid, false},
		{domain.RoleStudent, policy.ActionSetBidStatus, false},
		{domain.RoleStudent, policy.ActionApproveMessage, false},
		{domain.RoleStudent, policy.ActionAskQuestion, true},

		{domain.RoleSupervisor, policy.ActionCreateBid, true},
		{domain.RoleSupervisor, policy.ActionCreateRequest, false},
		{domain.RoleSupervisor, policy.ActionAnswerQuestion, false},
		{domain.RoleSupervisor, policy.ActionListBids, true},

		{domain.RoleAdmin, policy.ActionSetBidStatus, true},
		{domain.RoleAdmin, policy.ActionApproveMessage, true},
		{domain.RoleAdmin, policy.ActionCreateRequest, false},
		{domain.RoleAdmin, policy.ActionCreateBid, false},
		{domain.RoleAdmin, policy.ActionSendMessage, false},
		{domain.RoleAdmin, policy.ActionAskQuestion, false},
		{domain.RoleAdmin, policy.ActionManageUsers, true},

		{domain.Role("ghost"), policy.ActionAskQuestion, false},
	}
	for _, tc := range cases {
		if got := policy.Allowed(tc.role, tc.action); got != tc.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestRequire(t *testing.T) {
	if err := policy.Require(domain.RoleAdmin, policy.ActionReadEvents); err != nil {
		t.Fatalf("admin read events: %v", err)
	}
	err := policy.Require(domain.RoleStudent, policy.ActionSetBidStatus)
	var ae domain.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if ae.Role != domain.RoleStudent || ae.Action != string(policy.ActionSetBidStatus) {
		t.Fatalf("error fields = %+v", ae)
	}
}

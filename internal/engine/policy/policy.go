// Package policy holds the static role/action authorization table. All
// command and query authorization goes through Require so the table is the
// single source of truth.
package policy

import "essaybid/internal/domain"

// Action names an operation subject to authorization.
type Action string

const (
	ActionCreateRequest    Action = "request.create"
	ActionUpdateRequest    Action = "request.update"
	ActionDeleteRequest    Action = "request.delete"
	ActionAssignSupervisor Action = "request.assign_supervisor"
	ActionListAllRequests  Action = "request.list_all"

	ActionCreateBid    Action = "bid.create"
	ActionSetBidStatus Action = "bid.set_status"
	ActionListBids     Action = "bid.list"

	ActionSetAdminPrice    Action = "price.set"
	ActionDeleteAdminPrice Action = "price.delete"

	ActionSendMessage    Action = "chat.send"
	ActionApproveMessage Action = "chat.approve"
	ActionDeleteMessage  Action = "chat.delete"

	ActionAskQuestion    Action = "question.ask"
	ActionAnswerQuestion Action = "question.answer"

	ActionManageUsers    Action = "user.manage"
	ActionManageSettings Action = "settings.manage"
	ActionReadEvents     Action = "event.read"
)

// allow is the role/action table. Absence means forbidden.
var allow = map[domain.Role]map[Action]bool{
	domain.RoleStudent: {
		ActionCreateRequest: true,
		ActionUpdateRequest: true,
		ActionDeleteRequest: true,
		ActionSendMessage:   true,
		ActionAskQuestion:   true,
	},
	domain.RoleSupervisor: {
		ActionCreateBid:   true,
		ActionListBids:    true,
		ActionSendMessage: true,
		ActionAskQuestion: true,
	},
	domain.RoleAdmin: {
		ActionUpdateRequest:    true,
		ActionDeleteRequest:    true,
		ActionAssignSupervisor: true,
		ActionListAllRequests:  true,
		ActionSetBidStatus:     true,
		ActionListBids:         true,
		ActionSetAdminPrice:    true,
		ActionDeleteAdminPrice: true,
		ActionApproveMessage:   true,
		ActionDeleteMessage:    true,
		ActionAnswerQuestion:   true,
		ActionManageUsers:      true,
		ActionManageSettings:   true,
		ActionReadEvents:       true,
	},
}

// Allowed reports whether role may perform action.
func Allowed(role domain.Role, action Action) bool {
	return allow[role][action]
}

// Require returns an AuthorizationError unless role may perform action.
func Require(role domain.Role, action Action) error {
	if Allowed(role, action) {
		return nil
	}
	return domain.AuthorizationError{Role: role, Action: string(action)}
}

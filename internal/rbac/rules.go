package rbac

const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// Permissions checked by the HTTP layer.
const (
	PermQuizList       = "quiz:list"
	PermQuizTake       = "quiz:take"
	PermQuizManage     = "quiz:manage"
	PermAttemptSubmit  = "attempt:submit"
	PermAttemptViewOwn = "attempt:view-own"
	PermAttemptViewAll = "attempt:view-all"
	PermReportExport   = "report:export"
	PermEventsRead     = "events:read"
)

// RolePermissions is the default policy. Grants may end in "*" to cover a
// whole family ("attempt:*").
var RolePermissions = map[string][]string{
	RoleStudent: {
		PermQuizList,
		PermQuizTake,
		PermAttemptSubmit,
		PermAttemptViewOwn,
	},
	RoleAdmin: {"*"},
}

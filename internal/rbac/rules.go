package rbac

// RolePermissions is the default policy. Ownership of a question set is
// checked by the store; these only gate which actions a role may attempt.
var RolePermissions = map[string][]string{
	"user": {
		"question_set:create",
		"question_set:view",
		"question_set:update_own",
		"question_set:delete_own",
		"score:create",
		"score:view-own",
	},
	"admin": {
		"*", // everything
	},
}

package auth

import "nodeuser-server-go/internal/domain/user/model"

// Operation names an action checked by the authorization gate.
type Operation string

const (
	OpListUsers  Operation = "listUsers"
	OpAddUser    Operation = "addUser"
	OpGetUser    Operation = "getUser"
	OpUpdateUser Operation = "updateUser"
	OpDeleteUser Operation = "deleteUser"
	OpStats      Operation = "stats"
)

// Authorize decides whether the caller may perform the operation.
// Admin-only operations require the admin level. Self-or-admin operations
// additionally allow a caller acting on their own record. Unknown operations
// are denied.
func Authorize(caller model.User, op Operation, targetUserID string) bool {
	switch op {
	case OpListUsers, OpAddUser, OpStats:
		return caller.Level == model.LevelAdmin
	case OpGetUser, OpUpdateUser, OpDeleteUser:
		return caller.Level == model.LevelAdmin || (caller.ID != "" && caller.ID == targetUserID)
	default:
		return false
	}
}

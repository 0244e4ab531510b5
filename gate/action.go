package gate

// Action describes the kind of operation a user wants to perform.
// These are the CRUD actions; workflow actions such as "price" or "verify"
// are declared by the package that owns the role table.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionList   Action = "list"
)

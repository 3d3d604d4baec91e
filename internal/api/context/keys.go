package context

type Key string

const (
	Claims  Key = "claims"
	Session Key = "session"
	Params  Key = "params"
)

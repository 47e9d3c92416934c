package ftpsh

// Prompter asks the operator for values the protocol needs mid-exchange:
// the user name after a greeting, the password after a 331 reply, and
// missing command arguments.
type Prompter interface {
	// Prompt shows label and returns the operator's answer.
	Prompt(label string) (string, error)

	// User asks for the login name after the server's greeting. An empty
	// answer logs in anonymously.
	User(label string) (string, error)

	// Password is like Prompt but must not echo the answer.
	Password(label string) (string, error)
}

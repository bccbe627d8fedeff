package doorman

// Status classifies the result of an authentication attempt.
type Status int

const (
	// StatusAuthenticated means a fully resolved user was produced.
	StatusAuthenticated Status = iota

	// StatusRejected means the credentials were understood but refused
	// (bad password, unknown token, unimplemented mechanism). Safe to
	// show the attached reason to the caller.
	StatusRejected

	// StatusErrored means the attempt could not be evaluated at all
	// (store unreachable, corrupted state). The cause is for operators,
	// never for the caller.
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusRejected:
		return "rejected"
	case StatusErrored:
		return "errored"
	}
	return "unknown"
}

// Outcome is the tagged result of an authentication attempt. Exactly one
// of User, Reason or Err is meaningful, selected by Status. Rejections and
// errors are distinct states and must stay distinct end to end: a rejection
// is a normal "no", an error means the answer is unknown.
type Outcome struct {
	Status Status
	User   *User  // set when Status == StatusAuthenticated
	Reason string // set when Status == StatusRejected; may be empty
	Err    error  // set when Status == StatusErrored
}

// Accept builds an authenticated outcome carrying the resolved user.
func Accept(user *User) Outcome {
	return Outcome{Status: StatusAuthenticated, User: user}
}

// Reject builds a soft refusal with an optional caller-safe reason.
func Reject(reason string) Outcome {
	return Outcome{Status: StatusRejected, Reason: reason}
}

// Fail builds an error outcome from an infrastructure or invariant failure.
func Fail(err error) Outcome {
	return Outcome{Status: StatusErrored, Err: err}
}

func (o Outcome) Authenticated() bool { return o.Status == StatusAuthenticated }
func (o Outcome) Rejected() bool      { return o.Status == StatusRejected }
func (o Outcome) Errored() bool       { return o.Status == StatusErrored }

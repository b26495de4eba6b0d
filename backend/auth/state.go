package auth

// State is a step of the login decision procedure.
type State int

const (
	StateUnauthenticated State = iota
	StatePasswordVerified
	StateSecondFactorPending
	StateBackupCodePending
	StateAuthenticated
	StateRejected
)

var stateNames = [...]string{
	StateUnauthenticated:     "unauthenticated",
	StatePasswordVerified:    "password_verified",
	StateSecondFactorPending: "second_factor_pending",
	StateBackupCodePending:   "backup_code_pending",
	StateAuthenticated:       "authenticated",
	StateRejected:            "rejected",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateAuthenticated || s == StateRejected
}

// Reason records why an attempt was rejected. It is for logs only and never
// leaves the engine.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnknownUser     Reason = "unknown_user"
	ReasonBadPassword     Reason = "bad_password"
	ReasonBadSecondFactor Reason = "bad_second_factor"
)

// Attempt is one login attempt moving through the states.
type Attempt struct {
	Email            string
	Password         string
	SecondFactorCode string

	State  State
	Reason Reason

	// UsedBackupCode is set when the attempt was accepted through a backup code.
	UsedBackupCode bool

	userID       uint
	secondFactor bool
	secret       string
}

// NewAttempt starts an attempt in StateUnauthenticated.
func NewAttempt(email, password, code string) *Attempt {
	return &Attempt{Email: email, Password: password, SecondFactorCode: code}
}

func (a *Attempt) reject(r Reason) {
	a.State = StateRejected
	a.Reason = r
}

package doorman

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// LinkerEvents are observation hooks invoked at the decision points of the
// resolution algorithm. Nil hooks are skipped, keeping the algorithm itself
// free of I/O side effects beyond the stores.
type LinkerEvents struct {
	// CredentialFound fires when an existing credential resolves the login.
	CredentialFound func(provider, subjectID, userID string)

	// UserLinked fires when a new credential is attached to an existing
	// user discovered by email.
	UserLinked func(provider, email, userID string)

	// UserCreated fires when a brand-new user is provisioned.
	UserCreated func(provider, userID string)
}

// IdentityLinker resolves a provider identity to a canonical user,
// provisioning and linking as needed.
//
// Concurrent resolutions of the same (provider, subject) are serialized on
// a per-subject critical section, so within one process the lookup, the
// provisioning and the link write act as a unit. Across processes the
// store's uniqueness constraint is the backstop: a link that loses the race
// reports ErrConflict and the linker retries from the credential lookup,
// which then finds the winner.
type IdentityLinker struct {
	Users       UserStore
	Credentials CredentialStore

	// RequireVerifiedEmail, when set, makes an unverified provider email
	// ineligible for matching an existing account. The credential is then
	// attached to a freshly provisioned user instead. Off by default.
	RequireVerifiedEmail bool

	// Events receives notifications at defined points of the algorithm.
	Events LinkerEvents

	// MaxAttempts bounds conflict retries. Defaults to 3.
	MaxAttempts int

	mu       sync.Mutex
	subjects map[string]*sync.Mutex
}

// Resolve maps a provider identity onto a user:
//
//  1. An existing credential for (subject, provider) short-circuits to its
//     owner; nothing is written.
//  2. Otherwise an existing user with the asserted email adopts the
//     credential (account linking).
//  3. Otherwise a new user is provisioned with the profile's email and name.
//  4. The credential is attached to the user from 2 or 3.
//
// A store failure at any step aborts the remaining steps. A missing email
// is not an error; it only forces provisioning. Repeating Resolve for the
// same identity takes the step-1 short circuit and writes nothing.
func (l *IdentityLinker) Resolve(ctx context.Context, profile *ProviderProfile) Outcome {
	if profile == nil || profile.Provider == "" || profile.SubjectID == "" {
		return Fail(fmt.Errorf("incomplete provider profile"))
	}

	unlock := l.lockSubject(profile.Provider, profile.SubjectID)
	defer unlock()

	attempts := l.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	for attempt := 0; attempt < attempts; attempt++ {
		outcome, retry := l.resolveOnce(ctx, profile)
		if !retry {
			return outcome
		}
	}
	return Fail(fmt.Errorf("could not link %s credential %s after %d attempts",
		profile.Provider, profile.SubjectID, attempts))
}

// resolveOnce runs one pass of the algorithm. retry is true when a
// concurrent resolution claimed the credential first and the pass should
// restart from the credential lookup.
func (l *IdentityLinker) resolveOnce(ctx context.Context, profile *ProviderProfile) (out Outcome, retry bool) {
	user, err := l.Users.GetUserByCredential(ctx, profile.SubjectID, profile.Provider)
	if err == nil {
		if l.Events.CredentialFound != nil {
			l.Events.CredentialFound(profile.Provider, profile.SubjectID, user.ID)
		}
		return Accept(user), false
	}
	if !errors.Is(err, ErrNotFound) {
		return Fail(fmt.Errorf("credential lookup: %w", err)), false
	}

	// An email failing the verification policy is unusable both for
	// matching an existing account and for the provisioned record, where
	// it would collide with the account it was not allowed to match.
	email := profile.PrimaryEmail()
	if l.RequireVerifiedEmail && !profile.EmailVerified {
		email = ""
	}

	var target *User
	if email != "" {
		target, err = l.Users.GetUserByEmail(ctx, email)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return Fail(fmt.Errorf("email lookup: %w", err)), false
		}
	}

	created := false
	if target == nil {
		target, err = l.Users.CreateUser(ctx, email, "", profile.DisplayName)
		if errors.Is(err, ErrConflict) {
			// The email was registered between lookup and create. Restart
			// so the email lookup adopts it.
			return Outcome{}, true
		}
		if err != nil {
			return Fail(fmt.Errorf("provisioning user: %w", err)), false
		}
		created = true
	}

	if err := l.Credentials.LinkCredential(ctx, target.ID, profile.SubjectID, profile.Provider); err != nil {
		if errors.Is(err, ErrConflict) {
			// Another resolution won the link; restart and short-circuit
			// on its credential.
			return Outcome{}, true
		}
		return Fail(fmt.Errorf("linking credential: %w", err)), false
	}

	if created {
		if l.Events.UserCreated != nil {
			l.Events.UserCreated(profile.Provider, target.ID)
		}
	} else if l.Events.UserLinked != nil {
		l.Events.UserLinked(profile.Provider, email, target.ID)
	}
	return Accept(target), false
}

// Authenticate implements Strategy for provider-exchange logins.
func (l *IdentityLinker) Authenticate(ctx context.Context, in Input) Outcome {
	return l.Resolve(ctx, in.Profile)
}

// lockSubject acquires the critical section for one provider identity.
// Mutexes are retained for the lifetime of the linker; the population is
// bounded by the distinct identities seen by this process.
func (l *IdentityLinker) lockSubject(provider, subjectID string) func() {
	key := provider + "\x00" + subjectID
	l.mu.Lock()
	if l.subjects == nil {
		l.subjects = make(map[string]*sync.Mutex)
	}
	m, ok := l.subjects[key]
	if !ok {
		m = &sync.Mutex{}
		l.subjects[key] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Package device provides the registry of Apple push tokens and their
// activation state. A Device owns Notifications and may appear in exclusion
// lists for broadcasts; its lifecycle is driven by provider registration
// results and by the feedback poller.
package device

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/pushdeck/pushdeck/internal/fsm"
)

// Repository errors.
var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrDuplicateToken = errors.New("device token already registered")
)

// ErrInvalidToken is returned when a token does not normalize to the
// canonical 8-group form.
var ErrInvalidToken = errors.New("invalid device token")

// Device states.
const (
	StateCreated   fsm.State = "created"
	StateActivated fsm.State = "activated"
	StateInactive  fsm.State = "inactive"
)

// Device events.
const (
	EventActivate   fsm.Event = "activate"
	EventDeactivate fsm.Event = "deactivate"
)

// tokenPattern matches the canonical stored token form: eight space-delimited
// groups of eight hex characters.
var tokenPattern = regexp.MustCompile(`^[a-fA-F0-9]{8}( [a-fA-F0-9]{8}){7}$`)

// wrappedToken matches tokens delivered wrapped in angle brackets, the form
// iOS produces when a raw token is stringified directly.
var wrappedToken = regexp.MustCompile(`^<(.+)>$`)

// Device represents a registered push token.
type Device struct {
	ID    int64
	Token string
	State fsm.State

	// Last raw provider response from a registration attempt.
	ResponseCode    int
	ResponseMessage string
	ResponseBody    string

	// Alias and tags forwarded to the provider on registration.
	Alias string
	Tags  []string

	LastRegisteredAt *time.Time
	LastInactiveAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CurrentState implements fsm.Stateful.
func (d *Device) CurrentState() fsm.State { return d.State }

// SetState implements fsm.Stateful.
func (d *Device) SetState(s fsm.State) { d.State = s }

// machine drives the registration lifecycle. Activation is guarded on the
// provider having answered 200 or 201; deactivation is unconditional and may
// fire from any state.
var machine = fsm.New[*Device]("device").
	Transition(EventActivate,
		[]fsm.State{StateCreated, StateActivated, StateInactive},
		StateActivated,
		func(d *Device) bool { return d.ResponseCode == 200 || d.ResponseCode == 201 },
	).
	Transition(EventDeactivate,
		[]fsm.State{StateCreated, StateActivated, StateInactive},
		StateInactive,
		nil,
	).
	OnEnter(StateActivated, func(d *Device) {
		now := time.Now().UTC()
		d.LastRegisteredAt = &now
	}).
	OnEnter(StateInactive, func(d *Device) {
		now := time.Now().UTC()
		d.LastInactiveAt = &now
	})

// Activate transitions the device to activated if the last provider response
// code was 200 or 201. Returns fsm.ErrGuardFailed otherwise.
func (d *Device) Activate() error { return machine.Fire(d, EventActivate) }

// Deactivate transitions the device to inactive from any state and stamps
// LastInactiveAt.
func (d *Device) Deactivate() error { return machine.Fire(d, EventDeactivate) }

// Inactive reports whether the device is currently inactive.
func (d *Device) Inactive() bool { return d.State == StateInactive }

// SetToken normalizes and stores a raw token. Angle-bracket wrappers are
// stripped and the result is lower-cased into the canonical form.
func (d *Device) SetToken(raw string) error {
	tok, err := NormalizeToken(raw)
	if err != nil {
		return err
	}
	d.Token = tok
	return nil
}

// ProviderToken returns the token in the form Urban Airship expects: 64
// uppercase hex characters with no spaces.
func (d *Device) ProviderToken() string {
	return strings.ToUpper(strings.ReplaceAll(d.Token, " ", ""))
}

// TokenLast4 returns the tail of the token for log output.
func (d *Device) TokenLast4() string {
	if len(d.Token) < 4 {
		return d.Token
	}
	return d.Token[len(d.Token)-4:]
}

// NormalizeToken converts a raw token into the canonical stored form:
// lowercase hex, eight space-delimited groups of eight. Accepts the wrapped
// `<...>` form, the provider form (64 hex chars, no spaces), and the
// canonical form itself.
func NormalizeToken(raw string) (string, error) {
	tok := strings.TrimSpace(raw)
	if m := wrappedToken.FindStringSubmatch(tok); m != nil {
		tok = m[1]
	}
	tok = strings.ToLower(tok)

	if tokenPattern.MatchString(tok) {
		return tok, nil
	}

	// Provider form: regroup into eights.
	compact := strings.ReplaceAll(tok, " ", "")
	if len(compact) == 64 {
		grouped := regroup(compact)
		if tokenPattern.MatchString(grouped) {
			return grouped, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidToken, raw)
}

// CanonicalFromProviderToken maps a provider-form token back to the stored
// form. It is the inverse of ProviderToken.
func CanonicalFromProviderToken(providerToken string) string {
	return regroup(strings.ToLower(providerToken))
}

func regroup(compact string) string {
	groups := make([]string, 0, 8)
	for i := 0; i+8 <= len(compact); i += 8 {
		groups = append(groups, compact[i:i+8])
	}
	return strings.Join(groups, " ")
}

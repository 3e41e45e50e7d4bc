package corestate

import "fmt"

// ErrorCode classifies the fatal error conditions a Machine can surface.
// Event-miss (a Dispatch that matches no transition) is deliberately not an
// error code here — it is reported as dispatch returning false, per the
// run-time contract.
type ErrorCode int

const (
	// ErrCodeNone is the zero value; no error occurred.
	ErrCodeNone ErrorCode = iota
	// ErrCodeDuplicateName: two nodes were declared with the same name under
	// the same Statechart.
	ErrCodeDuplicateName
	// ErrCodeUnknownHandle: a Handle passed to a build-time function does not
	// belong to the Machine it was passed to.
	ErrCodeUnknownHandle
	// ErrCodeMissingInitial: a Composite, Concurrent region, or the root
	// itself has no declared Initial pseudostate at Start time.
	ErrCodeMissingInitial
	// ErrCodeAmbiguousInitial: more than one Initial pseudostate's outgoing
	// Transition was declared for the same composite.
	ErrCodeAmbiguousInitial
	// ErrCodeChoiceUnresolved: at dispatch time, every guarded branch out of
	// a Choice pseudostate failed and no unconditional (else) branch was
	// declared to catch the rest.
	ErrCodeChoiceUnresolved
	// ErrCodeMachineNotStarted: Dispatch or Enqueue was called before Start.
	ErrCodeMachineNotStarted
	// ErrCodeAlreadyStarted: Start was called on a machine already running.
	ErrCodeAlreadyStarted
	// ErrCodeReentrantDispatch: Dispatch was called from within a guard,
	// action, or entry/exit callback of an in-flight dispatch.
	ErrCodeReentrantDispatch
	// ErrCodeActionFailed: a guard or action callback returned an error or
	// panicked.
	ErrCodeActionFailed
	// ErrCodeInvalidTransitionSource: a Transition was declared with a Final
	// or the root as its source; neither may have outgoing transitions.
	ErrCodeInvalidTransitionSource
	// ErrCodeRootRestricted: an entry, exit, or do action was declared on the
	// root. An outgoing transition from the root is reported as
	// ErrCodeInvalidTransitionSource.
	ErrCodeRootRestricted
	// ErrCodeDuplicatePseudostate: a composite/region already has an Initial
	// or ShallowHistory child and a second one of the same kind was declared.
	ErrCodeDuplicatePseudostate
	// ErrCodeGuardedPseudoTransition: a trigger or guard was attached to the
	// single resolving Transition out of an Initial or ShallowHistory.
	ErrCodeGuardedPseudoTransition
	// ErrCodeInvalidRegion: a direct child of a Concurrent state was declared
	// as something other than a Composite region.
	ErrCodeInvalidRegion
)

// ModelError reports a defect in the statechart's declared structure,
// discovered at construction time (i.e. before Start is ever called). A
// ModelError means the build-time API was misused; it is always fatal and
// never recoverable by retrying the same build calls.
type ModelError struct {
	Code    ErrorCode
	Subject string
	Message string
}

func (e *ModelError) Error() string {
	return fmt.Sprintf("statechart model error [%s]: %s", e.Subject, e.Message)
}

// NewDuplicateNameError reports two sibling nodes sharing a name.
func NewDuplicateNameError(name string) *ModelError {
	return &ModelError{
		Code:    ErrCodeDuplicateName,
		Subject: name,
		Message: fmt.Sprintf("a node named %q already exists under this parent", name),
	}
}

// NewUnknownHandleError reports a Handle used across machines or past its
// owner's lifetime.
func NewUnknownHandleError(subject string) *ModelError {
	return &ModelError{
		Code:    ErrCodeUnknownHandle,
		Subject: subject,
		Message: "handle does not belong to this statechart",
	}
}

// NewAmbiguousInitialError reports a second Initial pseudostate transition
// declared for a composite that already has one.
func NewAmbiguousInitialError(composite string) *ModelError {
	return &ModelError{
		Code:    ErrCodeAmbiguousInitial,
		Subject: composite,
		Message: "composite already has an initial transition declared",
	}
}

// NewInvalidTransitionSourceError reports a Transition declared out of a
// Final or the root, neither of which may have outgoing transitions.
func NewInvalidTransitionSourceError(subject string, kind Kind) *ModelError {
	return &ModelError{
		Code:    ErrCodeInvalidTransitionSource,
		Subject: subject,
		Message: fmt.Sprintf("a %s may not be the source of an outgoing transition", kind),
	}
}

// NewRootRestrictedError reports an attempt to give the root an entry, exit,
// or do action, which invariant 7 forbids.
func NewRootRestrictedError(fn string) *ModelError {
	return &ModelError{
		Code:    ErrCodeRootRestricted,
		Subject: "root",
		Message: fmt.Sprintf("the root has no entry/exit/do actions and no outgoing transitions (%s)", fn),
	}
}

// NewDuplicatePseudostateError reports a second Initial or ShallowHistory
// declared under the same composite/region.
func NewDuplicatePseudostateError(parent string, kind Kind) *ModelError {
	return &ModelError{
		Code:    ErrCodeDuplicatePseudostate,
		Subject: parent,
		Message: fmt.Sprintf("%s already has a %s child", parent, kind),
	}
}

// NewGuardedPseudoTransitionError reports a trigger or guard attached to the
// single resolving Transition out of an Initial or ShallowHistory.
func NewGuardedPseudoTransitionError(subject string, kind Kind) *ModelError {
	return &ModelError{
		Code:    ErrCodeGuardedPseudoTransition,
		Subject: subject,
		Message: fmt.Sprintf("a %s's resolving transition may not carry a trigger or guard", kind),
	}
}

// NewInvalidRegionError reports a direct child of a Concurrent state that is
// not itself a Composite region.
func NewInvalidRegionError(parent string, kind Kind) *ModelError {
	return &ModelError{
		Code:    ErrCodeInvalidRegion,
		Subject: parent,
		Message: fmt.Sprintf("a Concurrent state's direct children must be Composite regions, got %s", kind),
	}
}

// ConfigurationError reports a defect discovered at run time that the model
// could not catch earlier: a composite reached Start or completion cascade
// without ever having its Initial resolved, or a Choice pseudostate was
// entered and no branch — guarded or else — could be taken.
type ConfigurationError struct {
	Code    ErrorCode
	Subject string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("statechart configuration error [%s]: %s", e.Subject, e.Message)
}

// NewMissingInitialError reports a composite or region with no default
// child resolvable at entry time.
func NewMissingInitialError(composite string) *ConfigurationError {
	return &ConfigurationError{
		Code:    ErrCodeMissingInitial,
		Subject: composite,
		Message: "no initial pseudostate resolves a default child",
	}
}

// NewChoiceUnresolvedError reports a Choice pseudostate where no branch —
// guarded or else — passed.
func NewChoiceUnresolvedError(choice string) *ConfigurationError {
	return &ConfigurationError{
		Code:    ErrCodeChoiceUnresolved,
		Subject: choice,
		Message: "no guard passed and no else branch was declared",
	}
}

// NewMachineNotStartedError reports an operation requiring a running
// machine that was attempted before Start.
func NewMachineNotStartedError(operation string) *ConfigurationError {
	return &ConfigurationError{
		Code:    ErrCodeMachineNotStarted,
		Subject: operation,
		Message: "machine is not started",
	}
}

// NewAlreadyStartedError reports a redundant Start call.
func NewAlreadyStartedError() *ConfigurationError {
	return &ConfigurationError{
		Code:    ErrCodeAlreadyStarted,
		Subject: "start",
		Message: "machine is already started",
	}
}

// NewReentrantDispatchError reports a Dispatch call made from inside
// a guard, action, or entry/exit callback of an in-flight dispatch.
func NewReentrantDispatchError() *ConfigurationError {
	return &ConfigurationError{
		Code:    ErrCodeReentrantDispatch,
		Subject: "dispatch",
		Message: "dispatch is not reentrant; use Enqueue from within a callback instead",
	}
}

// ActionError wraps a panic or returned error from a user-supplied Guard or
// Action callback. The dispatcher surfaces this to the Dispatch caller
// verbatim; the active configuration is left exactly where the failing
// callback interrupted it, per the run-time error contract.
type ActionError struct {
	Phase       string // "guard", "action", "entry", or "exit"
	State       string
	OriginalErr error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s callback failed in state %q: %v", e.Phase, e.State, e.OriginalErr)
}

func (e *ActionError) Unwrap() error {
	return e.OriginalErr
}

// NewActionError wraps a user callback failure.
func NewActionError(phase, state string, err error) *ActionError {
	return &ActionError{Phase: phase, State: state, OriginalErr: err}
}

// IsModelError reports whether err is a *ModelError.
func IsModelError(err error) bool {
	_, ok := err.(*ModelError)
	return ok
}

// IsConfigurationError reports whether err is a *ConfigurationError.
func IsConfigurationError(err error) bool {
	_, ok := err.(*ConfigurationError)
	return ok
}

// IsActionError reports whether err is an *ActionError.
func IsActionError(err error) bool {
	_, ok := err.(*ActionError)
	return ok
}

// GetErrorCode extracts the ErrorCode from any error type this package
// defines, or ErrCodeNone if err is nil or foreign.
func GetErrorCode(err error) ErrorCode {
	switch e := err.(type) {
	case *ModelError:
		return e.Code
	case *ConfigurationError:
		return e.Code
	case *ActionError:
		return ErrCodeActionFailed
	default:
		return ErrCodeNone
	}
}

// Package wizard is the buyer-side measurement wizard: a state machine that
// loads a product's custom chart, collects and validates measurements, saves
// and recalls profiles, and hands the result to the cart. Rendering is left to
// the caller, which draws Session.View.
package wizard

// Step is a screen of the wizard.
type Step string

const (
	StepDetails          Step = "details"
	StepHowToMeasure     Step = "how_to_measure"
	StepReview           Step = "review"
	StepSaveProfile      Step = "save_profile"
	StepPreviousProfiles Step = "previous_profiles"
	StepCompleted        Step = "completed"
	StepClosed           Step = "closed"
	StepLoadFailed       Step = "load_failed"
)

func (s Step) String() string {
	return string(s)
}

// IsValid returns true if the step is a known step.
func (s Step) IsValid() bool {
	switch s {
	case StepDetails, StepHowToMeasure, StepReview, StepSaveProfile,
		StepPreviousProfiles, StepCompleted, StepClosed, StepLoadFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further step can follow.
func (s Step) IsTerminal() bool {
	return s == StepClosed
}

// CanTransitionTo returns true if the wizard may move from this step to target.
// The flow is:
//
//	details ⇄ how_to_measure (no validation)
//	details → review (validated)
//	review → details (edit), save_profile, completed
//	save_profile → review (saved or cancelled)
//	details → previous_profiles → details
//
// Every step except closed can be closed.
func (s Step) CanTransitionTo(target Step) bool {
	if target == StepClosed {
		return s != StepClosed
	}
	switch s {
	case StepDetails:
		return target == StepHowToMeasure || target == StepReview || target == StepPreviousProfiles
	case StepHowToMeasure:
		return target == StepDetails
	case StepReview:
		return target == StepDetails || target == StepSaveProfile || target == StepCompleted
	case StepSaveProfile:
		return target == StepReview
	case StepPreviousProfiles:
		return target == StepDetails
	case StepCompleted, StepLoadFailed, StepClosed:
		return false
	default:
		return false
	}
}

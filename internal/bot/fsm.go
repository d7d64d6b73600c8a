package bot

import (
	"fmt"
	"strings"

	"github.com/jordanseet/internwatch/internal/model"
)

// state enumerates the steps of an onboarding or profile-edit dialogue.
type state int

const (
	stateRoles state = iota
	stateName
	stateEmail
	stateContact
	stateStartDate
	stateEndDate
	stateSummary
	stateEditChoice
	stateEditValue
)

// outcome tells the caller what to do after a dialogue step.
type outcome int

const (
	// outcomeContinue keeps the conversation open, waiting for more input.
	outcomeContinue outcome = iota
	// outcomeRegistered means the draft subscriber is complete and should be
	// persisted, scheduled, and seeded.
	outcomeRegistered
	// outcomeUpdated means an existing subscriber's roles or profile changed
	// and should be persisted.
	outcomeUpdated
)

// conversation is an in-progress dialogue with one chat. Each chat has at
// most one; the bot discards it once a terminal outcome is reached.
type conversation struct {
	state state
	draft model.Subscriber

	// rolesOnly marks an /addrole dialogue: "done" finishes immediately
	// instead of continuing into profile questions.
	rolesOnly bool

	// editField is the profile field being rewritten during /editprofile.
	editField string
}

func newOnboarding(chatID int64) *conversation {
	return &conversation{
		state: stateRoles,
		draft: model.Subscriber{ChatID: chatID},
	}
}

func newRoleAddition(sub model.Subscriber) *conversation {
	return &conversation{
		state:     stateRoles,
		draft:     sub,
		rolesOnly: true,
	}
}

func newProfileEdit(sub model.Subscriber) *conversation {
	return &conversation{
		state: stateEditChoice,
		draft: sub,
	}
}

const editableFields = "name, email, contact, start date, end date, summary"

// handle consumes one message and returns the reply to send plus what the
// caller should do with the draft.
func (c *conversation) handle(input string) (string, outcome) {
	input = strings.TrimSpace(input)

	switch c.state {
	case stateRoles:
		return c.handleRole(input)

	case stateName:
		c.draft.Profile.Name = input
		c.state = stateEmail
		return "Got it! Now, enter your email address.", outcomeContinue

	case stateEmail:
		if !strings.Contains(input, "@") {
			return "That doesn't look like an email address. Please try again.", outcomeContinue
		}
		c.draft.Profile.Email = input
		c.state = stateContact
		return "Thanks! Now, enter your contact number.", outcomeContinue

	case stateContact:
		c.draft.Profile.Contact = input
		c.state = stateStartDate
		return "Great! When are you available to start? (Format: DD-MM-YYYY)", outcomeContinue

	case stateStartDate:
		c.draft.Profile.StartDate = input
		c.state = stateEndDate
		return "Got it! When is your last available date? (Format: DD-MM-YYYY)", outcomeContinue

	case stateEndDate:
		c.draft.Profile.EndDate = input
		c.state = stateSummary
		return "Almost done! Please provide a short text CV summary (e.g., skills, experience).", outcomeContinue

	case stateSummary:
		c.draft.Profile.Summary = input
		return "Registration complete! You'll now receive internship alerts automatically.", outcomeRegistered

	case stateEditChoice:
		return c.handleEditChoice(input)

	case stateEditValue:
		return c.handleEditValue(input)
	}

	return "Something went wrong. Send /start to begin again.", outcomeContinue
}

func (c *conversation) handleRole(input string) (string, outcome) {
	role := model.NormalizeRole(input)

	if role == "done" {
		if len(c.draft.Roles) == 0 {
			return "You haven't added any roles yet! Please enter at least one.", outcomeContinue
		}
		if c.rolesOnly {
			return fmt.Sprintf("Roles updated: %s.", strings.Join(c.draft.Roles, ", ")), outcomeUpdated
		}
		c.state = stateName
		return "Great! Now, let's collect your personal details. What's your full name?", outcomeContinue
	}

	if role == "" {
		return "Please enter a role, or type 'done' when finished.", outcomeContinue
	}
	if len(c.draft.Roles) >= model.MaxRoles {
		return fmt.Sprintf("You can only have up to %d roles. Type 'done' to finish.", model.MaxRoles), outcomeContinue
	}
	if c.draft.HasRole(role) {
		return fmt.Sprintf("You've already entered '%s'. Try another role or type 'done' when finished.", role), outcomeContinue
	}

	c.draft.Roles = append(c.draft.Roles, role)
	return "Got it! Enter another role or type 'done' when you're finished.", outcomeContinue
}

func (c *conversation) handleEditChoice(input string) (string, outcome) {
	field := strings.ToLower(strings.TrimSpace(input))
	switch field {
	case "name", "email", "contact", "start date", "end date", "summary":
		c.editField = field
		c.state = stateEditValue
		return fmt.Sprintf("Enter your new %s:", field), outcomeContinue
	case "done":
		return "Profile update complete.", outcomeUpdated
	default:
		return fmt.Sprintf("Unknown field. Choose one of: %s. Or type 'done' to finish.", editableFields), outcomeContinue
	}
}

func (c *conversation) handleEditValue(input string) (string, outcome) {
	switch c.editField {
	case "name":
		c.draft.Profile.Name = input
	case "email":
		c.draft.Profile.Email = input
	case "contact":
		c.draft.Profile.Contact = input
	case "start date":
		c.draft.Profile.StartDate = input
	case "end date":
		c.draft.Profile.EndDate = input
	case "summary":
		c.draft.Profile.Summary = input
	}
	c.state = stateEditChoice
	return fmt.Sprintf("Your %s has been updated. Edit another field or type 'done' to finish.", c.editField), outcomeContinue
}

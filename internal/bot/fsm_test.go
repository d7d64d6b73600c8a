package bot

import (
	"strings"
	"testing"

	"github.com/jordanseet/internwatch/internal/model"
)

// feed pushes each input through the conversation, asserting every step but
// the last returns outcomeContinue, and returns the final reply and outcome.
func feed(t *testing.T, c *conversation, inputs ...string) (string, outcome) {
	t.Helper()
	var reply string
	var result outcome
	for i, input := range inputs {
		reply, result = c.handle(input)
		if i < len(inputs)-1 && result != outcomeContinue {
			t.Fatalf("step %d (%q): outcome = %v, want continue", i, input, result)
		}
	}
	return reply, result
}

func TestOnboardingHappyPath(t *testing.T) {
	c := newOnboarding(42)

	reply, result := feed(t, c,
		"Software", "Finance", "done",
		"Jordan Seet",
		"jordan@example.com",
		"+6591234567",
		"01-06-2026",
		"31-08-2026",
		"CS undergrad, two prior internships.",
	)

	if result != outcomeRegistered {
		t.Fatalf("outcome = %v, want registered", result)
	}
	if !strings.Contains(reply, "Registration complete") {
		t.Errorf("final reply = %q", reply)
	}

	d := c.draft
	if d.ChatID != 42 {
		t.Errorf("ChatID = %d", d.ChatID)
	}
	if len(d.Roles) != 2 || d.Roles[0] != "software" || d.Roles[1] != "finance" {
		t.Errorf("Roles = %v, want lowercased [software finance]", d.Roles)
	}
	if d.Profile.Name != "Jordan Seet" || d.Profile.Email != "jordan@example.com" {
		t.Errorf("Profile = %+v", d.Profile)
	}
	if d.Profile.StartDate != "01-06-2026" || d.Profile.EndDate != "31-08-2026" {
		t.Errorf("dates = %q / %q", d.Profile.StartDate, d.Profile.EndDate)
	}
}

func TestOnboardingRejectsDoneWithoutRoles(t *testing.T) {
	c := newOnboarding(42)

	reply, result := c.handle("done")
	if result != outcomeContinue {
		t.Fatalf("outcome = %v, want continue", result)
	}
	if !strings.Contains(reply, "at least one") {
		t.Errorf("reply = %q", reply)
	}
	if c.state != stateRoles {
		t.Errorf("state = %v, want stateRoles", c.state)
	}
}

func TestOnboardingRejectsDuplicateRole(t *testing.T) {
	c := newOnboarding(42)
	c.handle("software")

	reply, _ := c.handle("  SOFTWARE  ")
	if !strings.Contains(reply, "already entered") {
		t.Errorf("reply = %q", reply)
	}
	if len(c.draft.Roles) != 1 {
		t.Errorf("Roles = %v, want single entry", c.draft.Roles)
	}
}

func TestOnboardingCapsRoles(t *testing.T) {
	c := newOnboarding(42)
	for _, r := range []string{"a", "b", "c", "d", "e"} {
		c.handle(r)
	}

	reply, _ := c.handle("f")
	if !strings.Contains(reply, "up to 5") {
		t.Errorf("reply = %q", reply)
	}
	if len(c.draft.Roles) != model.MaxRoles {
		t.Errorf("Roles = %v, want %d entries", c.draft.Roles, model.MaxRoles)
	}
}

func TestOnboardingRejectsBadEmail(t *testing.T) {
	c := newOnboarding(42)
	feed(t, c, "software", "done", "Jordan")

	reply, result := c.handle("not-an-email")
	if result != outcomeContinue {
		t.Fatalf("outcome = %v, want continue", result)
	}
	if !strings.Contains(reply, "email") {
		t.Errorf("reply = %q", reply)
	}
	if c.state != stateEmail {
		t.Errorf("state = %v, want stateEmail (retry)", c.state)
	}
}

func TestRoleAdditionFinishesOnDone(t *testing.T) {
	sub := model.Subscriber{ChatID: 42, Roles: []string{"software"}}
	c := newRoleAddition(sub)

	reply, result := feed(t, c, "data", "done")
	if result != outcomeUpdated {
		t.Fatalf("outcome = %v, want updated", result)
	}
	if !strings.Contains(reply, "software, data") {
		t.Errorf("reply = %q", reply)
	}
	if len(c.draft.Roles) != 2 {
		t.Errorf("Roles = %v", c.draft.Roles)
	}
}

func TestProfileEditUpdatesField(t *testing.T) {
	sub := model.Subscriber{
		ChatID:  42,
		Roles:   []string{"software"},
		Profile: model.Profile{Email: "old@example.com"},
	}
	c := newProfileEdit(sub)

	reply, result := feed(t, c, "email", "new@example.com", "done")
	if result != outcomeUpdated {
		t.Fatalf("outcome = %v, want updated", result)
	}
	if !strings.Contains(reply, "complete") {
		t.Errorf("reply = %q", reply)
	}
	if c.draft.Profile.Email != "new@example.com" {
		t.Errorf("Email = %q", c.draft.Profile.Email)
	}
}

func TestProfileEditUnknownField(t *testing.T) {
	c := newProfileEdit(model.Subscriber{ChatID: 42})

	reply, result := c.handle("shoe size")
	if result != outcomeContinue {
		t.Fatalf("outcome = %v, want continue", result)
	}
	if !strings.Contains(reply, "Unknown field") {
		t.Errorf("reply = %q", reply)
	}
}

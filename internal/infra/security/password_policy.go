package security

import "github.com/arklim/auth-session-service/internal/core/port"

const (
	defaultMinPasswordLength   = 8
	defaultMinCharacterClasses = 2
	defaultMinZxcvbnScore      = 2
)

// PasswordPolicy applies a sequence of password rules and reports the first violation.
type PasswordPolicy struct {
	rules []PasswordRule
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)

// NewPasswordPolicy constructs a policy from rules, in evaluation order.
func NewPasswordPolicy(rules ...PasswordRule) *PasswordPolicy {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordPolicy{rules: copied}
}

// DefaultPasswordPolicy enforces length, character mix and zxcvbn strength with minScore.
// A non-positive minScore falls back to the built-in default.
func DefaultPasswordPolicy(minScore int) *PasswordPolicy {
	if minScore <= 0 {
		minScore = defaultMinZxcvbnScore
	}
	return NewPasswordPolicy(
		MinLengthRule(defaultMinPasswordLength),
		RequireCharacterClassesRule(defaultMinCharacterClasses),
		NotEqualToInputsRule(),
		PasswordStrengthRule(minScore),
	)
}

// Validate checks password against every rule; userInputs (login, e-mail, names) feed the strength estimate.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	for _, rule := range p.rules {
		if err := rule.Validate(password, userInputs); err != nil {
			return err
		}
	}
	return nil
}

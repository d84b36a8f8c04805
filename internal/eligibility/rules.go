// Package eligibility holds the per-platform predicate sets evaluated
// against a work snapshot before any transformation or transfer begins.
// Rules are pure: they never mutate the record, and the first failing
// rule's description is surfaced so operators see one actionable reason.
package eligibility

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pressworks/disseminator/internal/model"
)

// ErrAlreadyDisseminated is the duplicate-delivery short-circuit. It is a
// distinct terminal outcome, not a rule failure, so bulk re-runs stay
// idempotent.
var ErrAlreadyDisseminated = errors.New("already disseminated")

// ErrIneligible tags every rule failure so callers can classify with
// errors.Is while still reading the specific reason.
var ErrIneligible = errors.New("not eligible")

// Rule is one named predicate over a work snapshot.
type Rule struct {
	Name  string
	Check func(rec *model.WorkRecord) error
}

// RuleSet is the ordered rule list for one platform. Validation stops at
// the first failure.
type RuleSet struct {
	Platform string
	Rules    []Rule
}

// Validate runs the rules in order and returns the first failure wrapped
// with ErrIneligible, or nil when the work passes every rule.
func (rs RuleSet) Validate(rec *model.WorkRecord) error {
	for _, rule := range rs.Rules {
		if err := rule.Check(rec); err != nil {
			return fmt.Errorf("%w: %s: %s", ErrIneligible, rule.Name, err)
		}
	}
	return nil
}

// CheckDuplicate reports ErrAlreadyDisseminated when the registry snapshot
// already carries a location record for the platform.
func CheckDuplicate(rec *model.WorkRecord, platform string) error {
	if rec.HasLocationFor(platform) {
		return fmt.Errorf("%w: work %s already has a %s location", ErrAlreadyDisseminated, rec.ID, platform)
	}
	return nil
}

// RequireLicence fails when the work carries no licence URL.
func RequireLicence() Rule {
	return Rule{Name: "licence", Check: func(rec *model.WorkRecord) error {
		if rec.LicenceURL == "" {
			return errors.New("work has no licence")
		}
		return nil
	}}
}

// RequireAbstract fails when the work carries no abstract.
func RequireAbstract() Rule {
	return Rule{Name: "abstract", Check: func(rec *model.WorkRecord) error {
		if rec.Abstract == "" {
			return errors.New("work has no abstract")
		}
		return nil
	}}
}

// RequireContributor fails when the work lists no contributors.
func RequireContributor() Rule {
	return Rule{Name: "contributor", Check: func(rec *model.WorkRecord) error {
		if len(rec.Contributors) == 0 {
			return errors.New("work has no contributors")
		}
		return nil
	}}
}

// RequireSubjectType fails unless at least one subject of the given type is
// present.
func RequireSubjectType(subjectType string) Rule {
	return Rule{Name: "subject:" + strings.ToLower(subjectType), Check: func(rec *model.WorkRecord) error {
		for _, s := range rec.Subjects {
			if s.Type == subjectType {
				return nil
			}
		}
		return fmt.Errorf("work has no subject of type %s", subjectType)
	}}
}

// RequireCoverURL fails when the work has no cover image URL.
func RequireCoverURL() Rule {
	return Rule{Name: "cover", Check: func(rec *model.WorkRecord) error {
		if rec.CoverURL == "" {
			return errors.New("work has no cover image URL")
		}
		return nil
	}}
}

// RequirePublication fails unless at least one publication of an accepted
// format exists with a usable canonical location (non-empty URL and, where
// the registry knows it, a positive content length).
func RequirePublication(formats ...model.PublicationFormat) Rule {
	return Rule{Name: "publication", Check: func(rec *model.WorkRecord) error {
		for _, format := range formats {
			pub, ok := rec.PublicationOf(format)
			if !ok {
				continue
			}
			loc, ok := pub.CanonicalURL()
			if !ok {
				continue
			}
			if loc.ContentLength < 0 {
				continue
			}
			return nil
		}
		return fmt.Errorf("no eligible publication: need one of %s with a usable canonical location", formatList(formats))
	}}
}

// RequireISBN fails unless at least one of the given formats carries an
// ISBN; platforms derive filename roots from it.
func RequireISBN(formats ...model.PublicationFormat) Rule {
	return Rule{Name: "isbn", Check: func(rec *model.WorkRecord) error {
		for _, format := range formats {
			if rec.ISBNFor(format) != "" {
				return nil
			}
		}
		return fmt.Errorf("no ISBN present for any of %s", formatList(formats))
	}}
}

func formatList(formats []model.PublicationFormat) string {
	names := make([]string, 0, len(formats))
	for _, f := range formats {
		names = append(names, string(f))
	}
	return strings.Join(names, "/")
}

package term

import (
	"regexp"
	"strings"

	"github.com/kailas-cloud/intentgate/internal/domain"
	"github.com/kailas-cloud/intentgate/internal/domain/fold"
)

// LanguageUndetermined marks a language-independent term.
const LanguageUndetermined = "und"

// languagePattern is the well-formed BCP 47 shape, lowercased: a primary subtag
// followed by alphanumeric subtags.
var languagePattern = regexp.MustCompile(`^[a-z]{1,8}(-[a-z0-9]{1,8})*$`)

// Term maps a localized surface form to its canonical base term (immutable value object).
type Term struct {
	id        string
	baseTerm  string
	localized string
	language  string
}

// New validates and creates a Term. Whitespace is collapsed and the language lowercased.
func New(id, baseTerm, localized, language string) (Term, error) {
	baseTerm = fold.Clean(baseTerm)
	localized = fold.Clean(localized)
	if baseTerm == "" {
		return Term{}, domain.NewValidationError("base_term", "is required")
	}
	if localized == "" {
		return Term{}, domain.NewValidationError("localized_term", "is required")
	}
	language = NormalizeLanguage(language)
	if !ValidLanguage(language) {
		return Term{}, domain.NewValidationError("language", "is not a valid tag")
	}
	return Term{
		id:        id,
		baseTerm:  baseTerm,
		localized: localized,
		language:  language,
	}, nil
}

// Reconstruct creates a Term without validation (storage hydration).
func Reconstruct(id, baseTerm, localized, language string) Term {
	return Term{id: id, baseTerm: baseTerm, localized: localized, language: language}
}

// ID returns the storage id.
func (t Term) ID() string { return t.id }

// BaseTerm returns the canonical form.
func (t Term) BaseTerm() string { return t.baseTerm }

// LocalizedTerm returns the surface form.
func (t Term) LocalizedTerm() string { return t.localized }

// Language returns the lowercased language tag.
func (t Term) Language() string { return t.language }

// LookupKey returns the folded localized form used as the uniqueness key within a language.
func (t Term) LookupKey() string { return fold.Fold(t.localized) }

// WithID returns a copy carrying id.
func (t Term) WithID(id string) Term {
	t.id = id
	return t
}

// NormalizeLanguage lowercases tag and maps empty to LanguageUndetermined.
func NormalizeLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return LanguageUndetermined
	}
	return tag
}

// ValidLanguage reports whether tag is a well-formed language tag after NormalizeLanguage.
func ValidLanguage(tag string) bool {
	return len(tag) <= 35 && languagePattern.MatchString(NormalizeLanguage(tag))
}

// Package category maintains each user's category set and resolves free text
// to a category id.
package category

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"expense_tracker_bot/internal/domain"
	"expense_tracker_bot/internal/logging"
)

// MaxCustomCategories bounds the number of active user-defined categories.
const MaxCustomCategories = 15

var (
	// ErrNameTooLong rejects names above domain.MaxCategoryNameLength characters.
	ErrNameTooLong = errors.New("category name is too long")
	// ErrInvalidName rejects empty names and names starting with a command prefix.
	ErrInvalidName = errors.New("category name is invalid")
	// ErrProtected refuses to deactivate Income or Other.
	ErrProtected = errors.New("category is protected")
	// ErrUnknownCategory is returned for ids missing from the user's map.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrTooManyCategories rejects additions past MaxCustomCategories.
	ErrTooManyCategories = errors.New("too many custom categories")
)

type categoryStore interface {
	SetCategory(ctx context.Context, key domain.ProfileKey, id int, category domain.Category) error
	SetCategories(ctx context.Context, key domain.ProfileKey, categories domain.CategoryMap) error
}

// Classifier picks one of the supplied names for a description.
type Classifier interface {
	Enabled() bool
	Classify(ctx context.Context, description string, names []string) (string, error)
}

// AddResult reports what AddCategory did.
type AddResult struct {
	ID          int
	Name        string
	Reactivated bool
}

// Resolution is the outcome of free-text resolution.
type Resolution struct {
	ID   int
	Name string
	// Fallback is set when the classifier failed and Other was used instead.
	Fallback bool
}

// Resolver owns category mutations and AI resolution.
type Resolver struct {
	store      categoryStore
	classifier Classifier
	logger     *logrus.Entry
}

// NewResolver constructs a Resolver. A nil classifier always falls back.
func NewResolver(store categoryStore, classifier Classifier, logger *logrus.Entry) *Resolver {
	if logger == nil {
		logger = logging.Logger()
	}
	return &Resolver{
		store:      store,
		classifier: classifier,
		logger:     logger,
	}
}

// ActiveCategories returns the user's selectable categories.
func ActiveCategories(profile domain.UserProfile) map[int]string {
	return profile.CategorySet().Active()
}

// ExpenseChoices lists the active categories offered for an expense, ordered
// by id. Income is logged through the "+" prefix and is never offered.
func ExpenseChoices(profile domain.UserProfile) []Choice {
	active := ActiveCategories(profile)
	choices := make([]Choice, 0, len(active))
	for id, name := range active {
		if id == domain.CategoryIncome {
			continue
		}
		choices = append(choices, Choice{ID: id, Name: name})
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i].ID < choices[j].ID })
	return choices
}

// Choice is one selectable category.
type Choice struct {
	ID   int
	Name string
}

// DisplayName resolves an id at read time, including inactive categories.
func DisplayName(profile domain.UserProfile, id int) string {
	if category, ok := profile.CategorySet().Lookup(id); ok {
		return category.Name
	}
	if name, ok := domain.DefaultCategories[id]; ok {
		return name
	}
	return fmt.Sprintf("#%d", id)
}

// IsProtected reports whether a category may not be deactivated.
func IsProtected(id int, name string) bool {
	return id == domain.CategoryOther || id == domain.CategoryIncome || domain.IsProtectedName(name)
}

// ValidateName checks a user-supplied category name.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.HasPrefix(name, "/") {
		return "", ErrInvalidName
	}
	if utf8.RuneCountInString(name) > domain.MaxCategoryNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// AddCategory reactivates a category with the same exact name or allocates a
// fresh id for it.
func (r *Resolver) AddCategory(ctx context.Context, profile domain.UserProfile, name string) (AddResult, error) {
	if err := r.check(ctx); err != nil {
		return AddResult{}, err
	}

	name, err := ValidateName(name)
	if err != nil {
		return AddResult{}, err
	}

	categories := profile.CategorySet()
	id, exists := categories.FindByName(name)

	if exists {
		current, _ := categories.Lookup(id)
		if current.Active {
			return AddResult{ID: id, Name: name}, nil
		}
		_, isDefault := domain.DefaultCategories[id]
		if !isDefault && categories.CustomActiveCount() >= MaxCustomCategories {
			return AddResult{}, ErrTooManyCategories
		}
	} else {
		if categories.CustomActiveCount() >= MaxCustomCategories {
			return AddResult{}, ErrTooManyCategories
		}
		id = categories.NextID()
	}

	if err := r.store.SetCategory(ctx, profile.Key(), id, domain.Category{Name: name, Active: true}); err != nil {
		return AddResult{}, fmt.Errorf("add category: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":       "category_added",
		"user_id":     profile.UserID,
		"category_id": id,
		"reactivated": exists,
	}).Info("category saved")

	return AddResult{ID: id, Name: name, Reactivated: exists}, nil
}

// DeactivateCategory hides a category from selection. Protected categories
// are refused.
func (r *Resolver) DeactivateCategory(ctx context.Context, profile domain.UserProfile, id int) (domain.Category, error) {
	if err := r.check(ctx); err != nil {
		return domain.Category{}, err
	}

	current, ok := profile.CategorySet().Lookup(id)
	if !ok {
		return domain.Category{}, ErrUnknownCategory
	}
	if IsProtected(id, current.Name) {
		return current, ErrProtected
	}
	if !current.Active {
		return current, nil
	}

	current.Active = false
	if err := r.store.SetCategory(ctx, profile.Key(), id, current); err != nil {
		return domain.Category{}, fmt.Errorf("deactivate category: %w", err)
	}

	return current, nil
}

// ResetToDefault reactivates exactly the default ids and deactivates all
// others. Names are restored to the defaults; custom entries keep their ids.
func (r *Resolver) ResetToDefault(ctx context.Context, profile domain.UserProfile) error {
	if err := r.check(ctx); err != nil {
		return err
	}

	categories := profile.CategorySet().Clone()
	for key, category := range categories {
		category.Active = false
		categories[key] = category
	}
	for id, name := range domain.DefaultCategories {
		categories[domain.CategoryKey(id)] = domain.Category{Name: name, Active: true}
	}

	if err := r.store.SetCategories(ctx, profile.Key(), categories); err != nil {
		return fmt.Errorf("reset categories: %w", err)
	}
	return nil
}

// ResolveFreeText asks the classifier for a category. Any failure, including a
// reply that is not one of the offered names, resolves to Other with the
// fallback flag set.
func (r *Resolver) ResolveFreeText(ctx context.Context, profile domain.UserProfile, description string) Resolution {
	fallback := Resolution{
		ID:       domain.CategoryOther,
		Name:     DisplayName(profile, domain.CategoryOther),
		Fallback: true,
	}
	if r == nil || r.classifier == nil || !r.classifier.Enabled() || ctx == nil {
		return fallback
	}

	choices := ExpenseChoices(profile)
	names := make([]string, 0, len(choices))
	for _, choice := range choices {
		names = append(names, choice.Name)
	}

	name, err := r.classifier.Classify(ctx, description, names)
	if err != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "category_fallback",
			"user_id": profile.UserID,
		}).WithError(err).Warn("falling back to Other")
		return fallback
	}

	for _, choice := range choices {
		if choice.Name == name {
			return Resolution{ID: choice.ID, Name: choice.Name}
		}
	}
	return fallback
}

func (r *Resolver) check(ctx context.Context) error {
	if r == nil || r.store == nil {
		return errors.New("category resolver is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	return nil
}

package feed

import (
	"fmt"
	"sort"
)

// Resolver maps a validated tag to the Category an item is filed under.
// Implementations are IdentityResolver and RedirectResolver.
type Resolver interface {
	Resolve(tag string) (Category, error)
	isResolver()
}

// IdentityResolver files every item under the source's own category.
type IdentityResolver struct {
	Category Category
}

func (r IdentityResolver) Resolve(string) (Category, error) {
	return r.Category, nil
}

func (IdentityResolver) isResolver() {}

// RedirectResolver files items by looking their tag up in a table.
type RedirectResolver struct {
	Table map[string]Category
}

func (r RedirectResolver) Resolve(tag string) (Category, error) {
	category, ok := r.Table[NormalizeTag(tag)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnmappedTag, tag)
	}
	return category, nil
}

func (RedirectResolver) isResolver() {}

// Source is an immutable, validated content feed.
type Source struct {
	Name     string
	Reader   string
	URL      string
	Limit    int
	Enabled  bool
	Order    int
	tags     map[string]struct{}
	resolver Resolver
}

func NewSource(cfg *Config) *Source {
	tags := make(map[string]struct{}, len(cfg.Tags))
	for _, tag := range cfg.Tags {
		tags[NormalizeTag(tag)] = struct{}{}
	}

	var resolver Resolver = IdentityResolver{Category: Category(cfg.Name)}
	if len(cfg.Redirect) > 0 {
		table := make(map[string]Category, len(cfg.Redirect))
		for tag, category := range cfg.Redirect {
			table[NormalizeTag(tag)] = Category(category)
		}
		resolver = RedirectResolver{Table: table}
	}

	return &Source{
		Name:     cfg.Name,
		Reader:   cfg.Reader,
		URL:      cfg.URL,
		Limit:    cfg.Settings.Limit,
		Enabled:  cfg.Settings.Enabled,
		Order:    cfg.Settings.Order,
		tags:     tags,
		resolver: resolver,
	}
}

func (s *Source) IsRelevant(tag Tag) bool {
	value, ok := tag.Value()
	if !ok {
		return false
	}
	_, relevant := s.tags[value]
	return relevant
}

func (s *Source) Resolve(tag string) (Category, error) {
	return s.resolver.Resolve(tag)
}

func (s *Source) Resolver() Resolver {
	return s.resolver
}

// Tags returns the relevant tags in sorted order.
func (s *Source) Tags() []string {
	tags := make([]string, 0, len(s.tags))
	for tag := range s.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Categories returns every category the source can file items under.
func (s *Source) Categories() []Category {
	switch r := s.resolver.(type) {
	case RedirectResolver:
		seen := make(map[Category]struct{}, len(r.Table))
		categories := make([]Category, 0, len(r.Table))
		for _, category := range r.Table {
			if _, ok := seen[category]; ok {
				continue
			}
			seen[category] = struct{}{}
			categories = append(categories, category)
		}
		sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
		return categories
	case IdentityResolver:
		return []Category{r.Category}
	default:
		return nil
	}
}

// unmappedTags lists relevant tags the resolver cannot place.
func (s *Source) unmappedTags() []string {
	var missing []string
	for _, tag := range s.Tags() {
		if _, err := s.resolver.Resolve(tag); err != nil {
			missing = append(missing, tag)
		}
	}
	return missing
}

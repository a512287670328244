// Package platform maps marketplace slugs to scraper implementations and
// carries the category metadata used to build crawl targets.
package platform

import (
	"net/url"
	"strings"

	"github.com/nichewatch/nichewatch/internal/crawl"
)

const gumroadBaseURL = "https://gumroad.com"

// Subcategory is one scrapeable slice of a category. SkipScraping marks
// slices whose listing routes are known dead on the marketplace.
type Subcategory struct {
	Label        string
	Slug         string
	SkipScraping bool
}

// Category is a top-level marketplace category. The empty-slug
// subcategory stands for the category-wide listing.
type Category struct {
	Label         string
	Slug          string
	Subcategories []Subcategory
}

// CategoryTree is the supported slice of the Gumroad taxonomy.
var CategoryTree = []Category{
	{
		Label: "3D", Slug: "3d",
		Subcategories: []Subcategory{
			{Label: "All Subcategories", Slug: ""},
			{Label: "Assets", Slug: "assets", SkipScraping: true},
			{Label: "Characters", Slug: "characters", SkipScraping: true},
			{Label: "Models", Slug: "models", SkipScraping: true},
		},
	},
	{
		Label: "Business & Money", Slug: "business-and-money",
		Subcategories: []Subcategory{
			{Label: "All Subcategories", Slug: ""},
			{Label: "Entrepreneurship", Slug: "entrepreneurship"},
			{Label: "Freelancing", Slug: "freelancing"},
			{Label: "Marketing", Slug: "marketing"},
			{Label: "Sales", Slug: "sales"},
		},
	},
	{
		Label: "Design", Slug: "design",
		Subcategories: []Subcategory{
			{Label: "All Subcategories", Slug: ""},
			{Label: "Icons", Slug: "icons"},
			{Label: "Templates", Slug: "templates"},
			{Label: "Fonts", Slug: "fonts"},
			{Label: "UI Kits", Slug: "ui-kits"},
			{Label: "Mockups", Slug: "mockups"},
		},
	},
	{
		Label: "Drawing & Painting", Slug: "drawing-and-painting",
		Subcategories: []Subcategory{
			{Label: "All Subcategories", Slug: ""},
			{Label: "Brushes", Slug: "brushes"},
			{Label: "Procreate Brushes", Slug: "procreate-brushes"},
			{Label: "Tutorials", Slug: "tutorials"},
		},
	},
	{
		Label: "Education", Slug: "education",
		Subcategories: []Subcategory{
			{Label: "All Subcategories", Slug: ""},
			{Label: "Courses", Slug: "courses"},
			{Label: "Study Guides", Slug: "study-guides"},
			{Label: "Worksheets", Slug: "worksheets"},
		},
	},
	{
		Label: "Fitness & Health", Slug: "fitness-and-health",
		Subcategories: []Subcategory{
			{Label: "All Subcategories", Slug: ""},
			{Label: "Workout Programs", Slug: "workout-programs"},
			{Label: "Nutrition", Slug: "nutrition"},
			{Label: "Meal Plans", Slug: "meal-plans"},
		},
	},
	{
		Label: "Productivity", Slug: "productivity",
		Subcategories: []Subcategory{
			{Label: "All Subcategories", Slug: ""},
			{Label: "Notion Templates", Slug: "notion-templates"},
			{Label: "Planners", Slug: "planners"},
			{Label: "Trackers", Slug: "trackers"},
			{Label: "Spreadsheets", Slug: "spreadsheets"},
		},
	},
	{
		Label: "Software Development", Slug: "software-development",
		Subcategories: []Subcategory{
			{Label: "All Subcategories", Slug: ""},
			{Label: "Web Development", Slug: "web-development"},
			{Label: "AI & Machine Learning", Slug: "ai-and-machine-learning"},
			{Label: "Automation", Slug: "automation"},
		},
	},
	{
		Label: "Writing & Publishing", Slug: "writing-and-publishing",
		Subcategories: []Subcategory{
			{Label: "All Subcategories", Slug: ""},
			{Label: "Fiction", Slug: "fiction"},
			{Label: "Nonfiction", Slug: "nonfiction"},
			{Label: "Short Stories", Slug: "short-stories"},
		},
	},
	{
		Label: "Other", Slug: "other",
		Subcategories: []Subcategory{
			{Label: "All Subcategories", Slug: ""},
		},
	},
}

// categorySlugAliases map legacy or external slugs onto the canonical tree.
var categorySlugAliases = map[string]string{
	"programming-and-tech": "software-development",
	"software":             "software-development",
}

// invalidPathPatterns are listing routes known to 404 on Gumroad even
// though the taxonomy lists them.
var invalidPathPatterns = []string{
	"/3d/assets",
	"/3d/characters",
	"/3d/environments",
	"/3d/materials-and-textures",
	"/3d/models",
	"/3d/props",
	"/audio/beats",
	"/audio/loops-and-samples",
	"/audio/mixing-and-mastering",
	"/audio/sound-effects",
	"/audio/vocal-presets",
}

// CategoryBySlug resolves a slug, following aliases, to its category.
func CategoryBySlug(slug string) (Category, bool) {
	if canonical, ok := categorySlugAliases[slug]; ok {
		slug = canonical
	}
	for _, cat := range CategoryTree {
		if cat.Slug == slug {
			return cat, true
		}
	}
	return Category{}, false
}

// AllCategorySlugs returns every canonical category slug in tree order.
func AllCategorySlugs() []string {
	slugs := make([]string, 0, len(CategoryTree))
	for _, cat := range CategoryTree {
		slugs = append(slugs, cat.Slug)
	}
	return slugs
}

// ValidURL reports whether a discover URL avoids the known-dead routes.
func ValidURL(u string) bool {
	for _, pattern := range invalidPathPatterns {
		if strings.Contains(u, pattern) {
			return false
		}
	}
	return true
}

// BuildDiscoverURL constructs the Gumroad listing URL for a category and
// optional subcategory slug. Dead subcategory routes fall back to the
// category-wide listing; an empty category falls back to /discover.
func BuildDiscoverURL(categorySlug, subcategorySlug string) string {
	if categorySlug == "" {
		return gumroadBaseURL + "/discover"
	}
	if canonical, ok := categorySlugAliases[categorySlug]; ok {
		categorySlug = canonical
	}
	base := gumroadBaseURL + "/" + categorySlug
	if subcategorySlug == "" {
		return base
	}
	u := base + "/" + subcategorySlug
	if !ValidURL(u) {
		return base
	}
	return u
}

// BuildSearchURL constructs a Gumroad discover search URL for a query.
func BuildSearchURL(query string) string {
	return gumroadBaseURL + "/discover?" + url.Values{"query": {query}}.Encode()
}

// Targets expands a category into crawl targets for the given platform,
// skipping dead subcategory routes. An unknown slug yields the
// category-wide listing only.
func Targets(platform, categorySlug string) []crawl.Target {
	cat, ok := CategoryBySlug(categorySlug)
	if !ok {
		return []crawl.Target{{
			Platform: platform,
			Category: categorySlug,
			URL:      BuildDiscoverURL(categorySlug, ""),
		}}
	}

	var targets []crawl.Target
	for _, sub := range cat.Subcategories {
		if sub.SkipScraping {
			continue
		}
		targets = append(targets, crawl.Target{
			Platform:    platform,
			Category:    cat.Slug,
			Subcategory: sub.Slug,
			URL:         BuildDiscoverURL(cat.Slug, sub.Slug),
		})
	}
	return targets
}

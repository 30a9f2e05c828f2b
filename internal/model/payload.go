package model

// Category identifies one independent facet of a company profile.
type Category string

// Fixed categories. The order returned by Categories is the order used
// for snapshot rendering; it has no bearing on merge precedence, which is
// policy-driven per category.
const (
	CategoryOverview Category = "overview"
	CategoryMarket   Category = "market"
	CategoryPeople   Category = "people"
)

// Categories returns all categories in canonical order.
func Categories() []Category {
	return []Category{CategoryOverview, CategoryMarket, CategoryPeople}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryOverview, CategoryMarket, CategoryPeople:
		return true
	}
	return false
}

// OverviewPayload is the aggregated company-overview data. Every field is
// nullable or an empty collection so partial provider results merge
// mechanically: a nil/empty field never overrides a populated one.
type OverviewPayload struct {
	Description   *string  `json:"description"`
	Industry      *string  `json:"industry"`
	FoundedYear   *int     `json:"founded_year"`
	Headquarters  *string  `json:"headquarters"`
	EmployeeRange *string  `json:"employee_range"`
	Website       *string  `json:"website"`
	SocialLinks   []string `json:"social_links"`
}

// NewsItem is a single recent news mention.
type NewsItem struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Date  string `json:"date,omitempty"`
}

// MarketPayload is the aggregated market/competitive intelligence data.
type MarketPayload struct {
	Competitors        []string   `json:"competitors"`
	MarketPosition     *string    `json:"market_position"`
	CustomerRating     *float64   `json:"customer_rating"`
	ReviewCount        *int       `json:"review_count"`
	RecentNews         []NewsItem `json:"recent_news"`
	CommunitySentiment *string    `json:"community_sentiment"`
	OpenSourceRepos    *int       `json:"open_source_repos"`
	OpenSourceStars    *int       `json:"open_source_stars"`
	TopLanguages       []string   `json:"top_languages"`
}

// Person is a key person associated with the company.
type Person struct {
	Name       string `json:"name"`
	Title      string `json:"title,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
}

// PeoplePayload is the aggregated people/discovery data.
type PeoplePayload struct {
	KeyPeople     []Person `json:"key_people"`
	OpenRoleCount *int     `json:"open_role_count"`
	OpenRoles     []string `json:"open_roles"`
	HiringSummary *string  `json:"hiring_summary"`
}

// EmptyPayload returns the all-default payload for a category: every
// scalar nil, every collection empty. Returns nil for unknown categories.
func EmptyPayload(c Category) any {
	switch c {
	case CategoryOverview:
		return &OverviewPayload{SocialLinks: []string{}}
	case CategoryMarket:
		return &MarketPayload{
			Competitors:  []string{},
			RecentNews:   []NewsItem{},
			TopLanguages: []string{},
		}
	case CategoryPeople:
		return &PeoplePayload{
			KeyPeople: []Person{},
			OpenRoles: []string{},
		}
	}
	return nil
}

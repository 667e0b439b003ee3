package main

import (
	"time"

	"github.com/google/uuid"

	"blogspot-api/internal/domain"
)

type categorySeed struct {
	Name string
	Icon string
	Desc string
}

var defaultCatalogue = []categorySeed{
	{Name: "Travel", Icon: "✈️", Desc: "Travel experiences, destinations, and tips"},
	{Name: "Food", Icon: "🍽️", Desc: "Recipes, restaurant reviews, and culinary adventures"},
	{Name: "Lifestyle", Icon: "🌟", Desc: "Personal lifestyle, wellness, and daily living"},
	{Name: "Technology", Icon: "💻", Desc: "Tech news, reviews, and tutorials"},
	{Name: "Education", Icon: "📚", Desc: "Learning resources, educational content, and study tips"},
	{Name: "Fashion & Beauty", Icon: "👗", Desc: "Fashion trends, beauty tips, and style guides"},
	{Name: "Finance", Icon: "💰", Desc: "Financial advice, investment tips, and money management"},
	{Name: "Business & Startups", Icon: "💼", Desc: "Business insights, startup stories, and entrepreneurship"},
	{Name: "Entertainment", Icon: "🎬", Desc: "Movies, music, games, and entertainment news"},
	{Name: "Environment & Nature", Icon: "🌍", Desc: "Environmental issues, nature, and sustainability"},
	{Name: "News & Current Affairs", Icon: "📰", Desc: "Latest news and current events"},
	{Name: "Personal Blog", Icon: "✍️", Desc: "Personal thoughts, experiences, and stories"},
}

// buildCategories asigna ids y fecha de alta al catálogo por defecto.
func buildCategories(now time.Time) []domain.Category {
	out := make([]domain.Category, 0, len(defaultCatalogue))
	for _, seed := range defaultCatalogue {
		out = append(out, domain.Category{
			ID:          uuid.NewString(),
			Name:        seed.Name,
			Icon:        seed.Icon,
			Description: seed.Desc,
			CreatedAt:   now.UTC(),
		})
	}
	return out
}

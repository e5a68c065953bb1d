package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidColor is returned when a color is not a #RRGGBB string.
var ErrInvalidColor = errors.New("invalid color format")

// Color is a 24-bit RGB color packed into an integer (0xRRGGBB).
type Color int

// ParseColor parses a "#RRGGBB" string (case-insensitive) into a packed Color.
func ParseColor(s string) (Color, error) {
	if len(s) != 7 || s[0] != '#' {
		return 0, ErrInvalidColor
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return 0, ErrInvalidColor
	}
	return Color(v), nil
}

// Hex returns the color as a lowercase "#rrggbb" string.
func (c Color) Hex() string {
	return fmt.Sprintf("#%06x", int(c)&0xffffff)
}

// Category is a named, per-user bucket that events are grouped under.
type Category struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Color     Color     `json:"color"`
	Emoji     string    `json:"emoji,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategorySummary is a category plus the counters shown on the dashboard.
type CategorySummary struct {
	Category
	LastPing         *time.Time `json:"last_ping"`
	UniqueFieldCount int        `json:"unique_field_count"`
	EventsCount      int64      `json:"events_count"`
}

// NormalizeCategoryName lowercases and trims a category name.
func NormalizeCategoryName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// QuickstartCategories is the preset list inserted by the quickstart seed.
var QuickstartCategories = []Category{
	{Name: "bug", Emoji: "🐛", Color: 0xff6b6b},
	{Name: "sale", Emoji: "💰", Color: 0xffeb3b},
	{Name: "question", Emoji: "🤔", Color: 0x6c5ce7},
}

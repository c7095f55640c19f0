package profile

import (
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Profile is the persisted per-user preference record. One row per user.
type Profile struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Name          *string   `json:"name"`
	DietTypes     []string  `json:"diet_types"`
	Allergies     *string   `json:"allergies"`
	FavoriteFoods *string   `json:"favorite_foods"`
	Dislikes      *string   `json:"dislikes"`
	Goals         []string  `json:"goals"`
	CalorieTarget *int      `json:"calorie_target"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FromPreferences maps wizard output onto the stored shape. Every
// preference field is set, so an upsert of the result fully replaces
// the previous row. ID and timestamps are left for the store.
func FromPreferences(userID string, p Preferences) *Profile {
	name := p.Name
	return &Profile{
		UserID:        userID,
		Name:          &name,
		DietTypes:     cloneOrEmpty(p.DietType),
		Allergies:     nullIfEmpty(p.Allergies),
		FavoriteFoods: nullIfEmpty(p.FavoriteFoods),
		Dislikes:      nullIfEmpty(p.Dislikes),
		Goals:         cloneOrEmpty(p.Goals),
		CalorieTarget: ParseCalorieTarget(p.CalorieTarget),
	}
}

// ToPreferences is the inverse of FromPreferences. Nulls become empty
// strings and empty slices, so "" and NULL free text are not told apart.
func ToPreferences(p *Profile) Preferences {
	if p == nil {
		return Preferences{DietType: []string{}, Goals: []string{}}
	}
	prefs := Preferences{
		Name:          deref(p.Name),
		DietType:      cloneOrEmpty(p.DietTypes),
		Allergies:     deref(p.Allergies),
		FavoriteFoods: deref(p.FavoriteFoods),
		Dislikes:      deref(p.Dislikes),
		Goals:         cloneOrEmpty(p.Goals),
	}
	if p.CalorieTarget != nil {
		prefs.CalorieTarget = strconv.Itoa(*p.CalorieTarget)
	}
	return prefs
}

// ParseCalorieTarget reads the leading integer of s the way a lenient
// form parser would ("1800 kcal" -> 1800). Empty, unparsable and
// non-positive input yield nil.
func ParseCalorieTarget(s string) *int {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return nil
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil || n <= 0 {
		return nil
	}
	return &n
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneOrEmpty(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

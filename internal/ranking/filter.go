package ranking

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dpetrov/speedrun-tracker/internal/models"
)

// Filter narrows or reorders a submission set for display. Field names
// and direction values match what the frontend sends.
type Filter struct {
	Field string // name, game, bugs, author, date
	Value string // "(A-Z)"/"(Z-A)" for name, "Newer"/"Older" for date, exact match otherwise
}

// Apply evaluates the filter against the given submissions. The input
// slice is not modified.
func Apply(subs []models.Submission, f Filter) ([]models.Submission, error) {
	switch f.Field {
	case "name":
		out := make([]models.Submission, len(subs))
		copy(out, subs)
		asc := f.Value == "(A-Z)"
		sort.SliceStable(out, func(i, j int) bool {
			a := strings.ToLower(out[i].Name)
			b := strings.ToLower(out[j].Name)
			if asc {
				return a < b
			}
			return a > b
		})
		return out, nil
	case "game":
		want := strings.ToUpper(f.Value)
		return match(subs, func(s models.Submission) bool { return s.Game == want }), nil
	case "bugs":
		return match(subs, func(s models.Submission) bool { return s.Bugs == f.Value }), nil
	case "author":
		return match(subs, func(s models.Submission) bool { return s.Author == f.Value }), nil
	case "date":
		dir := OlderFirst
		if f.Value == "Newer" {
			dir = NewerFirst
		}
		return SortByDate(subs, dir)
	default:
		return nil, fmt.Errorf("unknown filter field %q", f.Field)
	}
}

// Search keeps submissions whose name contains the input as a substring.
func Search(subs []models.Submission, input string) []models.Submission {
	return match(subs, func(s models.Submission) bool {
		return strings.Contains(s.Name, input)
	})
}

func match(subs []models.Submission, keep func(models.Submission) bool) []models.Submission {
	out := make([]models.Submission, 0, len(subs))
	for _, s := range subs {
		if keep(s) {
			out = append(out, s)
		}
	}
	return out
}

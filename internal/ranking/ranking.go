package ranking

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dpetrov/speedrun-tracker/internal/models"
	pkgerrors "github.com/dpetrov/speedrun-tracker/pkg/errors"
)

// Direction selects the ordering of a date sort.
type Direction int

const (
	NewerFirst Direction = iota
	OlderFirst
)

// DateLayout is the textual date format carried by submissions,
// en-US style month/day/year without zero padding.
const DateLayout = "1/2/2006"

type dateKey struct {
	year, month, day int
}

func (k dateKey) less(other dateKey) bool {
	if k.year != other.year {
		return k.year < other.year
	}
	if k.month != other.month {
		return k.month < other.month
	}
	return k.day < other.day
}

func parseDate(s string) (dateKey, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return dateKey{}, fmt.Errorf("%w: %q", pkgerrors.ErrMalformedDate, s)
	}
	month, err := strconv.Atoi(parts[0])
	if err != nil {
		return dateKey{}, fmt.Errorf("%w: %q", pkgerrors.ErrMalformedDate, s)
	}
	day, err := strconv.Atoi(parts[1])
	if err != nil {
		return dateKey{}, fmt.Errorf("%w: %q", pkgerrors.ErrMalformedDate, s)
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return dateKey{}, fmt.Errorf("%w: %q", pkgerrors.ErrMalformedDate, s)
	}
	return dateKey{year: year, month: month, day: day}, nil
}

// SortByDate returns the submissions reordered by their embedded date.
// The sort is stable: submissions with equal dates keep their relative
// order. The input slice is not modified. A submission with a date that
// does not parse as M/D/YYYY makes the whole sort fail.
func SortByDate(subs []models.Submission, dir Direction) ([]models.Submission, error) {
	keys := make([]dateKey, len(subs))
	for i, sub := range subs {
		key, err := parseDate(sub.Date)
		if err != nil {
			return nil, err
		}
		keys[i] = key
	}

	idx := make([]int, len(subs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		a, b := keys[idx[i]], keys[idx[j]]
		if dir == NewerFirst {
			return b.less(a)
		}
		return a.less(b)
	})

	out := make([]models.Submission, len(subs))
	for i, j := range idx {
		out[i] = subs[j]
	}
	return out, nil
}

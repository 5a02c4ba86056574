// Package gate decides whether a proposed speedrun submission may be
// persisted: per-user daily throttling plus field validity rules.
package gate

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dpetrov/speedrun-tracker/internal/models"
	"github.com/dpetrov/speedrun-tracker/internal/ranking"
	pkgerrors "github.com/dpetrov/speedrun-tracker/pkg/errors"
)

// Clock supplies the current time. The production clock is the system
// clock; tests pin it.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Store is the read surface the gate needs. The uniqueness checks here
// are best-effort pre-checks; the database unique indexes are the
// authoritative guard against concurrent duplicates.
type Store interface {
	SubmissionsByAuthor(ctx context.Context, author string) ([]models.Submission, error)
	SubmissionNameExists(ctx context.Context, name string) (bool, error)
	SubmissionURLExists(ctx context.Context, url string) (bool, error)
	GameExists(ctx context.Context, name string) (bool, error)
}

// Proposal is a submission as the author sent it, before admission.
type Proposal struct {
	Name          string
	Game          string
	URL           string
	Bugs          string // "Yes" or "No"
	Author        string
	AuthorIsAdmin bool
}

type Gate struct {
	store Store
	clock Clock
}

func New(store Store, clock Clock) *Gate {
	return &Gate{store: store, clock: clock}
}

// Admit runs the admission rules in order and returns the submission
// record to persist, stamped awaiting and dated today. The first
// failing rule wins.
func (g *Gate) Admit(ctx context.Context, p Proposal) (*models.Submission, error) {
	today := g.clock.Now().Format(ranking.DateLayout)

	if !p.AuthorIsAdmin {
		prior, err := g.store.SubmissionsByAuthor(ctx, p.Author)
		if err != nil {
			return nil, err
		}
		sorted, err := ranking.SortByDate(prior, ranking.NewerFirst)
		if err != nil {
			return nil, err
		}
		if len(sorted) > 0 && sorted[0].Date == today {
			return nil, pkgerrors.ErrDailyLimit
		}
	}

	// Length is counted in characters, not bytes.
	if n := utf8.RuneCountInString(p.Name); n < 10 || n > 50 {
		return nil, pkgerrors.ErrNameLength
	}

	if taken, err := g.store.SubmissionNameExists(ctx, p.Name); err != nil {
		return nil, err
	} else if taken {
		return nil, pkgerrors.ErrNameExists
	}

	if taken, err := g.store.SubmissionURLExists(ctx, p.URL); err != nil {
		return nil, err
	} else if taken {
		return nil, pkgerrors.ErrURLExists
	}

	if known, err := g.store.GameExists(ctx, strings.ToUpper(p.Game)); err != nil {
		return nil, err
	} else if !known {
		return nil, pkgerrors.ErrUnknownGame
	}

	if !ValidURL(p.URL) {
		return nil, pkgerrors.ErrInvalidURL
	}

	return &models.Submission{
		Name:   p.Name,
		Game:   strings.ToUpper(p.Game),
		URL:    p.URL,
		Bugs:   p.Bugs,
		Author: p.Author,
		Date:   today,
		Status: models.StatusAwaiting,
	}, nil
}

// urlPattern accepts protocol, domain or IPv4, optional port, path,
// query and fragment. The pattern nominally allows plain http, but the
// explicit https:// prefix check below is authoritative.
var urlPattern = regexp.MustCompile(`(?i)^(https?://)?((([a-z\d]([a-z\d-]*[a-z\d])*)\.)+[a-z]{2,}|((\d{1,3}\.){3}\d{1,3}))(:\d+)?(/[-a-z\d%_.~+]*)*(\?[;&a-z\d%_.~+=-]*)?(#[-a-z\d_]*)?$`)

func ValidURL(url string) bool {
	if !strings.HasPrefix(url, "https://") {
		return false
	}
	return urlPattern.MatchString(url)
}

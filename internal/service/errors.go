package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_bookstore/internal/domain"
	"github.com/fjod/go_bookstore/internal/repository"
)

// maxWriteAttempts bounds compare-and-swap retries and order-number
// regeneration.
const maxWriteAttempts = 5

var errCartBusy = domain.Errorf(domain.ErrConflict, "cart was modified concurrently, please retry")

func bookNotFound(id string) error {
	return domain.Errorf(domain.ErrNotFound, "book with id %s not found", id)
}

// lookupBook maps the repository's not-found into the domain taxonomy.
func lookupBook(err error, id string) error {
	if errors.Is(err, repository.ErrBookNotFound) {
		return bookNotFound(id)
	}
	return fmt.Errorf("failed to look up book %s: %w", id, err)
}

// Counter is satisfied by prometheus counters.
type Counter interface {
	Inc()
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func utcNow() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

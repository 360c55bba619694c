package bookclub

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iudanet/bookclub/internal/client/mutation"
)

// Validation errors reported before any network call
var (
	ErrRatingRange     = errors.New("rating must be between 1 and 5")
	ErrRequired        = errors.New("field is required")
	ErrNegative        = errors.New("value must not be negative")
	ErrPageOutOfRange  = errors.New("current page exceeds total pages")
	errMembersReadOnly = errors.New("members change only through join and leave")
)

const (
	minRating = 1
	maxRating = 5
)

func validateReview(p mutation.Payload) error {
	if err := requireText(p, "bookId"); err != nil {
		return err
	}
	rating, ok := intField(p, "rating")
	if !ok {
		return fmt.Errorf("rating: %w", ErrRequired)
	}
	return checkRating(rating)
}

func validateRatingIfSet(p mutation.Payload) error {
	if rating, ok := intField(p, "rating"); ok {
		return checkRating(rating)
	}
	return nil
}

func checkRating(rating int) error {
	if rating < minRating || rating > maxRating {
		return fmt.Errorf("%w: got %d", ErrRatingRange, rating)
	}
	return nil
}

func validateEvento(p mutation.Payload) error {
	if err := requireText(p, "titulo"); err != nil {
		return err
	}
	return requireText(p, "dataInicio")
}

func validateCitacao(p mutation.Payload) error {
	if err := requireText(p, "livroId"); err != nil {
		return err
	}
	if err := requireText(p, "texto"); err != nil {
		return err
	}
	return validatePagina(p)
}

func validatePagina(p mutation.Payload) error {
	return validateNonNegative(p, "pagina")
}

func validateLivro(p mutation.Payload) error {
	if err := requireText(p, "titulo"); err != nil {
		return err
	}
	if err := requireText(p, "autor"); err != nil {
		return err
	}
	return validateNonNegative(p, "paginas")
}

func validateProgress(p mutation.Payload) error {
	if err := requireText(p, "livroId"); err != nil {
		return err
	}
	return validatePages(p)
}

func validatePages(p mutation.Payload) error {
	if err := validateNonNegative(p, "paginaAtual"); err != nil {
		return err
	}
	if err := validateNonNegative(p, "totalPaginas"); err != nil {
		return err
	}
	current, _ := intField(p, "paginaAtual")
	total, ok := intField(p, "totalPaginas")
	if ok && total > 0 && current > total {
		return fmt.Errorf("%w: %d > %d", ErrPageOutOfRange, current, total)
	}
	return nil
}

func validateNonNegative(p mutation.Payload, key string) error {
	if v, ok := intField(p, key); ok && v < 0 {
		return fmt.Errorf("%s: %w", key, ErrNegative)
	}
	return nil
}

func requireText(p mutation.Payload, key string) error {
	if strings.TrimSpace(stringField(p, key)) == "" {
		return fmt.Errorf("%s: %w", key, ErrRequired)
	}
	return nil
}

func stringField(p mutation.Payload, key string) string {
	s, _ := p[key].(string)
	return s
}

func intField(p mutation.Payload, key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

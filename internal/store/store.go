package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"drinksmenu/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	ListDrinks(ctx context.Context) ([]model.Drink, error)
	GetDrink(ctx context.Context, id int64) (model.Drink, error)
	CreateDrink(ctx context.Context, title, recipe string) (model.Drink, error)
	UpdateDrink(ctx context.Context, id int64, patch model.DrinkPatch) (model.Drink, error)
	DeleteDrink(ctx context.Context, id int64) error

	Ping(ctx context.Context) error
	Close() error
}

// MaxTitleLength is the longest title, in characters, any store accepts.
const MaxTitleLength = 80

var (
	ErrNotFound       = errors.New("not found")
	ErrDuplicateTitle = errors.New("duplicate title")
	ErrTitleTooLong   = errors.New("title too long")
)

func checkTitle(title string) error {
	if n := utf8.RuneCountInString(title); n > MaxTitleLength {
		return fmt.Errorf("%w: %d characters, max %d", ErrTitleTooLong, n, MaxTitleLength)
	}
	return nil
}

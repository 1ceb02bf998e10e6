package api

import (
	"context"
	"errors"

	"drinksmenu/internal/model"
)

var errStoreDown = errors.New("connection refused")

// failingStore answers every call with errStoreDown.
type failingStore struct{}

func (failingStore) ListDrinks(context.Context) ([]model.Drink, error) { return nil, errStoreDown }
func (failingStore) GetDrink(context.Context, int64) (model.Drink, error) {
	return model.Drink{}, errStoreDown
}
func (failingStore) CreateDrink(context.Context, string, string) (model.Drink, error) {
	return model.Drink{}, errStoreDown
}
func (failingStore) UpdateDrink(context.Context, int64, model.DrinkPatch) (model.Drink, error) {
	return model.Drink{}, errStoreDown
}
func (failingStore) DeleteDrink(context.Context, int64) error { return errStoreDown }
func (failingStore) Ping(context.Context) error             { return errStoreDown }
func (failingStore) Close() error                           { return nil }

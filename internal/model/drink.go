// Package model holds the drink entity and its public representations.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Drink is a stored menu entry. Recipe is the raw JSON text as it was posted.
type Drink struct {
	ID     int64
	Title  string
	Recipe string
}

// Ingredient is one entry of a recipe.
type Ingredient struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

// ShortIngredient is an ingredient without its parts count.
type ShortIngredient struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ShortDrink is the public menu view of a drink.
type ShortDrink struct {
	ID     int64             `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

// LongDrink is the detailed view of a drink; Recipe is returned verbatim.
type LongDrink struct {
	ID     int64           `json:"id"`
	Title  string          `json:"title"`
	Recipe json.RawMessage `json:"recipe"`
}

// DrinkPatch carries the fields of a partial update. Nil fields are left untouched.
type DrinkPatch struct {
	Title  *string
	Recipe *string
}

var ErrRecipeMissing = errors.New("recipe is empty")

// Short decodes the stored recipe and drops the parts counts.
// A recipe stored as a single object is treated as a one-element list.
func (d Drink) Short() (ShortDrink, error) {
	raw := bytes.TrimSpace([]byte(d.Recipe))
	if len(raw) == 0 {
		return ShortDrink{}, ErrRecipeMissing
	}
	var items []ShortIngredient
	if raw[0] == '{' {
		var one ShortIngredient
		if err := json.Unmarshal(raw, &one); err != nil {
			return ShortDrink{}, fmt.Errorf("drink %d: decode recipe: %w", d.ID, err)
		}
		items = []ShortIngredient{one}
	} else if err := json.Unmarshal(raw, &items); err != nil {
		return ShortDrink{}, fmt.Errorf("drink %d: decode recipe: %w", d.ID, err)
	}
	if items == nil {
		items = []ShortIngredient{}
	}
	return ShortDrink{ID: d.ID, Title: d.Title, Recipe: items}, nil
}

// Long returns the drink with its recipe exactly as stored.
func (d Drink) Long() (LongDrink, error) {
	raw := bytes.TrimSpace([]byte(d.Recipe))
	if len(raw) == 0 {
		return LongDrink{}, ErrRecipeMissing
	}
	if !json.Valid(raw) {
		return LongDrink{}, fmt.Errorf("drink %d: recipe is not valid JSON", d.ID)
	}
	return LongDrink{ID: d.ID, Title: d.Title, Recipe: json.RawMessage(raw)}, nil
}

// ShortAll maps drinks to their short form, failing on the first bad recipe.
func ShortAll(drinks []Drink) ([]ShortDrink, error) {
	out := make([]ShortDrink, 0, len(drinks))
	for _, d := range drinks {
		s, err := d.Short()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// LongAll maps drinks to their long form, failing on the first bad recipe.
func LongAll(drinks []Drink) ([]LongDrink, error) {
	out := make([]LongDrink, 0, len(drinks))
	for _, d := range drinks {
		l, err := d.Long()
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

// EncodeRecipe compacts a posted recipe into its stored text form.
func EncodeRecipe(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", ErrRecipeMissing
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return "", fmt.Errorf("encode recipe: %w", err)
	}
	return buf.String(), nil
}

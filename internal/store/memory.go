package store

import (
	"context"
	"sort"
	"sync"

	"drinksmenu/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
// It enforces the same structural rules as the SQL schema: unique titles of
// at most MaxTitleLength characters and ids that are never reused.
type Memory struct {
	mu     sync.Mutex
	drinks map[int64]model.Drink // id -> drink
	nextID int64
}

func NewMemory() *Memory {
	return &Memory{drinks: map[int64]model.Drink{}, nextID: 1}
}

func (m *Memory) ListDrinks(ctx context.Context) ([]model.Drink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Drink, 0, len(m.drinks))
	for _, d := range m.drinks {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetDrink(ctx context.Context, id int64) (model.Drink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drinks[id]
	if !ok {
		return model.Drink{}, ErrNotFound
	}
	return d, nil
}

func (m *Memory) CreateDrink(ctx context.Context, title, recipe string) (model.Drink, error) {
	if err := checkTitle(title); err != nil {
		return model.Drink{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.titleTaken(title, 0) {
		return model.Drink{}, ErrDuplicateTitle
	}
	d := model.Drink{ID: m.nextID, Title: title, Recipe: recipe}
	m.drinks[d.ID] = d
	m.nextID++
	return d, nil
}

func (m *Memory) UpdateDrink(ctx context.Context, id int64, patch model.DrinkPatch) (model.Drink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drinks[id]
	if !ok {
		return model.Drink{}, ErrNotFound
	}
	if patch.Title != nil {
		if err := checkTitle(*patch.Title); err != nil {
			return model.Drink{}, err
		}
		if m.titleTaken(*patch.Title, id) {
			return model.Drink{}, ErrDuplicateTitle
		}
		d.Title = *patch.Title
	}
	if patch.Recipe != nil {
		d.Recipe = *patch.Recipe
	}
	m.drinks[id] = d
	return d, nil
}

func (m *Memory) DeleteDrink(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.drinks[id]; !ok {
		return ErrNotFound
	}
	delete(m.drinks, id)
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() error { return nil }

// titleTaken reports whether another drink (other than skip) already uses title.
func (m *Memory) titleTaken(title string, skip int64) bool {
	for id, d := range m.drinks {
		if id != skip && d.Title == title {
			return true
		}
	}
	return false
}

package models

import (
	"time"

	"github.com/hookfreight/hookfreight/internal/idgen"
)

// App groups endpoints, typically one per environment or team.
type App struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewApp(name string) App {
	now := time.Now().UTC()
	return App{
		ID:        idgen.App(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

package models

import "github.com/uptrace/bun"

type Category struct {
	bun.BaseModel `bun:"table:categories"`

	ID   string `bun:"id,pk" json:"id"`
	Name string `bun:"name,unique,notnull" json:"name"`
}

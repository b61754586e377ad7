package model

type Article struct {
	ID        string `db:"id" json:"id"`
	Reference string `db:"reference" json:"reference"`
	Name      string `db:"name" json:"name"`
	Unit      string `db:"unit" json:"unit"`
	IsActive  bool   `db:"is_active" json:"is_active"`
}

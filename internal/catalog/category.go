package catalog

import "fmt"

// Category enumerates the reference-entity kinds a game can be linked to.
// Each category maps to a fixed (reference table, junction table, FK column)
// triple so the store never addresses tables by runtime strings.
type Category int

const (
	CategoryPublisher Category = iota
	CategoryDeveloper
	CategoryGenre
	CategoryTag
	CategoryFeature
	CategoryLanguage
)

type categorySchema struct {
	name      string
	table     string
	junction  string
	fkColumn  string
	pairIsKey bool
}

// Junction table names are uneven (game_publishers vs games_genres); the
// schema is consumed as-is, so the mapping mirrors it exactly.
var schemas = [...]categorySchema{
	CategoryPublisher: {"publisher", "publishers", "game_publishers", "publisher_id", false},
	CategoryDeveloper: {"developer", "developers", "game_developers", "developer_id", false},
	CategoryGenre:     {"genre", "genres", "games_genres", "genre_id", true},
	CategoryTag:       {"tag", "tags", "games_tags", "tag_id", true},
	CategoryFeature:   {"feature", "features", "games_features", "feature_id", true},
	CategoryLanguage:  {"language", "languages", "games_languages", "language_id", true},
}

func (c Category) valid() bool {
	return c >= CategoryPublisher && c <= CategoryLanguage
}

func (c Category) String() string {
	if !c.valid() {
		return fmt.Sprintf("category(%d)", int(c))
	}
	return schemas[c].name
}

// Table returns the reference table holding (id, name) rows.
func (c Category) Table() string { return schemas[c].table }

// Junction returns the junction table linking games to this category.
func (c Category) Junction() string { return schemas[c].junction }

// FKColumn returns the junction column referencing the reference table.
func (c Category) FKColumn() string { return schemas[c].fkColumn }

// PairIsPrimaryKey reports whether the junction declares (game_id, fk) as
// its primary key. The publisher/developer junctions predate that
// constraint, so their upserts need an existence probe instead of
// ON CONFLICT.
func (c Category) PairIsPrimaryKey() bool { return schemas[c].pairIsKey }

// ListCategories are the categories embedded in list-endpoint payloads.
func ListCategories() []Category {
	return []Category{CategoryPublisher, CategoryDeveloper}
}

// DetailCategories are the categories supplied by the detail source.
func DetailCategories() []Category {
	return []Category{CategoryGenre, CategoryTag, CategoryFeature, CategoryLanguage}
}

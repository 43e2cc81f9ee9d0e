// Package sqlcatalog reflects a schema.Catalog from the information_schema
// of a PostgreSQL database.
//
// Every table of the reflected schema becomes a model and every column a
// field. Foreign keys become relations: a column named authorId (or
// author_id) referencing the User table adds an author relation to the
// model and a list relation back on the User model. Relations are named
// after the referencing column, or after the referenced table when the
// column name carries no usable prefix.
//
// A typical usage:
//
//	db, err := sql.Open("postgres", dsn)
//	if err != nil {
//		log.Fatal(err)
//	}
//	catalog, err := sqlcatalog.Load(ctx, db, "public")
package sqlcatalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/restgen/restgen/schema"
)

const columnsQuery = `
	SELECT table_name, column_name, data_type, udt_name
	FROM information_schema.columns
	WHERE table_schema = $1
	ORDER BY table_name, ordinal_position`

const foreignKeysQuery = `
	SELECT tc.table_name, kcu.column_name, ccu.table_name
	FROM information_schema.table_constraints tc
	JOIN information_schema.key_column_usage kcu
	  ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
	JOIN information_schema.constraint_column_usage ccu
	  ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
	WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1
	ORDER BY tc.table_name, kcu.column_name`

// Querier is the subset of *sql.DB used to reflect the schema.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// Load reflects the tables of the given database schema ("public" if empty)
// into a schema.Registry.
func Load(ctx context.Context, db Querier, schemaName string) (*schema.Registry, error) {
	if schemaName == "" {
		schemaName = "public"
	}
	models, order, err := loadColumns(ctx, db, schemaName)
	if err != nil {
		return nil, err
	}
	if err := loadForeignKeys(ctx, db, schemaName, models); err != nil {
		return nil, err
	}
	list := make([]*schema.Model, 0, len(order))
	for _, name := range order {
		list = append(list, models[name])
	}
	return schema.NewRegistry(list...)
}

func loadColumns(ctx context.Context, db Querier, schemaName string) (map[string]*schema.Model, []string, error) {
	rows, err := db.QueryContext(ctx, columnsQuery, schemaName)
	if err != nil {
		return nil, nil, fmt.Errorf("sqlcatalog: query columns: %w", err)
	}
	defer rows.Close()
	models := map[string]*schema.Model{}
	order := []string{}
	for rows.Next() {
		var table, column, dataType, udtName string
		if err := rows.Scan(&table, &column, &dataType, &udtName); err != nil {
			return nil, nil, fmt.Errorf("sqlcatalog: scan column: %w", err)
		}
		m, found := models[table]
		if !found {
			m = &schema.Model{Name: table}
			models[table] = m
			order = append(order, table)
		}
		m.Fields = append(m.Fields, columnField(column, dataType, udtName))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("sqlcatalog: read columns: %w", err)
	}
	return models, order, nil
}

func loadForeignKeys(ctx context.Context, db Querier, schemaName string, models map[string]*schema.Model) error {
	rows, err := db.QueryContext(ctx, foreignKeysQuery, schemaName)
	if err != nil {
		return fmt.Errorf("sqlcatalog: query foreign keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var table, column, target string
		if err := rows.Scan(&table, &column, &target); err != nil {
			return fmt.Errorf("sqlcatalog: scan foreign key: %w", err)
		}
		src, found := models[table]
		if !found {
			continue
		}
		dst, found := models[target]
		if !found {
			continue
		}
		addRelation(src, relationName(column, target), target, false)
		addRelation(dst, lowerFirst(table)+"s", table, true)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlcatalog: read foreign keys: %w", err)
	}
	return nil
}

// addRelation adds a relation field to m unless a field with the same name
// already exists.
func addRelation(m *schema.Model, name, target string, list bool) {
	if _, found := m.Field(name); found {
		return
	}
	m.Fields = append(m.Fields, schema.Field{
		Name:   name,
		Kind:   schema.ObjectKind,
		Type:   target,
		IsList: list,
	})
}

// columnField maps a PostgreSQL column type to a catalog field.
func columnField(column, dataType, udtName string) schema.Field {
	f := schema.Field{Name: column, Kind: schema.ScalarKind}
	switch dataType {
	case "ARRAY":
		f.IsList = true
		f.Type = udtType(strings.TrimPrefix(udtName, "_"))
	case "USER-DEFINED":
		f.Kind = schema.EnumKind
		f.Type = udtName
	default:
		f.Type = dataTypes[dataType]
		if f.Type == "" {
			f.Type = schema.String
		}
	}
	return f
}

var dataTypes = map[string]string{
	"smallint":                    schema.Int,
	"integer":                     schema.Int,
	"bigint":                      schema.BigInt,
	"real":                        schema.Float,
	"double precision":            schema.Float,
	"numeric":                     schema.Decimal,
	"boolean":                     schema.Boolean,
	"date":                        schema.DateTime,
	"timestamp without time zone": schema.DateTime,
	"timestamp with time zone":    schema.DateTime,
	"json":                        schema.JSON,
	"jsonb":                       schema.JSON,
	"bytea":                       schema.Bytes,
}

// udtTypes maps array element types, as found in udt_name, to field types.
var udtTypes = map[string]string{
	"int2":        schema.Int,
	"int4":        schema.Int,
	"int8":        schema.BigInt,
	"float4":      schema.Float,
	"float8":      schema.Float,
	"numeric":     schema.Decimal,
	"bool":        schema.Boolean,
	"date":        schema.DateTime,
	"timestamp":   schema.DateTime,
	"timestamptz": schema.DateTime,
	"json":        schema.JSON,
	"jsonb":       schema.JSON,
	"bytea":       schema.Bytes,
}

func udtType(name string) string {
	if t, found := udtTypes[name]; found {
		return t
	}
	return schema.String
}

// relationName derives a relation name from a foreign key column:
// authorId and author_id give author.
func relationName(column, target string) string {
	for _, suffix := range []string{"Id", "ID", "_id"} {
		if name := strings.TrimSuffix(column, suffix); name != column && name != "" {
			return name
		}
	}
	return lowerFirst(target)
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

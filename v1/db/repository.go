package db

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"

	toolkiterrors "github.com/mirkobrombin/go-toolkit/v1/errors"
)

// NotFoundError reports a primary key with no row. It matches
// errors.ErrNotFound from the toolkit errors package.
type NotFoundError struct {
	Model string
	ID    any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("db: %s %v not found", e.Model, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == toolkiterrors.ErrNotFound
}

// ColumnError reports attributes that are not columns of the model.
type ColumnError struct {
	Model   string
	Columns []string
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("db: %v are not columns of %s", e.Columns, e.Model)
}

var (
	errCompositeKey = errors.New("db: model needs exactly one primary key")
	schemaCache     sync.Map
)

func parseSchema(model any) (*schema.Schema, error) {
	return schema.Parse(model, &schemaCache, schema.NamingStrategy{})
}

// Repository gives typed access to rows of M keyed by a single primary key
// of type PK. It runs on the session passed to NewRepository; use one
// repository per unit of work.
type Repository[M any, PK any] struct {
	tx *gorm.DB
}

// NewRepository binds a repository to tx, typically the session handed to
// Database.Session.
func NewRepository[M any, PK any](tx *gorm.DB) *Repository[M, PK] {
	return &Repository[M, PK]{tx: tx}
}

func (r *Repository[M, PK]) schema() (*schema.Schema, error) {
	return parseSchema(new(M))
}

func (r *Repository[M, PK]) byID(ctx context.Context, id PK) (*gorm.DB, *schema.Schema, error) {
	s, err := r.schema()
	if err != nil {
		return nil, nil, err
	}
	if len(s.PrimaryFields) != 1 {
		return nil, nil, errCompositeKey
	}
	pk := s.PrimaryFields[0].DBName
	return r.tx.WithContext(ctx).Model(new(M)).Where(clause.Eq{Column: clause.Column{Table: clause.CurrentTable, Name: pk}, Value: id}), s, nil
}

// One returns the row with primary key id, or nil when there is none.
func (r *Repository[M, PK]) One(ctx context.Context, id PK, preload ...string) (*M, error) {
	q, _, err := r.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, assoc := range preload {
		q = q.Preload(assoc)
	}
	m := new(M)
	if err := q.Take(m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// Exists reports whether a row with primary key id exists.
func (r *Repository[M, PK]) Exists(ctx context.Context, id PK) (bool, error) {
	q, _, err := r.byID(ctx, id)
	if err != nil {
		return false, err
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// Create inserts m and returns it with generated fields filled in.
func (r *Repository[M, PK]) Create(ctx context.Context, m *M) (*M, error) {
	if err := r.tx.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// CreateMany inserts every item in one statement.
func (r *Repository[M, PK]) CreateMany(ctx context.Context, items []*M) ([]*M, error) {
	if len(items) == 0 {
		return items, nil
	}
	if err := r.tx.WithContext(ctx).Create(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Update sets attrs, keyed by column or field name, on the row with primary
// key id and returns the reloaded row. Unknown keys fail with *ColumnError
// before anything is written.
func (r *Repository[M, PK]) Update(ctx context.Context, id PK, attrs map[string]any) (*M, error) {
	s, err := r.schema()
	if err != nil {
		return nil, err
	}
	var unknown []string
	for k := range attrs {
		if s.LookUpField(k) == nil {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		return nil, &ColumnError{Model: s.Name, Columns: unknown}
	}

	m, err := r.One(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, &NotFoundError{Model: s.Name, ID: id}
	}
	if err := r.tx.WithContext(ctx).Model(m).Updates(attrs).Error; err != nil {
		return nil, err
	}
	return r.One(ctx, id)
}

// Delete removes the row with primary key id.
func (r *Repository[M, PK]) Delete(ctx context.Context, id PK) error {
	return r.DeleteMany(ctx, []PK{id})
}

// DeleteMany removes every listed row. It fails without deleting anything
// when one of them does not exist.
func (r *Repository[M, PK]) DeleteMany(ctx context.Context, ids []PK) error {
	found := make([]*M, 0, len(ids))
	for _, id := range ids {
		m, err := r.One(ctx, id)
		if err != nil {
			return err
		}
		if m == nil {
			s, _ := r.schema()
			return &NotFoundError{Model: s.Name, ID: id}
		}
		found = append(found, m)
	}
	for _, m := range found {
		if err := r.tx.WithContext(ctx).Delete(m).Error; err != nil {
			return err
		}
	}
	return nil
}

// Query narrows Many.
type Query struct {
	// Where and Args follow gorm's Where conventions.
	Where    any
	Args     []any
	Preload  []string
	Order    string
	Page     int
	PageSize int
}

// Many returns the rows matching q. Pages are 1-based; a zero PageSize
// returns every match.
func (r *Repository[M, PK]) Many(ctx context.Context, q Query) ([]M, error) {
	tx := r.tx.WithContext(ctx).Model(new(M))
	if q.Where != nil {
		tx = tx.Where(q.Where, q.Args...)
	}
	for _, assoc := range q.Preload {
		tx = tx.Preload(assoc)
	}
	if q.Order != "" {
		tx = tx.Order(q.Order)
	}
	if q.PageSize > 0 {
		page := max(q.Page, 1)
		tx = tx.Offset((page - 1) * q.PageSize).Limit(q.PageSize)
	}
	var out []M
	if err := tx.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ToMap returns the column values of model keyed by column name, with
// extra entries layered on top.
func ToMap(model any, extra map[string]any) (map[string]any, error) {
	rv := reflect.ValueOf(model)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("db: ToMap of nil %T", model)
		}
		rv = rv.Elem()
	}
	s, err := parseSchema(model)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(s.DBNames)+len(extra))
	for _, name := range s.DBNames {
		f := s.FieldsByDBName[name]
		v, _ := f.ValueOf(context.Background(), rv)
		out[name] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out, nil
}

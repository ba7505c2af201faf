// internal/app/store/datastore/sql.go
package datastore

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQL stores each table in a relational table of the same name through
// gorm. Schema is managed by migrations outside this package; every table
// needs a text "id" primary key.
type SQL struct {
	db *gorm.DB
}

// NewSQL returns a Store over db.
func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) Find(ctx context.Context, table string, c Criteria) ([]Row, error) {
	tx := s.query(ctx, table, c.Filter)
	if len(c.Columns) > 0 {
		tx = tx.Select(c.Columns)
	}
	for _, o := range c.Order {
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: o.Column}, Desc: o.Desc})
	}
	if c.Limit > 0 {
		tx = tx.Limit(c.Limit)
	}
	rows := []Row{}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SQL) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	if len(rows) == 0 {
		return []Row{}, nil
	}
	in := make([]map[string]any, len(rows))
	copy(in, rows)
	if err := s.db.WithContext(ctx).Table(table).Create(&in).Error; err != nil {
		if isSQLDup(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rows, nil
}

func (s *SQL) Update(ctx context.Context, table string, filter map[string]any, patch Row) ([]Row, error) {
	var out []Row
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := s.ids(tx, table, filter)
		if err != nil || len(ids) == 0 {
			return err
		}
		if err := tx.Table(table).Where("id IN ?", ids).Updates(map[string]any(patch)).Error; err != nil {
			return err
		}
		out = []Row{}
		return tx.Table(table).Where("id IN ?", ids).Find(&out).Error
	})
	if err != nil {
		if isSQLDup(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	if out == nil {
		out = []Row{}
	}
	return out, nil
}

func (s *SQL) Delete(ctx context.Context, table string, filter map[string]any) ([]Row, error) {
	var out []Row
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		out = []Row{}
		if err := tx.Table(table).Where(filter).Find(&out).Error; err != nil {
			return err
		}
		if len(out) == 0 {
			return nil
		}
		ids := make([]any, len(out))
		for i, r := range out {
			ids[i] = r["id"]
		}
		return tx.Exec("DELETE FROM ? WHERE id IN ?", clause.Table{Name: table}, ids).Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQL) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQL) query(ctx context.Context, table string, filter map[string]any) *gorm.DB {
	tx := s.db.WithContext(ctx).Table(table)
	if len(filter) > 0 {
		tx = tx.Where(filter)
	}
	return tx
}

func (s *SQL) ids(tx *gorm.DB, table string, filter map[string]any) ([]any, error) {
	var ids []string
	if err := tx.Table(table).Where(filter).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out, nil
}

func isSQLDup(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "sqlstate 23505")
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/tracker/internal/model"
)

type customFieldRow struct {
	ID      string `db:"id"`
	Name    string `db:"name"`
	Type    string `db:"type"`
	Options string `db:"options"`
}

func (r customFieldRow) toModel() (model.CustomField, error) {
	f := model.CustomField{ID: r.ID, Name: r.Name, Type: model.CustomFieldType(r.Type)}
	if r.Options != "" {
		if err := json.Unmarshal([]byte(r.Options), &f.Options); err != nil {
			return f, fmt.Errorf("unmarshaling options of field %s: %w", r.ID, err)
		}
	}
	return f, nil
}

// CreateCustomField inserts a new custom field definition.
func (s *SQLiteStore) CreateCustomField(ctx context.Context, f *model.CustomField) error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("custom field name must not be empty")
	}
	if f.ID == "" {
		f.ID = "customfield_" + newID()[:8]
	}
	options, err := json.Marshal(f.Options)
	if err != nil {
		return fmt.Errorf("marshaling field options: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO custom_fields (id, name, type, options) VALUES (?, ?, ?, ?)",
		f.ID, f.Name, string(f.Type), string(options),
	)
	if err != nil {
		return fmt.Errorf("creating custom field: %w", err)
	}
	return nil
}

// GetCustomField retrieves a custom field definition by ID.
func (s *SQLiteStore) GetCustomField(ctx context.Context, id string) (*model.CustomField, error) {
	var row customFieldRow
	err := s.db.GetContext(ctx, &row,
		"SELECT id, name, type, options FROM custom_fields WHERE id = ?", id)
	if err != nil {
		return nil, notFound(err, "custom field", id)
	}
	f, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// GetCustomFields retrieves all custom field definitions ordered by name.
func (s *SQLiteStore) GetCustomFields(ctx context.Context) ([]model.CustomField, error) {
	var rows []customFieldRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, name, type, options FROM custom_fields ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("querying custom fields: %w", err)
	}
	out := make([]model.CustomField, 0, len(rows))
	for _, r := range rows {
		f, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// GetFieldValue retrieves the value of a field on an issue. An unset
// field yields an empty value and no error.
func (s *SQLiteStore) GetFieldValue(
	ctx context.Context,
	issueID string,
	fieldID string,
) (model.FieldValue, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw, `
		SELECT value FROM custom_field_values
		WHERE issue_id = ? AND field_id = ?`, issueID, fieldID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.FieldValue{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting field %s on issue %s: %w", fieldID, issueID, err)
	}
	var v model.FieldValue
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("unmarshaling field %s on issue %s: %w", fieldID, issueID, err)
	}
	return v, nil
}

// FieldChange is one custom field value written by SetFieldValues.
type FieldChange struct {
	FieldID string
	Value   model.FieldValue
}

// SetFieldValue stores the value of a field on an issue. An empty value
// clears the field.
func (s *SQLiteStore) SetFieldValue(
	ctx context.Context,
	issueID string,
	fieldID string,
	value model.FieldValue,
) error {
	return setFieldValue(ctx, s.db, issueID, fieldID, value)
}

// SetFieldValues stores several field values of an issue, appends
// changes to its history and bumps its updated_at, all in one
// transaction. No other issue column is written.
func (s *SQLiteStore) SetFieldValues(
	ctx context.Context,
	issueID string,
	values []FieldChange,
	changes []model.ChangeItem,
) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		for _, v := range values {
			if err := setFieldValue(ctx, tx, issueID, v.FieldID, v.Value); err != nil {
				return err
			}
		}
		ts := now()
		result, err := tx.ExecContext(ctx,
			"UPDATE issues SET updated_at = ? WHERE id = ?", ts, issueID)
		if err != nil {
			return fmt.Errorf("touching issue %s: %w", issueID, err)
		}
		if err := requireAffected(result, "issue", issueID); err != nil {
			return err
		}
		return insertChangeItemsTx(ctx, tx, issueID, ts, changes)
	})
}

func setFieldValue(
	ctx context.Context,
	db sqlx.ExecerContext,
	issueID string,
	fieldID string,
	value model.FieldValue,
) error {
	if len(value) == 0 {
		_, err := db.ExecContext(ctx,
			"DELETE FROM custom_field_values WHERE issue_id = ? AND field_id = ?",
			issueID, fieldID)
		if err != nil {
			return fmt.Errorf("clearing field %s on issue %s: %w", fieldID, issueID, err)
		}
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshaling field value: %w", err)
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO custom_field_values (issue_id, field_id, value)
		VALUES (?, ?, ?)`, issueID, fieldID, string(raw))
	if err != nil {
		return fmt.Errorf("setting field %s on issue %s: %w", fieldID, issueID, err)
	}
	return nil
}

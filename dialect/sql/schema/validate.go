package schema

import (
	"fmt"
	"strings"
)

// ValidationError reports one problem found in table metadata.
type ValidationError struct {
	Table   string
	Column  string
	Message string
	// Breaking indicates a change that can destroy data or break readers.
	Breaking bool
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the findings of a validation pass.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// HasBreakingChanges returns true if any finding is marked breaking.
func (r *ValidationResult) HasBreakingChanges() bool {
	for _, e := range r.Errors {
		if e.Breaking {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Breaking {
			return true
		}
	}
	return false
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			if e.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			if w.Breaking {
				sb.WriteString(" [BREAKING]")
			}
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

// ValidateOption configures schema validation.
type ValidateOption func(*validateConfig)

type validateConfig struct {
	allowDropColumn    bool
	allowDropTable     bool
	allowNullToNotNull bool
}

// AllowDropColumn downgrades dropped-column findings to warnings.
func AllowDropColumn() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropColumn = true
	}
}

// AllowDropTable downgrades dropped-table findings to warnings.
func AllowDropTable() ValidateOption {
	return func(c *validateConfig) {
		c.allowDropTable = true
	}
}

// AllowNullToNotNull downgrades NULL-to-NOT-NULL findings to warnings.
func AllowNullToNotNull() ValidateOption {
	return func(c *validateConfig) {
		c.allowNullToNotNull = true
	}
}

// ValidateTable checks one table definition for the invariants the statement
// builder relies on: resolvable columns, a member discriminator, and foreign
// keys whose two sides agree on arity.
func ValidateTable(t *Table) *ValidationResult {
	result := &ValidationResult{}

	if t.Name == "" {
		result.Errors = append(result.Errors, &ValidationError{
			Table:   t.Name,
			Message: "table has no name",
		})
	}

	if len(t.PrimaryKey) == 0 {
		result.Warnings = append(result.Warnings, &ValidationError{
			Table:   t.Name,
			Message: "table has no primary key",
		})
	}

	members := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if members[c.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  c.Name,
				Message: "duplicate column name",
			})
		}
		members[c.Name] = true
		if !c.Type.Valid() {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Column:  c.Name,
				Message: fmt.Sprintf("unknown column type %q", c.Type),
			})
		}
	}

	for _, c := range t.PrimaryKey {
		if !members[c.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: fmt.Sprintf("primary key references non-member column %q", c.Name),
			})
		}
	}

	// The builder derives discriminator restrictions from this column, so it
	// must resolve inside the table.
	if d := t.Discriminator; d != nil && !members[d.Name] {
		result.Errors = append(result.Errors, &ValidationError{
			Table:   t.Name,
			Column:  d.Name,
			Message: "discriminator is not a member column",
		})
	}

	for _, fk := range t.ForeignKeys {
		for _, c := range fk.Columns {
			if !members[c.Name] {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Message: fmt.Sprintf("foreign key %q references non-member column %q", fk.Symbol, c.Name),
				})
			}
		}
		if fk.RefTable == nil {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: fmt.Sprintf("foreign key %q has no referenced table", fk.Symbol),
			})
			continue
		}
		if len(fk.Columns) != len(fk.RefColumns) {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: fmt.Sprintf("foreign key %q has %d columns but references %d", fk.Symbol, len(fk.Columns), len(fk.RefColumns)),
			})
		}
		for _, c := range fk.RefColumns {
			if fk.RefTable.Column(c.Name) == nil {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Message: fmt.Sprintf("foreign key %q references non-existent column %q.%q", fk.Symbol, fk.RefTable.Name, c.Name),
				})
			}
		}
	}

	names := make(map[string]bool, len(t.Indexes))
	for _, idx := range t.Indexes {
		if names[idx.Name] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.Name,
				Message: fmt.Sprintf("duplicate index name: %s", idx.Name),
			})
		}
		names[idx.Name] = true
		for _, c := range idx.Columns {
			if c != nil && !members[c.Name] {
				result.Errors = append(result.Errors, &ValidationError{
					Table:   t.Name,
					Message: fmt.Sprintf("index %q references non-member column %q", idx.Name, c.Name),
				})
			}
		}
	}

	return result
}

// ValidateSchema validates a set of tables together, including foreign key
// references across tables.
func ValidateSchema(tables []*Table) *ValidationResult {
	result := &ValidationResult{}

	seen := make(map[string]bool, len(tables))
	for _, t := range tables {
		if seen[t.QualifiedName()] {
			result.Errors = append(result.Errors, &ValidationError{
				Table:   t.QualifiedName(),
				Message: "duplicate table name",
			})
		}
		seen[t.QualifiedName()] = true

		tr := ValidateTable(t)
		result.Errors = append(result.Errors, tr.Errors...)
		result.Warnings = append(result.Warnings, tr.Warnings...)
	}

	for _, t := range tables {
		for _, fk := range t.ForeignKeys {
			if fk.RefTable != nil && !seen[fk.RefTable.QualifiedName()] {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   t.Name,
					Message: fmt.Sprintf("foreign key %q references table %q outside this set", fk.Symbol, fk.RefTable.Name),
				})
			}
		}
	}

	return result
}

// ValidateDiff validates the transition from the current table set to the
// desired one, flagging operations that can destroy data.
func ValidateDiff(current, desired []*Table, opts ...ValidateOption) *ValidationResult {
	cfg := &validateConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	result := &ValidationResult{}
	currentMap := make(map[string]*Table, len(current))
	for _, t := range current {
		currentMap[t.Name] = t
	}
	desiredMap := make(map[string]*Table, len(desired))
	for _, t := range desired {
		desiredMap[t.Name] = t
	}

	for name := range currentMap {
		if _, ok := desiredMap[name]; !ok {
			err := &ValidationError{
				Table:    name,
				Message:  "table will be dropped",
				Breaking: true,
			}
			if cfg.allowDropTable {
				result.Warnings = append(result.Warnings, err)
			} else {
				result.Errors = append(result.Errors, err)
			}
		}
	}

	for name, want := range desiredMap {
		have, ok := currentMap[name]
		if !ok {
			continue
		}
		diffTable(have, want, cfg, result)
	}

	return result
}

func diffTable(current, desired *Table, cfg *validateConfig, result *ValidationResult) {
	for _, c := range current.Columns {
		if desired.Column(c.Name) == nil {
			err := &ValidationError{
				Table:    current.Name,
				Column:   c.Name,
				Message:  "column will be dropped",
				Breaking: true,
			}
			if cfg.allowDropColumn {
				result.Warnings = append(result.Warnings, err)
			} else {
				result.Errors = append(result.Errors, err)
			}
		}
	}

	for _, want := range desired.Columns {
		have := current.Column(want.Name)
		if have == nil {
			if !want.Nullable && want.Default == nil {
				result.Warnings = append(result.Warnings, &ValidationError{
					Table:   current.Name,
					Column:  want.Name,
					Message: "new NOT NULL column without default value may fail if table has data",
				})
			}
			continue
		}
		if have.Type != want.Type {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  want.Name,
				Message: fmt.Sprintf("column type changing from %v to %v", have.Type, want.Type),
			})
		}
		if have.Nullable && !want.Nullable {
			err := &ValidationError{
				Table:    current.Name,
				Column:   want.Name,
				Message:  "column changing from NULL to NOT NULL may fail if column has NULL values",
				Breaking: true,
			}
			if cfg.allowNullToNotNull {
				result.Warnings = append(result.Warnings, err)
			} else {
				result.Errors = append(result.Errors, err)
			}
		}
		if have.Size > 0 && want.Size > 0 && want.Size < have.Size {
			result.Warnings = append(result.Warnings, &ValidationError{
				Table:   current.Name,
				Column:  want.Name,
				Message: fmt.Sprintf("column size reducing from %d to %d may truncate data", have.Size, want.Size),
			})
		}
	}

	// Removing the discriminator orphans rows written for subclasses.
	if current.Discriminator != nil && desired.Discriminator == nil {
		result.Errors = append(result.Errors, &ValidationError{
			Table:    current.Name,
			Column:   current.Discriminator.Name,
			Message:  "discriminator column will be removed",
			Breaking: true,
		})
	}
}

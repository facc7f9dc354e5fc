package apiutil

import "database/sql"

func NullStringValue(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

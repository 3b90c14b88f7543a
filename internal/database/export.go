/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ExportTables lists every table that ExportTable can dump, in dump order.
var ExportTables = []string{
	"users",
	"transactions",
	"return_requests",
	"refund_logs",
	"auto_return_errors",
	"invoices",
	"cart_items",
	"notifications",
}

// ExportTable reads every row of table as a column-keyed record. Money
// columns lose their _minor suffix and come back as decimals; millisecond
// timestamps come back as RFC 3339 strings.
func (s *Service) ExportTable(ctx context.Context, table string) ([]map[string]any, error) {
	if !slices.Contains(ExportTables, table) {
		return nil, fmt.Errorf("unknown table %q", table)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+table+" ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("unable to query %s: %w", table, err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("unable to read %s columns: %w", table, err)
	}

	records := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("unable to scan %s row: %w", table, err)
		}

		record := make(map[string]any, len(columns))
		for i, column := range columns {
			name, value := exportValue(column, values[i])
			record[name] = value
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table, err)
	}

	zap.L().Debug("Exported table", zap.String("table", table), zap.Int("rows", len(records)))
	return records, nil
}

func exportValue(column string, value any) (string, any) {
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	n, isInt := value.(int64)

	if name, ok := strings.CutSuffix(column, "_minor"); ok {
		if isInt {
			return name, fromMinor(n)
		}
		return name, value
	}
	if isInt && isTimeColumn(column) {
		return column, fromMillis(n).Format(time.RFC3339Nano)
	}
	return column, value
}

func isTimeColumn(column string) bool {
	return strings.HasSuffix(column, "_at") || column == "timestamp" || column == "deadline"
}

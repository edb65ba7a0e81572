/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// tsLayout is fixed width so timestamps order correctly as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z"

// language=SQL
// dialect=SQLite
const insertMaskCheckpointSQL = `INSERT INTO mask_checkpoints(ts, png) VALUES (?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestMaskCheckpointSQL = `SELECT ts, png FROM mask_checkpoints ORDER BY ts DESC, id DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const pruneMaskCheckpointsSQL = `DELETE FROM mask_checkpoints WHERE id NOT IN (
	SELECT id FROM mask_checkpoints ORDER BY ts DESC, id DESC LIMIT ?
)`

// SaveMaskCheckpoint persists a PNG of the mask buffer.
func SaveMaskCheckpoint(ctx context.Context, ph *ProjectHandle, png []byte, ts time.Time) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, insertMaskCheckpointSQL, ts.UTC().Format(tsLayout), png)
	return err
}

// LatestMaskCheckpoint returns the newest checkpoint, or nil when there is none.
func LatestMaskCheckpoint(ctx context.Context, ph *ProjectHandle) ([]byte, time.Time, error) {
	if ph == nil {
		return nil, time.Time{}, errors.New("nil ProjectHandle")
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer func() { _ = db.Close() }()
	var tsStr string
	var blob []byte
	err = db.QueryRowContext(ctx, selectLatestMaskCheckpointSQL).Scan(&tsStr, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	ts, err := time.Parse(tsLayout, tsStr)
	if err != nil {
		return blob, time.Time{}, nil // the blob is still usable
	}
	return blob, ts, nil
}

// PruneMaskCheckpoints keeps the newest keepLast checkpoints and returns how many were deleted.
func PruneMaskCheckpoints(ctx context.Context, ph *ProjectHandle, keepLast int) (int64, error) {
	if ph == nil {
		return 0, errors.New("nil ProjectHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneMaskCheckpointsSQL, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

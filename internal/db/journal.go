// Package db persists a per-frame decision journal in SQLite so every
// automatic parameter change can be audited after a run.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/cognitive.radar/internal/messages"
)

// Journal records IntelligencePackets for one run.
type Journal struct {
	db    *sql.DB
	runID string
}

// AdaptationRecord is one journalled scale factor with its reasoning.
type AdaptationRecord struct {
	FrameID   uint64
	Parameter messages.Parameter
	Scale     float64
	Reasoning string
}

// Open opens or creates the journal at path, applies migrations and
// starts a new run for sensorID.
func Open(ctx context.Context, path, sensorID, mode string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps SQLite writes serialised.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000; PRAGMA foreign_keys=ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{db: db, runID: uuid.NewString()}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, sensor_id, mode, started_at) VALUES (?, ?, ?, ?)`,
		j.runID, sensorID, mode, time.Now().UTC()); err != nil {
		db.Close()
		return nil, fmt.Errorf("start run: %w", err)
	}
	return j, nil
}

// RunID identifies the run this journal writes to.
func (j *Journal) RunID() string { return j.runID }

// SchemaVersion returns the applied migration version.
func (j *Journal) SchemaVersion() (uint, error) {
	v, dirty, err := migrateVersion(j.db)
	if err != nil {
		return 0, err
	}
	if dirty {
		return v, fmt.Errorf("journal schema is dirty at version %d", v)
	}
	return v, nil
}

// RecordFrame writes the situation and adaptation of pkt in one
// transaction.
func (j *Journal) RecordFrame(ctx context.Context, pkt messages.IntelligencePacket) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	sa := pkt.Situation
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO frames (
			run_id, frame_id, timestamp, scene_type, clutter_ratio, mean_confidence,
			mean_stability, velocity_spread, snr_db, num_confirmed, num_tracks,
			num_detections, overall_confidence, data_quality, sensor_health, num_threats
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.runID, int64(pkt.FrameID), pkt.Timestamp.UTC(), string(sa.SceneType), sa.ClutterRatio,
		sa.MeanClassificationConfidence, sa.MeanTrackStability, sa.MeanVelocitySpread,
		sa.EstimatedSNRdB, sa.NumConfirmedTracks, len(pkt.Tracks), sa.NumDetections,
		pkt.OverallConfidence, pkt.DataQuality, pkt.SensorHealth, len(pkt.Threats),
	); err != nil {
		return fmt.Errorf("insert frame %d: %w", pkt.FrameID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO adaptations (run_id, frame_id, parameter, scale, reasoning) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, p := range messages.Parameters {
		if _, err := stmt.ExecContext(ctx, j.runID, int64(pkt.FrameID), string(p),
			pkt.Adaptation.Scale(p), pkt.Adaptation.Reasoning[p]); err != nil {
			return fmt.Errorf("insert adaptation %s for frame %d: %w", p, pkt.FrameID, err)
		}
	}
	return tx.Commit()
}

// RecentAdaptations returns the adaptation rows of the latest limit frames
// of this run, newest frame first, parameters in stable order.
func (j *Journal) RecentAdaptations(ctx context.Context, limit int) ([]AdaptationRecord, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT frame_id, parameter, scale, reasoning FROM adaptations
		WHERE run_id = ? AND frame_id IN (
			SELECT frame_id FROM frames WHERE run_id = ? ORDER BY frame_id DESC LIMIT ?
		)
		ORDER BY frame_id DESC, parameter ASC`, j.runID, j.runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AdaptationRecord
	for rows.Next() {
		var (
			r       AdaptationRecord
			frameID int64
			param   string
		)
		if err := rows.Scan(&frameID, &param, &r.Scale, &r.Reasoning); err != nil {
			return nil, err
		}
		r.FrameID = uint64(frameID)
		r.Parameter = messages.Parameter(param)
		out = append(out, r)
	}
	return out, rows.Err()
}

// FrameCount returns the number of frames journalled in this run.
func (j *Journal) FrameCount(ctx context.Context) (int, error) {
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM frames WHERE run_id = ?`, j.runID).Scan(&n)
	return n, err
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

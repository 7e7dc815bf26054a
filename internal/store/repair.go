package store

import (
	"os"
	"time"

	"github.com/mwaldstein/qipu/internal/extractor"
	"github.com/mwaldstein/qipu/internal/qipuerrors"
)

// repairBatchSize is how many changed notes Repair reindexes before
// recording a resume checkpoint. A rebuild interrupted partway through a
// large store does not redo the batches a prior run already completed:
// those notes carry matching mtimes in the index and are skipped.
const repairBatchSize = 200

// RepairResult summarizes one incremental repair pass.
type RepairResult struct {
	Reindexed []string // ids re-parsed and upserted (new or changed mtime)
	Removed   []string // ids dropped because their file no longer exists
}

// Repair implements §4.E's incremental repair: every filesystem note is
// compared against the index's recorded mtime; a new or changed file is
// re-parsed and upserted, with its edges rebuilt from scratch; any
// indexed id whose file is gone is removed.
//
// Reindexing work is done in batches of repairBatchSize; a checkpoint is
// recorded after each completed batch via Index.RecordCheckpoint. A prior
// run's checkpoint (if any) sets the batch number the next checkpoint
// continues from; the notes that run already reindexed match their
// indexed mtime and are skipped by the comparison above. Checkpoints are
// cleared once a pass finishes without interruption.
func (s *Store) Repair() (*RepairResult, error) {
	paths, err := s.ListNotes()
	if err != nil {
		return nil, err
	}
	indexed, err := s.Index.NoteMtimes()
	if err != nil {
		return nil, err
	}

	resumeBatch := 0
	if batchNumber, _, ok, err := s.Index.LatestCheckpoint(); err == nil && ok {
		resumeBatch = batchNumber + 1
	}

	result := &RepairResult{}
	onDisk := make(map[string]struct{}, len(paths))

	batchNumber := resumeBatch
	sinceCheckpoint := 0

	for _, path := range paths {
		n, err := s.readNote(path)
		if err != nil {
			return nil, err
		}
		onDisk[n.ID] = struct{}{}

		info, err := os.Stat(path)
		if err != nil {
			return nil, qipuerrors.Wrap(qipuerrors.Io, err, "stat note during repair").WithToken(path)
		}
		mtime := info.ModTime().UnixNano()

		row, seen := indexed[n.ID]
		if seen && row.Mtime == mtime && row.Path == path {
			continue
		}

		if err := s.indexNote(n, mtime); err != nil {
			return nil, err
		}
		result.Reindexed = append(result.Reindexed, n.ID)

		sinceCheckpoint++
		if sinceCheckpoint == repairBatchSize {
			if err := s.Index.RecordCheckpoint(batchNumber, n.ID, time.Now().UTC().Format(time.RFC3339)); err != nil {
				return nil, err
			}
			batchNumber++
			sinceCheckpoint = 0
		}
	}

	for id := range indexed {
		if _, present := onDisk[id]; !present {
			if err := s.Index.DeleteNote(id); err != nil {
				return nil, err
			}
			result.Removed = append(result.Removed, id)
		}
	}

	if err := s.Index.ClearCheckpoints(); err != nil {
		return nil, err
	}

	if s.Logger != nil && (len(result.Reindexed) > 0 || len(result.Removed) > 0) {
		s.Logger.Info("incremental repair", "reindexed", len(result.Reindexed), "removed", len(result.Removed))
	}
	return result, nil
}

// RepairIfInconsistent triggers Repair only when the indexed note count
// disagrees with the filesystem note count, per §4.E's open-time
// consistency check.
func (s *Store) RepairIfInconsistent() (*RepairResult, error) {
	paths, err := s.ListNotes()
	if err != nil {
		return nil, err
	}
	count, err := s.Index.NoteCount()
	if err != nil {
		return nil, err
	}
	if count == len(paths) {
		return nil, nil
	}
	return s.Repair()
}

// UnresolvedRef is one dangling link target, exposed by Doctor.
type UnresolvedRef struct {
	SourceID  string
	TargetRef string
}

// DriftEntry describes a note whose filesystem mtime disagrees with the
// indexed value, or whose presence differs between disk and index.
type DriftEntry struct {
	ID     string
	Reason string // "missing_from_index" | "missing_from_disk" | "mtime_mismatch"
}

// DoctorReport is the read-only diagnostic produced by Doctor.
type DoctorReport struct {
	Unresolved []UnresolvedRef
	Drift      []DriftEntry
}

// Doctor compares the filesystem and the SQLite index without mutating
// either, reporting unresolved link references and any drift between the
// two. Rendering this report is a CLI concern; Doctor only produces data.
func (s *Store) Doctor() (*DoctorReport, error) {
	paths, err := s.ListNotes()
	if err != nil {
		return nil, err
	}
	indexed, err := s.Index.NoteMtimes()
	if err != nil {
		return nil, err
	}

	report := &DoctorReport{}
	onDisk := make(map[string]struct{}, len(paths))
	validIDs, err := s.validIDs()
	if err != nil {
		return nil, err
	}

	for _, path := range paths {
		n, err := s.readNote(path)
		if err != nil {
			return nil, err
		}
		onDisk[n.ID] = struct{}{}

		row, seen := indexed[n.ID]
		if !seen {
			report.Drift = append(report.Drift, DriftEntry{ID: n.ID, Reason: "missing_from_index"})
			continue
		}
		info, statErr := os.Stat(path)
		if statErr == nil && info.ModTime().UnixNano() != row.Mtime {
			report.Drift = append(report.Drift, DriftEntry{ID: n.ID, Reason: "mtime_mismatch"})
		}

		_, unresolved := extractor.Extract(n, validIDs, map[string]string{path: n.ID}, "")
		for _, ref := range unresolved {
			report.Unresolved = append(report.Unresolved, UnresolvedRef{SourceID: n.ID, TargetRef: ref})
		}
	}

	for id := range indexed {
		if _, present := onDisk[id]; !present {
			report.Drift = append(report.Drift, DriftEntry{ID: id, Reason: "missing_from_disk"})
		}
	}

	return report, nil
}

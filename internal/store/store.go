// Package store implements the Project Store (PS): durable, versioned
// filesystem persistence for trees and matrices. Version allocation uses
// atomic create-if-not-exists on the target version file, the filesystem
// analogue of the "INSERT ... ON CONFLICT DO NOTHING, retry" idiom SQL
// stores use for collision-safe sequence allocation — adopted here
// because the spec's storage contract is an exact file layout, not a
// database schema the teacher's bun/Postgres stack could serve.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kestrelhq/hypoengine/internal/domain"
	"github.com/kestrelhq/hypoengine/internal/domain/errs"
)

const maxVersionAllocationRetries = 16

var unsafeProjectIDChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// SanitizeProjectID maps an arbitrary caller-supplied identifier to a
// filesystem-safe one: each run of characters other than letters, digits,
// '_' and '-' becomes one underscore, leading and trailing underscores are
// trimmed, and an empty result falls back to "project".
func SanitizeProjectID(id string) string {
	sanitized := unsafeProjectIDChars.ReplaceAllString(id, "_")
	sanitized = strings.Trim(sanitized, "_")
	if sanitized == "" {
		return "project"
	}
	return sanitized
}

// Store is a filesystem-backed Project Store.
type Store struct {
	rootDir string
}

// New constructs a Store rooted at rootDir, creating it if absent.
func New(rootDir string) (*Store, error) {
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, errs.NewConfigError("store", "creating store root directory", err)
	}
	return &Store{rootDir: rootDir}, nil
}

func (s *Store) projectDir(projectID string) string {
	return filepath.Join(s.rootDir, SanitizeProjectID(projectID))
}

func treeFileName(version int) string {
	return fmt.Sprintf("hypothesis_tree_v%d.json", version)
}

func matrixFileName(matrixType domain.MatrixType, version int) string {
	return fmt.Sprintf("matrix_%s_v%d.json", matrixType, version)
}

var treeFilePattern = regexp.MustCompile(`^hypothesis_tree_v(\d+)\.json$`)

func matrixFilePattern(matrixType domain.MatrixType) *regexp.Regexp {
	return regexp.MustCompile(`^matrix_` + regexp.QuoteMeta(string(matrixType)) + `_v(\d+)\.json$`)
}

// VersionedSaveResult is the {version, timestamp} pair the spec's
// save_tree/save_matrix contracts return.
type VersionedSaveResult struct {
	Version   int
	Timestamp time.Time
}

// SaveTree writes a new TreeRecord at version = max_existing + 1,
// retrying on a concurrent-writer collision.
func (s *Store) SaveTree(projectID string, tree domain.HypothesisTree, description string) (VersionedSaveResult, error) {
	dir := s.projectDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return VersionedSaveResult{}, errs.NewConfigError("store", "creating project directory", err)
	}

	sanitized := SanitizeProjectID(projectID)
	nextVersion := s.maxTreeVersion(dir) + 1

	for attempt := 0; attempt < maxVersionAllocationRetries; attempt++ {
		version := nextVersion + attempt
		now := time.Now().UTC()
		record := domain.TreeRecord{
			Metadata: domain.RecordMetadata{ProjectID: sanitized, Version: version, Timestamp: now, Description: description},
			Content:  tree,
		}
		path := filepath.Join(dir, treeFileName(version))
		if err := writeCreateOnly(path, record); err != nil {
			if os.IsExist(err) {
				continue
			}
			return VersionedSaveResult{}, errs.NewConfigError("store", "writing tree record", err)
		}
		return VersionedSaveResult{Version: version, Timestamp: now}, nil
	}
	return VersionedSaveResult{}, errs.NewVersionConflict(sanitized, "tree", maxVersionAllocationRetries)
}

// LoadTree returns the tree at the given version, or the latest version
// if version is nil.
func (s *Store) LoadTree(projectID string, version *int) (domain.TreeRecord, error) {
	dir := s.projectDir(projectID)
	v := 0
	if version != nil {
		v = *version
	} else {
		v = s.maxTreeVersion(dir)
		if v == 0 {
			return domain.TreeRecord{}, errs.NewNotFound("tree", projectID)
		}
	}

	var record domain.TreeRecord
	path := filepath.Join(dir, treeFileName(v))
	if err := readJSON(path, &record); err != nil {
		if os.IsNotExist(err) {
			return domain.TreeRecord{}, errs.NewNotFound("tree", fmt.Sprintf("%s@v%d", projectID, v))
		}
		return domain.TreeRecord{}, errs.NewConfigError("store", "reading tree record", err)
	}
	return record, nil
}

// ListTreeVersions returns every tree version for the project in
// ascending order.
func (s *Store) ListTreeVersions(projectID string) ([]domain.VersionMeta, error) {
	dir := s.projectDir(projectID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.NewConfigError("store", "listing project directory", err)
	}

	var versions []int
	for _, e := range entries {
		if m := treeFilePattern.FindStringSubmatch(e.Name()); m != nil {
			v, _ := strconv.Atoi(m[1])
			versions = append(versions, v)
		}
	}
	sort.Ints(versions)

	out := make([]domain.VersionMeta, 0, len(versions))
	for _, v := range versions {
		var record domain.TreeRecord
		if err := readJSON(filepath.Join(dir, treeFileName(v)), &record); err != nil {
			continue
		}
		out = append(out, domain.VersionMeta{Version: v, Timestamp: record.Metadata.Timestamp, Description: record.Metadata.Description})
	}
	return out, nil
}

func (s *Store) maxTreeVersion(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	max := 0
	for _, e := range entries {
		if m := treeFilePattern.FindStringSubmatch(e.Name()); m != nil {
			v, _ := strconv.Atoi(m[1])
			if v > max {
				max = v
			}
		}
	}
	return max
}

// SaveMatrix writes a new MatrixRecord for (projectID, matrix.MatrixType)
// at version = max_existing + 1, retrying on collision.
func (s *Store) SaveMatrix(projectID string, matrixType domain.MatrixType, matrix domain.Matrix, description string) (VersionedSaveResult, error) {
	dir := s.projectDir(projectID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return VersionedSaveResult{}, errs.NewConfigError("store", "creating project directory", err)
	}

	sanitized := SanitizeProjectID(projectID)
	nextVersion := s.maxMatrixVersion(dir, matrixType) + 1

	for attempt := 0; attempt < maxVersionAllocationRetries; attempt++ {
		version := nextVersion + attempt
		now := time.Now().UTC()
		record := domain.MatrixRecord{
			Metadata: domain.RecordMetadata{ProjectID: sanitized, Version: version, Timestamp: now, Description: description},
			Content:  matrix,
		}
		path := filepath.Join(dir, matrixFileName(matrixType, version))
		if err := writeCreateOnly(path, record); err != nil {
			if os.IsExist(err) {
				continue
			}
			return VersionedSaveResult{}, errs.NewConfigError("store", "writing matrix record", err)
		}
		return VersionedSaveResult{Version: version, Timestamp: now}, nil
	}
	return VersionedSaveResult{}, errs.NewVersionConflict(sanitized, string(matrixType), maxVersionAllocationRetries)
}

// LoadMatrix returns the matrix of the given kind at version, or the
// latest if version is nil.
func (s *Store) LoadMatrix(projectID string, matrixType domain.MatrixType, version *int) (domain.MatrixRecord, error) {
	dir := s.projectDir(projectID)
	v := 0
	if version != nil {
		v = *version
	} else {
		v = s.maxMatrixVersion(dir, matrixType)
		if v == 0 {
			return domain.MatrixRecord{}, errs.NewNotFound(string(matrixType), projectID)
		}
	}

	var record domain.MatrixRecord
	path := filepath.Join(dir, matrixFileName(matrixType, v))
	if err := readJSON(path, &record); err != nil {
		if os.IsNotExist(err) {
			return domain.MatrixRecord{}, errs.NewNotFound(string(matrixType), fmt.Sprintf("%s@v%d", projectID, v))
		}
		return domain.MatrixRecord{}, errs.NewConfigError("store", "reading matrix record", err)
	}
	return record, nil
}

// ListProjectMatrices returns every persisted matrix kind's version
// history for the project.
func (s *Store) ListProjectMatrices(projectID string) (map[domain.MatrixType][]domain.VersionMeta, error) {
	dir := s.projectDir(projectID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[domain.MatrixType][]domain.VersionMeta{}, nil
		}
		return nil, errs.NewConfigError("store", "listing project directory", err)
	}

	kinds := []domain.MatrixType{
		domain.MatrixHypothesisPrioritization, domain.MatrixRiskRegister,
		domain.MatrixTaskPrioritization, domain.MatrixMeasurementPriorities,
	}

	out := make(map[domain.MatrixType][]domain.VersionMeta, len(kinds))
	for _, kind := range kinds {
		pattern := matrixFilePattern(kind)
		var versions []int
		for _, e := range entries {
			if m := pattern.FindStringSubmatch(e.Name()); m != nil {
				v, _ := strconv.Atoi(m[1])
				versions = append(versions, v)
			}
		}
		sort.Ints(versions)
		for _, v := range versions {
			var record domain.MatrixRecord
			if err := readJSON(filepath.Join(dir, matrixFileName(kind, v)), &record); err != nil {
				continue
			}
			out[kind] = append(out[kind], domain.VersionMeta{Version: v, Timestamp: record.Metadata.Timestamp, Description: record.Metadata.Description})
		}
	}
	return out, nil
}

func (s *Store) maxMatrixVersion(dir string, matrixType domain.MatrixType) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	pattern := matrixFilePattern(matrixType)
	max := 0
	for _, e := range entries {
		if m := pattern.FindStringSubmatch(e.Name()); m != nil {
			v, _ := strconv.Atoi(m[1])
			if v > max {
				max = v
			}
		}
	}
	return max
}

// GetAll returns the latest tree and latest matrix of each kind for the
// project. Missing slots are nil rather than an error.
func (s *Store) GetAll(projectID string) (domain.ProjectSnapshot, error) {
	snapshot := domain.ProjectSnapshot{Matrices: make(map[domain.MatrixType]*domain.MatrixRecord)}

	tree, err := s.LoadTree(projectID, nil)
	if err == nil {
		snapshot.Tree = &tree
	} else if _, ok := err.(*errs.NotFound); !ok {
		return snapshot, err
	}

	kinds := []domain.MatrixType{
		domain.MatrixHypothesisPrioritization, domain.MatrixRiskRegister,
		domain.MatrixTaskPrioritization, domain.MatrixMeasurementPriorities,
	}
	for _, kind := range kinds {
		record, err := s.LoadMatrix(projectID, kind, nil)
		if err == nil {
			r := record
			snapshot.Matrices[kind] = &r
		} else if _, ok := err.(*errs.NotFound); !ok {
			return snapshot, err
		}
	}
	return snapshot, nil
}

// writeCreateOnly atomically creates path and writes v as JSON, failing
// with an os.IsExist error if another writer already created it first —
// the collision signal SaveTree/SaveMatrix retry on.
func writeCreateOnly(path string, v any) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

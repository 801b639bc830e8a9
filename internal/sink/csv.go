// Package sink implements the row sink (spec §4.6): a fixed-column CSV file
// appended to one row at a time as the harvest engine emits them. Grounded on
// the teacher's connectors/csv writer, adapted from "build a slice, write it
// once" into "open once, append per row" since the engine emits one row per
// successfully processed repository rather than a batch at the end.
package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/scottluskcis/repo-stats-go/internal/model"
)

// Columns is the fixed output column order (spec §6).
var Columns = []string{
	"Org_Name", "Repo_Name", "Is_Empty", "Last_Push", "Last_Update", "isFork", "isArchived",
	"Disk_Size_kb", "Repo_Size_mb", "Record_Count",
	"Collaborator_Count", "Protected_Branch_Count", "PR_Review_Count", "PR_Review_Comment_Count",
	"Commit_Comment_Count", "Milestone_Count", "PR_Count", "Project_Count", "Branch_Count",
	"Release_Count", "Issue_Count", "Issue_Event_Count", "Issue_Comment_Count", "Tag_Count",
	"Discussion_Count", "Has_Wiki", "Full_URL", "Migration_Issue", "Created",
}

// CSVSink is a RowSink writing to a single file, per org, named per spec §6's
// convention.
type CSVSink struct {
	f      *os.File
	w      *csv.Writer
	path   string
}

// FileName builds the conventional output filename for org at time t.
func FileName(org string, t time.Time) string {
	return fmt.Sprintf("%s-all_repos-%s.csv", strings.ToLower(org), t.UTC().Format("200601021504"))
}

// Open opens (creating parent directories as needed) the CSV file at path,
// writing the header row only if the file did not already exist.
func Open(path string) (*CSVSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	_, statErr := os.Stat(path)
	needsHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	if needsHeader {
		if err := w.Write(Columns); err != nil {
			f.Close()
			return nil, err
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
	}

	return &CSVSink{f: f, w: w, path: path}, nil
}

// WriteRow appends one row and flushes immediately, so progress is visible
// to a concurrent reader (e.g. the status server) as soon as a repo lands.
func (s *CSVSink) WriteRow(row model.OutputRow) error {
	record := []string{
		row.OrgName,
		row.RepoName,
		strconv.FormatBool(row.IsEmpty),
		row.LastPush.UTC().Format(time.RFC3339),
		row.LastUpdate.UTC().Format(time.RFC3339),
		strconv.FormatBool(row.IsFork),
		strconv.FormatBool(row.IsArchived),
		strconv.FormatInt(row.DiskSizeKB, 10),
		strconv.FormatInt(row.RepoSizeMB, 10),
		strconv.FormatInt(row.RecordCount, 10),
		strconv.Itoa(row.CollaboratorCount),
		strconv.Itoa(row.ProtectedBranchCount),
		strconv.Itoa(row.PRReviewCount),
		strconv.Itoa(row.PRReviewCommentCount),
		strconv.Itoa(row.CommitCommentCount),
		strconv.Itoa(row.MilestoneCount),
		strconv.Itoa(row.PRCount),
		strconv.Itoa(row.ProjectCount),
		strconv.Itoa(row.BranchCount),
		strconv.Itoa(row.ReleaseCount),
		strconv.Itoa(row.IssueCount),
		strconv.Itoa(row.IssueEventCount),
		strconv.Itoa(row.IssueCommentCount),
		strconv.Itoa(row.TagCount),
		strconv.Itoa(row.DiscussionCount),
		strconv.FormatBool(row.HasWiki),
		row.FullURL,
		strconv.FormatBool(row.MigrationIssue),
		row.Created.UTC().Format(time.RFC3339),
	}
	if err := s.w.Write(record); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Path returns the file this sink is writing to, for status reporting.
func (s *CSVSink) Path() string { return s.path }

// Close flushes and closes the underlying file.
func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}

package domain

import (
	"strings"
	"time"
)

// Identity is the slot a faculty member fills for one course obligation.
type Identity struct {
	FacultyID      string `json:"faculty_id"`
	CourseID       string `json:"course_id"`
	DocumentTypeID string `json:"document_type_id"`
	Semester       string `json:"semester"`
	AcademicYear   string `json:"academic_year"`
}

func (i Identity) Validate() error {
	missing := make([]string, 0, 5)
	if strings.TrimSpace(i.FacultyID) == "" {
		missing = append(missing, "faculty_id")
	}
	if strings.TrimSpace(i.CourseID) == "" {
		missing = append(missing, "course_id")
	}
	if strings.TrimSpace(i.DocumentTypeID) == "" {
		missing = append(missing, "document_type_id")
	}
	if strings.TrimSpace(i.Semester) == "" {
		missing = append(missing, "semester")
	}
	if strings.TrimSpace(i.AcademicYear) == "" {
		missing = append(missing, "academic_year")
	}
	if len(missing) > 0 {
		return WrapError(ErrInvalidInput, "validate identity", &MissingFieldsError{Fields: missing})
	}
	return nil
}

// Key is a stable string form of the identity tuple, used for locking.
func (i Identity) Key() string {
	return strings.Join([]string{i.FacultyID, i.CourseID, i.DocumentTypeID, i.Semester, i.AcademicYear}, "|")
}

type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "missing fields: " + strings.Join(e.Fields, ", ")
}

// FileMeta describes an uploaded file that already sits in the staging area.
type FileMeta struct {
	Filename        string `json:"filename"`
	ContentType     string `json:"content_type"`
	SizeBytes       int64  `json:"size_bytes"`
	StagingObjectID string `json:"staging_object_id"`
	Section         string `json:"section,omitempty"`
}

type AnalysisStatus string

const (
	AnalysisClean   AnalysisStatus = "clean"
	AnalysisFlagged AnalysisStatus = "flagged"
)

type AnalysisResult struct {
	Status     AnalysisStatus `json:"status"`
	Issues     []string       `json:"issues"`
	AnalyzedAt time.Time      `json:"analyzed_at"`
}

type Submission struct {
	ID              string          `json:"id"`
	Identity        Identity        `json:"identity"`
	Section         string          `json:"section,omitempty"`
	Version         int             `json:"version"`
	Current         bool            `json:"current"`
	Filename        string          `json:"filename"`
	ContentType     string          `json:"content_type"`
	SizeBytes       int64           `json:"size_bytes"`
	StagingObjectID string          `json:"staging_object_id,omitempty"`
	VaultObjectID   string          `json:"vault_object_id,omitempty"`
	Staged          bool            `json:"staged"`
	Status          Status          `json:"status"`
	Issues          []string        `json:"issues"`
	Analysis        *AnalysisResult `json:"analysis,omitempty"`
	SubmittedAt     time.Time       `json:"submitted_at"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// ObjectID returns whichever storage pointer is live.
func (s *Submission) ObjectID() string {
	if s.Staged {
		return s.StagingObjectID
	}
	return s.VaultObjectID
}

type Transition struct {
	ID           int64     `json:"id" db:"id"`
	SubmissionID string    `json:"submission_id" db:"submission_id"`
	From         Status    `json:"from" db:"from_status"`
	To           Status    `json:"to" db:"to_status"`
	Actor        string    `json:"actor" db:"actor"`
	Remarks      string    `json:"remarks,omitempty" db:"remarks"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Verdict is the validator output; a failed verdict is data, not an error.
type Verdict struct {
	Passed bool     `json:"passed"`
	Issues []string `json:"issues"`
}

// ScopeFilter narrows bulk operations; empty fields match everything.
type ScopeFilter struct {
	FacultyID      string `json:"faculty_id,omitempty"`
	CourseID       string `json:"course_id,omitempty"`
	DocumentTypeID string `json:"document_type_id,omitempty"`
	Semester       string `json:"semester,omitempty"`
	AcademicYear   string `json:"academic_year,omitempty"`
}

func (f ScopeFilter) Matches(id Identity) bool {
	match := func(want, got string) bool { return want == "" || want == got }
	return match(f.FacultyID, id.FacultyID) &&
		match(f.CourseID, id.CourseID) &&
		match(f.DocumentTypeID, id.DocumentTypeID) &&
		match(f.Semester, id.Semester) &&
		match(f.AcademicYear, id.AcademicYear)
}

type ReviewOutcome struct {
	Submission *Submission `json:"submission"`
	Transition Transition  `json:"transition"`
	Warnings   []string    `json:"warnings,omitempty"`
}

type BatchItem struct {
	SubmissionID string `json:"submission_id"`
	Status       Status `json:"status"`
	Error        string `json:"error,omitempty"`
}

type BatchResult struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Items     []BatchItem `json:"items"`
}

package domain

import "testing"

func testSubmission() *Submission {
	return &Submission{
		Identity: Identity{
			FacultyID:      "f-42",
			CourseID:       "CS 101",
			DocumentTypeID: "syllabus",
			Semester:       "1st",
			AcademicYear:   "2025-2026",
		},
		Section:  "A",
		Version:  3,
		Filename: "My Syllabus.pdf",
	}
}

func TestResolveVaultLocationIsDeterministic(t *testing.T) {
	first, err := ResolveVaultLocation("/vault/", testSubmission(), "Syllabus")
	if err != nil {
		t.Fatalf("ResolveVaultLocation() error = %v", err)
	}
	second, err := ResolveVaultLocation("vault", testSubmission(), "Syllabus")
	if err != nil {
		t.Fatalf("ResolveVaultLocation() error = %v", err)
	}
	if first != second {
		t.Fatalf("expected identical locations, got %+v and %+v", first, second)
	}
	want := "vault/2025-2026/1st/f-42/CS_101/A/Syllabus"
	if first.Container != want {
		t.Fatalf("expected container %s, got %s", want, first.Container)
	}
	if first.ObjectID != want+"/v3_My_Syllabus.pdf" {
		t.Fatalf("unexpected object id %s", first.ObjectID)
	}
}

func TestResolveVaultLocationDefaults(t *testing.T) {
	sub := testSubmission()
	sub.Section = ""
	loc, err := ResolveVaultLocation("vault", sub, "")
	if err != nil {
		t.Fatalf("ResolveVaultLocation() error = %v", err)
	}
	if loc.Container != "vault/2025-2026/1st/f-42/CS_101/general/syllabus" {
		t.Fatalf("unexpected container %s", loc.Container)
	}
}

func TestResolveVaultLocationRequiresRoot(t *testing.T) {
	_, err := ResolveVaultLocation("  ", testSubmission(), "Syllabus")
	if !IsKind(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"report 1.txt":     "report_1.txt",
		"../../etc/passwd": "passwd",
		"":                 "document.bin",
		"ünï.pdf":          "_n_.pdf",
	}
	for in, want := range cases {
		if got := SanitizeName(in); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

// Package appfs embeds the files the binaries ship with: SQL migrations,
// fixed SQL scripts and the email/report templates.
package appfs

import "embed"

//go:embed migrations sql all:templates
var FS embed.FS

const (
	MigrationsDir      = "migrations"
	TeacherGradesTable = "sql/teacher_grades.sql"
	EmailTemplatesDir  = "templates/email"
	ReportTemplatesDir = "templates/reports"
)
